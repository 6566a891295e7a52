package broadcaster

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	exitwal "matchbook/infra/wal/exit"
)

type fakePublisher struct {
	mu     sync.Mutex
	sent   []string
	keys   []string
	failOn map[string]int
	closed bool
}

func (f *fakePublisher) Publish(_ context.Context, key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[string(value)] > 0 {
		f.failOn[string(value)]--
		return errors.New("broker unavailable")
	}
	f.sent = append(f.sent, string(value))
	f.keys = append(f.keys, string(key))
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func (f *fakePublisher) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func setup(t *testing.T, n int, cfg Config) (*exitwal.ExitWAL, *fakePublisher, *Broadcaster) {
	t.Helper()
	outbox, err := exitwal.Open("outbox", exitwal.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = outbox.Close() })

	for i := 1; i <= n; i++ {
		require.NoError(t, outbox.PutNew(uint64(i), []byte(fmt.Sprintf("e%d", i))))
	}

	pub := &fakePublisher{failOn: map[string]int{}}
	key := func(p []byte) []byte { return append([]byte("k-"), p...) }
	return outbox, pub, New(outbox, pub, key, cfg, zaptest.NewLogger(t).Sugar())
}

func count(t *testing.T, w *exitwal.ExitWAL, s exitwal.State) int {
	t.Helper()
	n := 0
	require.NoError(t, w.ScanByState(s, 0, func(exitwal.Record) error { n++; return nil }))
	return n
}

func TestRelayOnce_InOrder(t *testing.T) {
	outbox, pub, b := setup(t, 5, Config{BatchSize: 3})

	n, err := b.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"e1", "e2", "e3"}, pub.published())
	assert.Equal(t, []string{"k-e1", "k-e2", "k-e3"}, pub.keys)

	n, err = b.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 5, count(t, outbox, exitwal.StateAcked))
	assert.Equal(t, 0, count(t, outbox, exitwal.StateNew))
}

func TestRelayOnce_FailureStopsPass(t *testing.T) {
	outbox, pub, b := setup(t, 3, Config{MaxRetries: 5})
	pub.failOn["e2"] = 1

	n, err := b.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"e1"}, pub.published())

	rec, err := outbox.Get(2)
	require.NoError(t, err)
	assert.Equal(t, exitwal.StateNew, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)

	n, err = b.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"e1", "e2", "e3"}, pub.published())
}

func TestRelayOnce_ParksAfterMaxRetries(t *testing.T) {
	outbox, pub, b := setup(t, 2, Config{MaxRetries: 2})
	pub.failOn["e1"] = 10

	for i := 0; i < 2; i++ {
		_, err := b.RelayOnce(context.Background())
		require.NoError(t, err)
	}
	rec, err := outbox.Get(1)
	require.NoError(t, err)
	assert.Equal(t, exitwal.StateFailed, rec.State)

	// The parked event no longer blocks the rest.
	n, err := b.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"e2"}, pub.published())
}

func TestRecover_RequeuesSent(t *testing.T) {
	outbox, _, b := setup(t, 2, Config{MaxRetries: 3})
	require.NoError(t, outbox.MarkSent(1))

	require.NoError(t, b.Recover())
	rec, err := outbox.Get(1)
	require.NoError(t, err)
	assert.Equal(t, exitwal.StateNew, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)
}

func TestStart_RelaysAndCleansUp(t *testing.T) {
	outbox, pub, b := setup(t, 4, Config{Interval: 5 * time.Millisecond, CleanupEvery: 1})

	ctx, cancel := context.WithCancel(context.Background())
	b.Start(ctx)

	require.Eventually(t, func() bool {
		return len(pub.published()) == 4 && count(t, outbox, exitwal.StateAcked) == 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	b.Wait()
	require.NoError(t, b.Close())
	assert.True(t, pub.closed)

	_, err := outbox.Get(1)
	require.ErrorIs(t, err, exitwal.ErrNotFound)
}

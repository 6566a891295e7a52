package entry

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendN(t *testing.T, w *WAL, from, to uint64) {
	t.Helper()
	for seq := from; seq <= to; seq++ {
		typ := RecordAdd
		if seq%3 == 0 {
			typ = RecordCancel
		}
		require.NoError(t, w.Append(NewRecord(typ, seq, []byte{byte(seq), 0xAB})))
	}
}

func collect(t *testing.T, dir string) ([]*Record, uint64) {
	t.Helper()
	var recs []*Record
	last, err := Replay(dir, func(r *Record) error {
		recs = append(recs, r)
		return nil
	})
	require.NoError(t, err)
	return recs, last
}

func TestWAL_AppendReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)

	appendN(t, w, 1, 10)
	require.NoError(t, w.Close())

	recs, last := collect(t, dir)
	require.Len(t, recs, 10)
	assert.Equal(t, uint64(10), last)
	for i, r := range recs {
		seq := uint64(i + 1)
		assert.Equal(t, seq, r.Seq)
		assert.Equal(t, []byte{byte(seq), 0xAB}, r.Data)
		assert.NotZero(t, r.Time)
	}
	assert.Equal(t, RecordCancel, recs[2].Type)
	assert.Equal(t, RecordAdd, recs[3].Type)
}

func TestWAL_RejectsNonMonotonic(t *testing.T) {
	w, err := Open(Config{Dir: t.TempDir(), SegmentSize: 1 << 20})
	require.NoError(t, err)
	defer w.Close()

	appendN(t, w, 1, 3)
	require.ErrorIs(t, w.Append(NewRecord(RecordAdd, 3, nil)), ErrNonMonotonic)
	require.ErrorIs(t, w.Append(NewRecord(RecordAdd, 1, nil)), ErrNonMonotonic)
	require.NoError(t, w.Append(NewRecord(RecordAdd, 4, nil)))
}

func TestWAL_Rotate(t *testing.T) {
	dir := t.TempDir()
	// Every frame is 27 bytes, so each segment holds two.
	w, err := Open(Config{Dir: dir, SegmentSize: 50})
	require.NoError(t, err)

	appendN(t, w, 1, 9)
	segs, err := listSegments(dir)
	require.NoError(t, err)
	assert.Len(t, segs, 5)
	for i, s := range segs {
		assert.Equal(t, i, s.index)
	}

	require.NoError(t, w.Close())
	recs, last := collect(t, dir)
	require.Len(t, recs, 9)
	assert.Equal(t, uint64(1), recs[0].Seq)
	assert.Equal(t, uint64(9), last)
}

func TestWAL_ReopenContinues(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)
	appendN(t, w, 1, 4)
	require.NoError(t, w.Close())

	w, err = Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), w.LastSeq())
	require.ErrorIs(t, w.Append(NewRecord(RecordAdd, 4, nil)), ErrNonMonotonic)
	appendN(t, w, 5, 6)
	require.NoError(t, w.Close())

	_, last := collect(t, dir)
	assert.Equal(t, uint64(6), last)
}

func TestWAL_TornTail(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)
	appendN(t, w, 1, 3)
	require.NoError(t, w.Close())

	// Half of a fourth frame, as left by a crash mid-write.
	path := segmentPath(dir, 0)
	frame := NewRecord(RecordAdd, 4, []byte("payload")).marshal()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write(frame[:len(frame)/2])
	require.NoError(t, err)
	require.NoError(t, f.Close())

	recs, last := collect(t, dir)
	assert.Len(t, recs, 3)
	assert.Equal(t, uint64(3), last)

	// Reopening cuts the torn bytes so new frames replay.
	w, err = Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), w.LastSeq())
	appendN(t, w, 4, 4)
	require.NoError(t, w.Close())

	recs, last = collect(t, dir)
	assert.Len(t, recs, 4)
	assert.Equal(t, uint64(4), last)
}

func TestWAL_CorruptRecord(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 50})
	require.NoError(t, err)
	appendN(t, w, 1, 4)
	require.NoError(t, w.Close())

	// Flip a payload byte in the first, closed segment.
	path := segmentPath(dir, 0)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	b[headerSize] ^= 0xFF
	require.NoError(t, os.WriteFile(path, b, 0o644))

	_, err = Replay(dir, func(*Record) error { return nil })
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestWAL_OversizedLength(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)
	appendN(t, w, 1, 3)
	require.NoError(t, w.Close())

	// A garbage header whose length field asks for almost 4 GiB.
	var header [headerSize]byte
	header[0] = byte(RecordAdd)
	binary.BigEndian.PutUint64(header[1:9], 4)
	binary.BigEndian.PutUint32(header[17:21], 0xFFFFFFF0)

	_, err = readRecord(bytes.NewReader(header[:]))
	require.ErrorIs(t, err, ErrCorrupt)

	f, err := os.OpenFile(segmentPath(dir, 0), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write(append(header[:], 0x01, 0x02))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	recs, last := collect(t, dir)
	assert.Len(t, recs, 3)
	assert.Equal(t, uint64(3), last)

	w, err = Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), w.LastSeq())
	appendN(t, w, 4, 4)
	require.NoError(t, w.Close())

	_, last = collect(t, dir)
	assert.Equal(t, uint64(4), last)
}

func TestWAL_RejectsOversizedPayload(t *testing.T) {
	w, err := Open(Config{Dir: t.TempDir(), SegmentSize: 1 << 20})
	require.NoError(t, err)
	defer w.Close()

	err = w.Append(NewRecord(RecordAdd, 1, make([]byte, MaxPayload+1)))
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, uint64(0), w.LastSeq())
}

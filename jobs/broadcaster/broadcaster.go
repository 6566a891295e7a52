package broadcaster

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	exitwal "matchbook/infra/wal/exit"
)

// Publisher delivers one encoded event. Both infra/kafka producers
// implement it.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

// KeyFunc derives the partition key from an encoded event.
type KeyFunc func(payload []byte) []byte

type Config struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries uint32
	// CleanupEvery deletes ACKED records every n passes; 0 disables it.
	CleanupEvery int
}

// Broadcaster relays NEW outbox events to a Publisher in seq order. A
// failed publish stops the pass so later events never overtake it.
type Broadcaster struct {
	outbox *exitwal.ExitWAL
	pub    Publisher
	key    KeyFunc
	cfg    Config
	log    *zap.SugaredLogger

	done chan struct{}
}

var errStopPass = errors.New("stop pass")

func New(outbox *exitwal.ExitWAL, pub Publisher, key KeyFunc, cfg Config, log *zap.SugaredLogger) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	return &Broadcaster{
		outbox: outbox,
		pub:    pub,
		key:    key,
		cfg:    cfg,
		log:    log,
		done:   make(chan struct{}),
	}
}

// ------------------------------------------------
// START LOOP
// ------------------------------------------------

// Start recovers records left SENT by a previous run and then relays on
// every tick until ctx is done.
func (b *Broadcaster) Start(ctx context.Context) {
	b.log.Infow("broadcaster started", "interval", b.cfg.Interval, "batch", b.cfg.BatchSize)

	if err := b.Recover(); err != nil {
		b.log.Errorw("failed to recover sent records", "error", err)
	}

	go func() {
		defer close(b.done)

		ticker := time.NewTicker(b.cfg.Interval)
		defer ticker.Stop()

		for pass := 1; ; pass++ {
			select {
			case <-ctx.Done():
				b.log.Infow("broadcaster stopped")
				return

			case <-ticker.C:
				if _, err := b.RelayOnce(ctx); err != nil {
					b.log.Errorw("relay pass failed", "error", err)
				}
				if b.cfg.CleanupEvery > 0 && pass%b.cfg.CleanupEvery == 0 {
					b.cleanup()
				}
			}
		}
	}()
}

// Wait blocks until the loop started by Start has returned.
func (b *Broadcaster) Wait() {
	<-b.done
}

// ------------------------------------------------
// RELAY
// ------------------------------------------------

// RelayOnce publishes up to BatchSize NEW records and returns how many
// were acknowledged.
func (b *Broadcaster) RelayOnce(ctx context.Context) (int, error) {
	acked := 0
	err := b.outbox.ScanByState(exitwal.StateNew, b.cfg.BatchSize, func(rec exitwal.Record) error {
		// 1️⃣ Mark SENT before the attempt
		if err := b.outbox.MarkSent(rec.Seq); err != nil {
			return err
		}

		// 2️⃣ Publish
		var key []byte
		if b.key != nil {
			key = b.key(rec.Payload)
		}
		if err := b.pub.Publish(ctx, key, rec.Payload); err != nil {
			b.log.Warnw("publish failed", "seq", rec.Seq, "attempt", rec.Retries+1, "error", err)
			if err := b.retryOrFail(rec.Seq, rec.Retries+1); err != nil {
				return err
			}
			return errStopPass
		}

		// 3️⃣ Mark ACKED
		if err := b.outbox.MarkAcked(rec.Seq); err != nil {
			return err
		}
		acked++
		return nil
	})
	if errors.Is(err, errStopPass) {
		err = nil
	}
	return acked, err
}

// Recover puts records left SENT by a crash back in the NEW state.
func (b *Broadcaster) Recover() error {
	var recs []exitwal.Record
	err := b.outbox.ScanByState(exitwal.StateSent, 0, func(rec exitwal.Record) error {
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := b.retryOrFail(rec.Seq, rec.Retries); err != nil {
			return err
		}
	}
	if len(recs) > 0 {
		b.log.Infow("requeued sent records", "count", len(recs))
	}
	return nil
}

func (b *Broadcaster) retryOrFail(seq uint64, attempts uint32) error {
	if attempts >= b.cfg.MaxRetries {
		b.log.Errorw("event parked after max retries", "seq", seq, "attempts", attempts)
		return b.outbox.MarkFailed(seq)
	}
	return b.outbox.Requeue(seq)
}

func (b *Broadcaster) cleanup() {
	n, err := b.outbox.DeleteAcked()
	if err != nil {
		b.log.Errorw("failed to delete acked records", "error", err)
		return
	}
	if n > 0 {
		b.log.Debugw("deleted acked records", "count", n)
	}
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.pub.Close()
}

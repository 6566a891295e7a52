package exit

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

var ErrNotFound = errors.New("outbox: record not found")

type Options struct {
	// FS overrides the filesystem, e.g. vfs.NewMem() in tests.
	FS vfs.FS
	// NoSync commits without fsync. Events survive a process crash but
	// not a machine crash.
	NoSync bool
}

// ExitWAL is the event outbox. Events are staged by the writer and
// drained by the broadcaster; pebble makes the two safe to run
// concurrently.
type ExitWAL struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
}

func Open(dir string, opts Options) (*ExitWAL, error) {
	po := &pebble.Options{}
	if opts.FS != nil {
		po.FS = opts.FS
	}
	db, err := pebble.Open(dir, po)
	if err != nil {
		return nil, errors.Wrapf(err, "outbox: open %s", dir)
	}

	wo := pebble.Sync
	if opts.NoSync {
		wo = pebble.NoSync
	}
	return &ExitWAL{db: db, writeOpts: wo}, nil
}

func (w *ExitWAL) Close() error {
	return w.db.Close()
}

// Batch stages NEW records and commits them atomically.
type Batch struct {
	w *ExitWAL
	b *pebble.Batch
	n int
}

func (w *ExitWAL) NewBatch() *Batch {
	return &Batch{w: w, b: w.db.NewBatch()}
}

func (b *Batch) Put(seq uint64, payload []byte) error {
	b.n++
	return b.b.Set(keyFor(seq), encodeRecord(Record{State: StateNew, Payload: payload}), nil)
}

// Len reports the number of staged records.
func (b *Batch) Len() int { return b.n }

// SetCursor stages the replay cursor alongside the records.
func (b *Batch) SetCursor(c Cursor) error {
	return b.b.Set([]byte(cursorKey), c.encode(), nil)
}

// Commit writes the staged records and resets the batch for reuse.
func (b *Batch) Commit() error {
	if b.b.Empty() {
		return nil
	}
	if err := b.b.Commit(b.w.writeOpts); err != nil {
		return errors.Wrap(err, "outbox: commit")
	}
	b.b.Reset()
	b.n = 0
	return nil
}

// Discard drops whatever is staged.
func (b *Batch) Discard() {
	b.b.Reset()
	b.n = 0
}

func (b *Batch) Close() error {
	return b.b.Close()
}

// PutNew stores a single NEW record.
func (w *ExitWAL) PutNew(seq uint64, payload []byte) error {
	rec := Record{State: StateNew, Payload: payload}
	return errors.Wrapf(w.db.Set(keyFor(seq), encodeRecord(rec), w.writeOpts), "outbox: put %d", seq)
}

// Cursor returns the last committed cursor, or the zero Cursor on a
// fresh outbox.
func (w *ExitWAL) Cursor() (Cursor, error) {
	val, closer, err := w.db.Get([]byte(cursorKey))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Cursor{}, nil
		}
		return Cursor{}, errors.Wrap(err, "outbox: get cursor")
	}
	defer closer.Close()

	return decodeCursor(val)
}

func (w *ExitWAL) Get(seq uint64) (Record, error) {
	val, closer, err := w.db.Get(keyFor(seq))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Record{}, errors.Wrapf(ErrNotFound, "seq %d", seq)
		}
		return Record{}, errors.Wrapf(err, "outbox: get %d", seq)
	}
	defer closer.Close()

	return decodeRecord(seq, val)
}

// MarkSent records a delivery attempt.
func (w *ExitWAL) MarkSent(seq uint64) error {
	return w.update(seq, func(r *Record) {
		r.State = StateSent
		r.Retries++
		r.LastAttempt = time.Now().UnixNano()
	})
}

func (w *ExitWAL) MarkAcked(seq uint64) error {
	return w.update(seq, func(r *Record) { r.State = StateAcked })
}

// MarkFailed parks a record that exhausted its attempts.
func (w *ExitWAL) MarkFailed(seq uint64) error {
	return w.update(seq, func(r *Record) { r.State = StateFailed })
}

// Requeue puts a SENT record back to NEW, keeping its retry count.
func (w *ExitWAL) Requeue(seq uint64) error {
	return w.update(seq, func(r *Record) { r.State = StateNew })
}

func (w *ExitWAL) update(seq uint64, fn func(*Record)) error {
	rec, err := w.Get(seq)
	if err != nil {
		return err
	}
	fn(&rec)
	return errors.Wrapf(w.db.Set(keyFor(seq), encodeRecord(rec), w.writeOpts), "outbox: update %d", seq)
}

func (w *ExitWAL) Delete(seq uint64) error {
	return errors.Wrapf(w.db.Delete(keyFor(seq), w.writeOpts), "outbox: delete %d", seq)
}

// ScanByState visits records in state, in seq order, stopping after
// limit matches when limit > 0.
func (w *ExitWAL) ScanByState(state State, limit int, fn func(Record) error) error {
	return w.scan(func(seq uint64, val []byte) (bool, error) {
		if State(val[0]) != state {
			return true, nil
		}
		rec, err := decodeRecord(seq, val)
		if err != nil {
			return false, err
		}
		if err := fn(rec); err != nil {
			return false, err
		}
		limit--
		return limit != 0, nil
	})
}

// DeleteAcked removes every ACKED record and returns how many it removed.
func (w *ExitWAL) DeleteAcked() (int, error) {
	batch := w.db.NewBatch()
	defer batch.Close()

	n := 0
	err := w.scan(func(seq uint64, val []byte) (bool, error) {
		if State(val[0]) == StateAcked {
			n++
			return true, batch.Delete(keyFor(seq), nil)
		}
		return true, nil
	})
	if err != nil || n == 0 {
		return 0, err
	}
	if err := batch.Commit(w.writeOpts); err != nil {
		return 0, errors.Wrap(err, "outbox: delete acked")
	}
	return n, nil
}

// LastSeq returns the highest seq in the outbox, or 0 when it is empty.
func (w *ExitWAL) LastSeq() (uint64, error) {
	iter, err := w.db.NewIter(w.bounds())
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

func (w *ExitWAL) bounds() *pebble.IterOptions {
	return &pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + keyUpperCh),
	}
}

func (w *ExitWAL) scan(fn func(seq uint64, val []byte) (bool, error)) error {
	iter, err := w.db.NewIter(w.bounds())
	if err != nil {
		return errors.Wrap(err, "outbox: iter")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		val := iter.Value()
		if len(val) < metaSize {
			return errors.Newf("outbox: record %d too short (%d bytes)", seq, len(val))
		}
		more, err := fn(seq, val)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return iter.Error()
}

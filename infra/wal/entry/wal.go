package entry

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
)

var ErrNonMonotonic = errors.New("journal: non-monotonic seq")

type Config struct {
	Dir             string
	SegmentSize     int64
	SegmentDuration time.Duration
	// SyncEveryWrite fsyncs after each Append.
	SyncEveryWrite bool
}

// WAL is the command journal: append-only segment files of framed
// records in strictly increasing seq order. Not safe for concurrent use;
// it lives on the writer goroutine with the book.
type WAL struct {
	dir        string
	segSize    int64
	segDur     time.Duration
	syncWrites bool

	current    *segment
	lastRotate time.Time
	lastSeq    uint64
}

// Open opens or creates the journal in cfg.Dir. Appends continue in the
// newest segment; a torn tail left by a crash is cut off first.
func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "journal: mkdir")
	}

	segs, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "journal: list segments")
	}

	w := &WAL{
		dir:        cfg.Dir,
		segSize:    cfg.SegmentSize,
		segDur:     cfg.SegmentDuration,
		syncWrites: cfg.SyncEveryWrite,
		lastRotate: time.Now(),
	}

	index := 0
	if len(segs) > 0 {
		last := segs[len(segs)-1]
		index = last.index

		maxSeq, good, err := scanSegment(last.path)
		if err != nil {
			return nil, errors.Wrapf(err, "journal: scan %s", last.path)
		}
		if err := os.Truncate(last.path, good); err != nil {
			return nil, errors.Wrapf(err, "journal: truncate %s", last.path)
		}
		w.lastSeq = maxSeq

		// An empty newest segment says nothing about what came before.
		for i := len(segs) - 2; i >= 0 && w.lastSeq == 0; i-- {
			if w.lastSeq, _, err = scanSegment(segs[i].path); err != nil {
				return nil, errors.Wrapf(err, "journal: scan %s", segs[i].path)
			}
		}
	}

	if w.current, err = openSegment(cfg.Dir, index); err != nil {
		return nil, err
	}
	return w, nil
}

// LastSeq returns the seq of the newest record in the journal.
func (w *WAL) LastSeq() uint64 { return w.lastSeq }

func (w *WAL) Append(r *Record) error {
	if r.Seq <= w.lastSeq {
		return errors.Wrapf(ErrNonMonotonic, "seq %d after %d", r.Seq, w.lastSeq)
	}
	if len(r.Data) > MaxPayload {
		return errors.Wrapf(ErrTooLarge, "seq %d: %d bytes", r.Seq, len(r.Data))
	}

	if err := w.current.append(r.marshal()); err != nil {
		return errors.Wrapf(err, "journal: append seq %d", r.Seq)
	}
	if w.syncWrites {
		if err := w.current.sync(); err != nil {
			return errors.Wrap(err, "journal: sync")
		}
	}
	w.lastSeq = r.Seq

	if w.shouldRotate() {
		return w.rotate()
	}
	return nil
}

func (w *WAL) shouldRotate() bool {
	if w.segSize > 0 && w.current.offset >= w.segSize {
		return true
	}
	return w.segDur > 0 && time.Since(w.lastRotate) >= w.segDur
}

func (w *WAL) rotate() error {
	if err := w.current.sync(); err != nil {
		return errors.Wrap(err, "journal: sync before rotate")
	}
	_ = w.current.close()

	seg, err := openSegment(w.dir, w.current.index+1)
	if err != nil {
		return err
	}

	w.current = seg
	w.lastRotate = time.Now()
	return nil
}

func (w *WAL) Sync() error {
	return w.current.sync()
}

func (w *WAL) Close() error {
	if err := w.current.sync(); err != nil {
		_ = w.current.close()
		return errors.Wrap(err, "journal: sync on close")
	}
	return w.current.close()
}

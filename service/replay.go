package service

import (
	"github.com/cockroachdb/errors"

	entrywal "matchbook/infra/wal/entry"
)

/*
Replay rebuilds the book from the command journal in dir.

IMPORTANT:
  - the book and sequencer must be fresh; journal seqs are the original
    tokens and are fed back unchanged
  - it MUST run before accepting traffic
  - events of commands the outbox already holds are not staged again
  - the journal must reach the outbox cursor, else ErrJournalBehind
*/
func (s *OrderService) Replay(dir string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failed != nil {
		return 0, s.failed
	}

	n := 0
	last, err := entrywal.Replay(dir, func(rec *entrywal.Record) error {
		if err := s.seq.Observe(rec.Seq); err != nil {
			return err
		}
		if s.sink != nil {
			s.sink.Begin(rec.Seq)
		}

		if err := s.replayOne(rec); err != nil {
			return err
		}

		if s.sink != nil {
			if err := s.sink.Commit(); err != nil {
				return err
			}
		}
		n++
		return nil
	})
	if err != nil {
		return n, s.fail(last, "replay", err)
	}
	if s.sink != nil && s.sink.Cursor().Token > s.seq.Current() {
		err := errors.Wrapf(ErrJournalBehind, "cursor at token %d, journal ends at %d",
			s.sink.Cursor().Token, s.seq.Current())
		return n, s.fail(s.seq.Current(), "replay", err)
	}

	s.log.Infow("journal replayed",
		"dir", dir,
		"commands", n,
		"last_token", last,
		"resting", s.book.Len(),
	)
	return n, nil
}

func (s *OrderService) replayOne(rec *entrywal.Record) error {
	switch rec.Type {
	case entrywal.RecordAdd:
		c, err := decodeAdd(rec.Data)
		if err != nil {
			return errors.Wrapf(err, "seq %d", rec.Seq)
		}
		s.book.SetMatching(!c.Halted)
		return s.book.AddOrder(rec.Seq, c.ID, c.Type, c.Side, c.Qty, c.Price, c.TrigPrice, c.Flag)

	case entrywal.RecordCancel:
		id, err := decodeCancel(rec.Data)
		if err != nil {
			return errors.Wrapf(err, "seq %d", rec.Seq)
		}
		return s.book.CancelOrder(rec.Seq, id)

	default:
		return errors.Newf("unknown record type %d at seq %d", rec.Type, rec.Seq)
	}
}

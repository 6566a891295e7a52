package sequence

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// ErrGap is returned by Observe when a replayed token skips or repeats.
var ErrGap = errors.New("sequence gap")

// Sequencer issues the book's tokens. Every mutating book call takes the
// next token, so the sequencer is the single point that orders writes.
type Sequencer struct {
	last atomic.Uint64
}

// New creates a sequencer whose first token is start+1. A book rebuilt
// from the journal starts at 0 and advances through Observe.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

// Next issues the next token.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued token.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Observe records a token issued elsewhere, e.g. read back from the
// journal. It must be exactly Current()+1.
func (s *Sequencer) Observe(tok uint64) error {
	if !s.last.CompareAndSwap(tok-1, tok) {
		return errors.Wrapf(ErrGap, "observed %d after %d", tok, s.last.Load())
	}
	return nil
}

package service

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"matchbook/domain/orderbook"
	"matchbook/infra/sequence"
	entrywal "matchbook/infra/wal/entry"
)

// ErrStopped marks every error returned after the service hit a fatal
// condition. The book may no longer agree with the journal, so the
// service refuses further commands until it is rebuilt.
var ErrStopped = errors.New("order service stopped")

// ErrJournalBehind reports an outbox cursor past the last journaled
// token. New tokens would fall under the cursor and their events would
// be dropped as already committed.
var ErrJournalBehind = errors.New("journal behind outbox cursor")

type Option func(*OrderService)

func WithJournal(j *entrywal.WAL) Option {
	return func(s *OrderService) { s.journal = j }
}

// WithSink commits the book's events after each command. The sink must
// also be the book's Notification.
func WithSink(sink *Sink) Option {
	return func(s *OrderService) { s.sink = sink }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *OrderService) { s.log = l }
}

/*
OrderService is the ONLY write entry point into the book.

Every command runs the same three steps under one lock:
  - take the next token and journal the command under it
  - apply it to the book with that token
  - commit the events it produced to the outbox
*/
type OrderService struct {
	mu sync.Mutex

	book    *orderbook.OrderBook
	seq     *sequence.Sequencer
	journal *entrywal.WAL
	sink    *Sink
	log     *zap.SugaredLogger

	failed error
}

func NewOrderService(book *orderbook.OrderBook, seq *sequence.Sequencer, opts ...Option) *OrderService {
	s := &OrderService{
		book: book,
		seq:  seq,
		log:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// PlaceOrder submits an order and returns the token it was applied
// with. Rejections are events, not errors.
func (s *OrderService) PlaceOrder(req PlaceOrder) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := addCommand{PlaceOrder: req, Halted: !s.book.Matching()}
	return s.apply(entrywal.RecordAdd, encodeAdd(cmd), func(tok uint64) error {
		return s.book.AddOrder(tok, req.ID, req.Type, req.Side, req.Qty, req.Price, req.TrigPrice, req.Flag)
	})
}

func (s *OrderService) CancelOrder(id orderbook.OrderID) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apply(entrywal.RecordCancel, encodeCancel(id), func(tok uint64) error {
		return s.book.CancelOrder(tok, id)
	})
}

// SetMatching halts or resumes matching. The state is journaled with
// each following add command, so replay sees the same halts.
func (s *OrderService) SetMatching(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.book.SetMatching(on)
	s.log.Infow("matching state changed", "matching", on, "token", s.book.LastToken())
}

func (s *OrderService) apply(typ entrywal.RecordType, data []byte, fn func(tok uint64) error) (uint64, error) {
	if s.failed != nil {
		return 0, s.failed
	}

	tok := s.seq.Next()
	if s.sink != nil && tok <= s.sink.Cursor().Token {
		err := errors.Wrapf(ErrJournalBehind, "cursor at token %d", s.sink.Cursor().Token)
		return tok, s.fail(tok, typ.String(), err)
	}

	// 1️⃣ Journal intent
	if s.journal != nil {
		if err := s.journal.Append(entrywal.NewRecord(typ, tok, data)); err != nil {
			return tok, s.fail(tok, "journal append", err)
		}
	}

	// 2️⃣ Execute deterministic domain logic
	if s.sink != nil {
		s.sink.Begin(tok)
	}
	if err := fn(tok); err != nil {
		return tok, s.fail(tok, typ.String(), err)
	}

	// 3️⃣ Commit events
	if s.sink != nil {
		if err := s.sink.Commit(); err != nil {
			return tok, s.fail(tok, "outbox commit", err)
		}
	}
	return tok, nil
}

func (s *OrderService) fail(tok uint64, op string, err error) error {
	s.failed = errors.Mark(errors.Wrapf(err, "%s at token %d", op, tok), ErrStopped)
	s.log.Errorw("order service stopped", "op", op, "token", tok, "error", err)
	return s.failed
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// Err returns the fatal error that stopped the service, if any.
func (s *OrderService) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Depth returns both sides of the book, best prices first.
func (s *OrderService) Depth() (bids, asks []orderbook.LevelView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Depth()
}

func (s *OrderService) LastPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.LastPrice()
}

// Order returns a copy of a resting order.
func (s *OrderService) Order(id orderbook.OrderID) (orderbook.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Order(id)
}

// String renders the book; see orderbook.OrderBook.String.
func (s *OrderService) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.String()
}

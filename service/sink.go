package service

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"matchbook/domain/orderbook"
	"matchbook/events"
	exitwal "matchbook/infra/wal/exit"
)

// Sink is the book's Notification when an outbox is configured. It
// encodes every event and stages it in one outbox batch per book call;
// Commit makes the call's events durable together with the cursor.
//
// Events of calls at or below the outbox cursor were committed before a
// restart. During replay those are dropped so nothing is published
// twice.
type Sink struct {
	outbox *exitwal.ExitWAL
	batch  *exitwal.Batch
	runID  uuid.UUID
	log    *zap.SugaredLogger
	now    func() time.Time

	cursor exitwal.Cursor
	token  uint64
	seq    uint64
	err    error
}

var _ orderbook.Notification = (*Sink)(nil)

func NewSink(outbox *exitwal.ExitWAL, runID uuid.UUID, log *zap.SugaredLogger) (*Sink, error) {
	cursor, err := outbox.Cursor()
	if err != nil {
		return nil, err
	}
	return &Sink{
		outbox: outbox,
		batch:  outbox.NewBatch(),
		runID:  runID,
		log:    log,
		now:    time.Now,
		cursor: cursor,
		seq:    cursor.Seq,
	}, nil
}

// Cursor returns the last committed cursor.
func (s *Sink) Cursor() exitwal.Cursor { return s.cursor }

// Begin starts collecting events for book call tok.
func (s *Sink) Begin(tok uint64) {
	s.token = tok
	s.err = nil
	s.batch.Discard()
}

// Commit writes the events staged since Begin.
func (s *Sink) Commit() error {
	if s.err != nil {
		s.batch.Discard()
		s.seq = s.cursor.Seq
		return s.err
	}
	if s.replayed() {
		return nil
	}

	next := exitwal.Cursor{Token: s.token, Seq: s.seq}
	if err := s.batch.SetCursor(next); err != nil {
		return errors.Wrap(err, "stage cursor")
	}
	if err := s.batch.Commit(); err != nil {
		s.batch.Discard()
		s.seq = s.cursor.Seq
		return err
	}
	s.cursor = next
	return nil
}

func (s *Sink) Close() error {
	return s.batch.Close()
}

func (s *Sink) replayed() bool {
	return s.token <= s.cursor.Token
}

func (s *Sink) PutOrder(msg orderbook.MsgType, status orderbook.OrderStatus, id orderbook.OrderID, qty decimal.Decimal, err error) {
	o := &events.Order{
		Msg:    msg.String(),
		Status: status.String(),
		ID:     id,
		Qty:    qty,
	}
	if err != nil {
		o.Err = err.Error()
	}
	s.stage(events.KindOrder, o, nil)
}

func (s *Sink) PutTrade(makerID, takerID orderbook.OrderID, makerStatus, takerStatus orderbook.OrderStatus, qty, price decimal.Decimal) {
	s.stage(events.KindTrade, nil, &events.Trade{
		MakerID:     makerID,
		TakerID:     takerID,
		MakerStatus: makerStatus.String(),
		TakerStatus: takerStatus.String(),
		Qty:         qty,
		Price:       price,
	})
}

func (s *Sink) stage(kind events.Kind, o *events.Order, t *events.Trade) {
	if s.err != nil || s.replayed() {
		return
	}

	s.seq++
	e := &events.Event{
		V:     events.Version,
		Seq:   s.seq,
		RunID: s.runID,
		Token: s.token,
		Time:  s.now().UnixNano(),
		Kind:  kind,
		Order: o,
		Trade: t,
	}

	payload, err := events.Encode(e)
	if err != nil {
		s.log.Errorw("failed to encode event", "seq", e.Seq, "kind", kind, "error", err)
		s.err = errors.Wrapf(err, "encode event %d", e.Seq)
		return
	}
	if err := s.batch.Put(e.Seq, payload); err != nil {
		s.err = errors.Wrapf(err, "stage event %d", e.Seq)
	}
}

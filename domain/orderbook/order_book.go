package orderbook

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"matchbook/infra/memory"
)

const (
	DefaultOrderPoolSize = 16384
	DefaultQueuePoolSize = 16384
)

// TriggerHook receives accepted stop-loss / take-profit orders. The book
// holds no trigger state of its own; without a hook such orders are
// accepted and dropped.
type TriggerHook func(id OrderID, typ Type, side Side, qty, price, trigPrice decimal.Decimal, flag Flag)

type Option func(*OrderBook)

// WithPoolSizes sets the slab size of the order and queue pools.
func WithPoolSizes(orders, queues int) Option {
	return func(b *OrderBook) {
		b.orderPoolSize = orders
		b.queuePoolSize = queues
	}
}

// WithTriggerHook installs the handler for stop-loss / take-profit orders.
func WithTriggerHook(h TriggerHook) Option {
	return func(b *OrderBook) { b.trigger = h }
}

// OrderBook is a single-instrument limit order book.
//
// It is single-writer and deterministic: every mutating call carries a
// token that must be exactly one past the previous call's. The book does
// no locking and no I/O; all effects are reported synchronously through
// its Notification.
type OrderBook struct {
	notify Notification

	orderPoolSize int
	queuePoolSize int
	orders        *memory.Pool[Order]
	queues        *memory.Pool[OrderQueue]

	bids *PriceLevel
	asks *PriceLevel

	index *btree.Map[OrderID, memory.Handle]

	trigger TriggerHook

	lastPrice decimal.Decimal
	lastToken uint64
	matching  bool

	onTrade TradeFunc
	onFill  FillFunc
}

func NewOrderBook(n Notification, opts ...Option) *OrderBook {
	b := &OrderBook{
		notify:        n,
		orderPoolSize: DefaultOrderPoolSize,
		queuePoolSize: DefaultQueuePoolSize,
		index:         btree.NewMap[OrderID, memory.Handle](32),
		lastPrice:     decimal.Zero,
		matching:      true,
	}
	for _, opt := range opts {
		opt(b)
	}

	b.orders = memory.NewPool[Order](b.orderPoolSize)
	b.queues = memory.NewPool[OrderQueue](b.queuePoolSize)
	b.bids = NewPriceLevel(BidPrice, b.orders, b.queues)
	b.asks = NewPriceLevel(AskPrice, b.orders, b.queues)

	b.onTrade = func(makerID, takerID OrderID, makerStatus, takerStatus OrderStatus, qty, price decimal.Decimal) {
		b.notify.PutTrade(makerID, takerID, makerStatus, takerStatus, qty, price)
		b.lastPrice = price
	}
	b.onFill = func(o *Order) {
		b.detach(o)
	}

	return b
}

// AddOrder validates, matches and, if anything is left, rests an order.
// The only error it returns is ErrOutOfSequence; everything else is
// reported as an order event.
func (b *OrderBook) AddOrder(tok uint64, id OrderID, typ Type, side Side, qty, price, trigPrice decimal.Decimal, flag Flag) error {
	if err := b.advance(tok); err != nil {
		return err
	}

	if !qty.IsPositive() {
		b.reject(CreateOrder, id, qty, ErrInvalidQty)
		return nil
	}

	if !b.matching {
		if typ == Market {
			b.reject(CreateOrder, id, qty, ErrNoMatching)
			return nil
		}
		if b.wouldCross(side, price) {
			b.reject(CreateOrder, id, qty, ErrNoMatching)
			return nil
		}
	}

	if flag.Has(StopLoss | TakeProfit) {
		if !trigPrice.IsPositive() {
			b.reject(CreateOrder, id, qty, ErrInvalidTriggerPrice)
			return nil
		}
		b.notify.PutOrder(CreateOrder, Accepted, id, qty, nil)
		if b.trigger != nil {
			b.trigger(id, typ, side, qty, price, trigPrice, flag)
		}
		return nil
	}

	if typ != Market {
		if b.HasOrder(id) {
			b.reject(CreateOrder, id, decimal.Zero, ErrOrderExists)
			return nil
		}
		if !price.IsPositive() {
			b.reject(CreateOrder, id, decimal.Zero, ErrInvalidPrice)
			return nil
		}
	}

	b.notify.PutOrder(CreateOrder, Accepted, id, qty, nil)
	b.process(id, typ, side, qty, price, flag)
	return nil
}

// CancelOrder removes a resting order.
func (b *OrderBook) CancelOrder(tok uint64, id OrderID) error {
	if err := b.advance(tok); err != nil {
		return err
	}

	h, ok := b.index.Get(id)
	if !ok {
		b.reject(CancelOrder, id, decimal.Zero, ErrOrderNotExists)
		return nil
	}

	o := b.orders.Get(h)
	qty := o.Qty
	b.detach(o)
	b.notify.PutOrder(CancelOrder, Canceled, id, qty, nil)
	return nil
}

// HasOrder reports whether id is resting in the book.
func (b *OrderBook) HasOrder(id OrderID) bool {
	_, ok := b.index.Get(id)
	return ok
}

// Order returns a copy of the resting order id.
func (b *OrderBook) Order(id OrderID) (Order, bool) {
	h, ok := b.index.Get(id)
	if !ok {
		return Order{}, false
	}
	return *b.orders.Get(h), true
}

func (b *OrderBook) LastPrice() decimal.Decimal { return b.lastPrice }
func (b *OrderBook) LastToken() uint64          { return b.lastToken }
func (b *OrderBook) Matching() bool             { return b.matching }

// SetMatching halts or resumes matching. While halted, market orders
// and crossing limit orders are rejected with NoMatching.
func (b *OrderBook) SetMatching(on bool) { b.matching = on }

// Len reports the number of resting orders.
func (b *OrderBook) Len() int { return b.index.Len() }

func (b *OrderBook) Bids() *PriceLevel { return b.bids }
func (b *OrderBook) Asks() *PriceLevel { return b.asks }

// Depth returns both sides best to worst.
func (b *OrderBook) Depth() (bids, asks []LevelView) {
	return b.bids.Views(), b.asks.Views()
}

// String renders the book as rows of "qty\tprice | price\tqty", best
// prices on the first row.
func (b *OrderBook) String() string {
	bids, asks := b.Depth()

	var sb strings.Builder
	for i := 0; i < len(bids) || i < len(asks); i++ {
		if i < len(bids) {
			sb.WriteString(bids[i].TotalQty.String())
			sb.WriteByte('\t')
			sb.WriteString(bids[i].Price.String())
		} else {
			sb.WriteString("\t\t\t")
		}

		sb.WriteString(" | ")
		if i < len(asks) {
			sb.WriteString(asks[i].Price.String())
			sb.WriteByte('\t')
			sb.WriteString(asks[i].TotalQty.String())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// advance is the determinism check. It is a plain comparison: the book
// relies on its caller being the only writer.
func (b *OrderBook) advance(tok uint64) error {
	if tok != b.lastToken+1 {
		return outOfSequence(tok, b.lastToken)
	}
	b.lastToken = tok
	return nil
}

func (b *OrderBook) reject(msg MsgType, id OrderID, qty decimal.Decimal, code Error) {
	b.notify.PutOrder(msg, Rejected, id, qty, code)
}

func (b *OrderBook) wouldCross(side Side, price decimal.Decimal) bool {
	if side == Buy {
		q := b.asks.Queue()
		return q != nil && q.Price().LessThanOrEqual(price)
	}
	q := b.bids.Queue()
	return q != nil && q.Price().GreaterThanOrEqual(price)
}

func (b *OrderBook) contra(side Side) *PriceLevel {
	if side == Buy {
		return b.asks
	}
	return b.bids
}

func (b *OrderBook) own(side Side) *PriceLevel {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) process(id OrderID, typ Type, side Side, qty, price decimal.Decimal, flag Flag) {
	if typ == Market {
		b.contra(side).ProcessMarketOrder(b.onTrade, b.onFill, id, qty, flag)
		return
	}

	processed := b.contra(side).ProcessLimitOrder(b.onTrade, b.onFill, id, price, qty, flag)
	if flag.Has(IoC | FoK) {
		return
	}

	left := qty.Sub(processed)
	if !left.IsPositive() {
		return
	}

	h, o := b.orders.Acquire()
	*o = Order{
		ID:        id,
		Qty:       left,
		Price:     price,
		TrigPrice: decimal.Zero,
		Type:      typ,
		Side:      side,
		Flag:      flag,
		self:      h,
	}
	b.own(side).Append(o)
	b.index.Set(id, h)
}

// detach removes a resting order from its level and the index, then
// returns it to the pool.
func (b *OrderBook) detach(o *Order) {
	h := o.self
	b.own(o.Side).Remove(o)
	b.index.Delete(o.ID)
	b.orders.Release(h)
}

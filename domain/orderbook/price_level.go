package orderbook

import (
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"matchbook/infra/memory"
)

type levelKey struct {
	price decimal.Decimal
	queue memory.Handle
}

// PriceLevel indexes the order queues of one side of the book by price.
// Iteration order is priority order: descending prices for bids and
// trigger-over levels, ascending for asks and trigger-under levels.
type PriceLevel struct {
	priceType PriceType
	tree      *btree.BTreeG[levelKey]

	orders *memory.Pool[Order]
	queues *memory.Pool[OrderQueue]

	volume    decimal.Decimal
	numOrders int
	depth     int
}

// NewPriceLevel creates an empty level. The level shares the order and
// queue pools of its book.
func NewPriceLevel(pt PriceType, orders *memory.Pool[Order], queues *memory.Pool[OrderQueue]) *PriceLevel {
	var less func(a, b levelKey) bool
	if pt.descending() {
		less = func(a, b levelKey) bool { return a.price.GreaterThan(b.price) }
	} else {
		less = func(a, b levelKey) bool { return a.price.LessThan(b.price) }
	}

	return &PriceLevel{
		priceType: pt,
		tree:      btree.NewBTreeGOptions(less, btree.Options{NoLocks: true}),
		orders:    orders,
		queues:    queues,
		volume:    decimal.Zero,
	}
}

func (pt PriceType) descending() bool {
	return pt == BidPrice || pt == TriggerOver
}

func (pl *PriceLevel) Type() PriceType         { return pl.priceType }
func (pl *PriceLevel) Len() int                { return pl.numOrders }
func (pl *PriceLevel) Depth() int              { return pl.depth }
func (pl *PriceLevel) Volume() decimal.Decimal { return pl.volume }

// Append queues o at the tail of its price, creating the queue if this
// is the first order at that price.
func (pl *PriceLevel) Append(o *Order) {
	price := o.PriceFor(pl.priceType)

	key, ok := pl.tree.Get(levelKey{price: price})
	if !ok {
		h, q := pl.queues.Acquire()
		q.init(h, price, pl.orders)
		key = levelKey{price: price, queue: h}
		pl.tree.Set(key)
		pl.depth++
	}

	pl.queues.Get(key.queue).Append(o)
	pl.numOrders++
	pl.volume = pl.volume.Add(o.Qty)
}

// Remove unlinks o from its queue and drops the queue once it is empty.
func (pl *PriceLevel) Remove(o *Order) {
	qh := o.queue
	q := pl.queues.Get(qh)
	if q == nil {
		return
	}

	q.Remove(o)
	pl.numOrders--
	pl.volume = pl.volume.Sub(o.Qty)

	if q.Len() == 0 {
		pl.tree.Delete(levelKey{price: q.price})
		pl.queues.Release(qh)
		pl.depth--
	}
}

// Queue returns the best queue, or nil when the level is empty.
func (pl *PriceLevel) Queue() *OrderQueue {
	key, ok := pl.tree.Min()
	if !ok {
		return nil
	}
	return pl.queues.Get(key.queue)
}

// QueueAt returns the queue resting at price, if any.
func (pl *PriceLevel) QueueAt(price decimal.Decimal) *OrderQueue {
	key, ok := pl.tree.Get(levelKey{price: price})
	if !ok {
		return nil
	}
	return pl.queues.Get(key.queue)
}

// NextQueue returns the queue that follows price in priority order,
// i.e. the next worse price.
func (pl *PriceLevel) NextQueue(price decimal.Decimal) *OrderQueue {
	var next *OrderQueue
	pl.tree.Ascend(levelKey{price: price}, func(k levelKey) bool {
		if k.price.Equal(price) {
			return true
		}
		next = pl.queues.Get(k.queue)
		return false
	})
	return next
}

// LargestLessThan returns the queue with the highest price strictly
// below price, regardless of the level's priority direction.
func (pl *PriceLevel) LargestLessThan(price decimal.Decimal) *OrderQueue {
	var found *OrderQueue
	visit := func(k levelKey) bool {
		if k.price.GreaterThanOrEqual(price) {
			return true
		}
		found = pl.queues.Get(k.queue)
		return false
	}
	if pl.priceType.descending() {
		pl.tree.Ascend(levelKey{price: price}, visit)
	} else {
		pl.tree.Descend(levelKey{price: price}, visit)
	}
	return found
}

// SmallestGreaterThan returns the queue with the lowest price strictly
// above price, regardless of the level's priority direction.
func (pl *PriceLevel) SmallestGreaterThan(price decimal.Decimal) *OrderQueue {
	var found *OrderQueue
	visit := func(k levelKey) bool {
		if k.price.LessThanOrEqual(price) {
			return true
		}
		found = pl.queues.Get(k.queue)
		return false
	}
	if pl.priceType.descending() {
		pl.tree.Descend(levelKey{price: price}, visit)
	} else {
		pl.tree.Ascend(levelKey{price: price}, visit)
	}
	return found
}

// Scan visits queues best to worst until fn returns false.
func (pl *PriceLevel) Scan(fn func(q *OrderQueue) bool) {
	pl.tree.Scan(func(k levelKey) bool {
		return fn(pl.queues.Get(k.queue))
	})
}

// Views returns the level's prices best to worst.
func (pl *PriceLevel) Views() []LevelView {
	out := make([]LevelView, 0, pl.depth)
	pl.Scan(func(q *OrderQueue) bool {
		out = append(out, LevelView{Price: q.price, TotalQty: q.totalQty, Orders: q.size})
		return true
	})
	return out
}

// crosses reports whether a taker limited at limit may trade against a
// queue at price. A bid level is hit by sellers, so its prices must be
// at or above the limit; any other level is lifted by buyers.
func (pl *PriceLevel) crosses(price, limit decimal.Decimal) bool {
	if pl.priceType.descending() {
		return price.GreaterThanOrEqual(limit)
	}
	return price.LessThanOrEqual(limit)
}

// ProcessMarketOrder sweeps the level best price first until qty is
// filled or liquidity runs out, and returns the filled quantity.
func (pl *PriceLevel) ProcessMarketOrder(onTrade TradeFunc, onFill FillFunc, takerID OrderID, qty decimal.Decimal, flag Flag) decimal.Decimal {
	if flag.Has(AoN|FoK) && qty.GreaterThan(pl.volume) {
		return decimal.Zero
	}

	return pl.sweep(onTrade, onFill, takerID, qty, nil)
}

// ProcessLimitOrder sweeps the level while its best price crosses
// limit and returns the filled quantity. With AoN or FoK nothing fills
// unless the crossing liquidity covers qty in full.
func (pl *PriceLevel) ProcessLimitOrder(onTrade TradeFunc, onFill FillFunc, takerID OrderID, limit, qty decimal.Decimal, flag Flag) decimal.Decimal {
	q := pl.Queue()
	if q == nil || !pl.crosses(q.price, limit) {
		return decimal.Zero
	}

	if flag.Has(AoN|FoK) && !pl.canFill(limit, qty) {
		return decimal.Zero
	}

	return pl.sweep(onTrade, onFill, takerID, qty, &limit)
}

// canFill walks at most depth queues from the best price outward and
// reports whether the ones crossing limit hold at least qty.
func (pl *PriceLevel) canFill(limit, qty decimal.Decimal) bool {
	available := decimal.Zero
	q := pl.Queue()
	for i := 0; q != nil && i < pl.depth; i++ {
		if !pl.crosses(q.price, limit) {
			return false
		}
		available = available.Add(q.totalQty)
		if available.GreaterThanOrEqual(qty) {
			return true
		}
		q = pl.NextQueue(q.price)
	}
	return false
}

func (pl *PriceLevel) sweep(onTrade TradeFunc, onFill FillFunc, takerID OrderID, qty decimal.Decimal, limit *decimal.Decimal) decimal.Decimal {
	// Full fills reach the volume through onFill -> Remove; partial
	// fills only touch the queue, so account for them here.
	trade := func(makerID, takerID OrderID, makerStatus, takerStatus OrderStatus, fillQty, price decimal.Decimal) {
		if makerStatus == FilledPartial {
			pl.volume = pl.volume.Sub(fillQty)
		}
		onTrade(makerID, takerID, makerStatus, takerStatus, fillQty, price)
	}

	left := qty
	processed := decimal.Zero
	for q := pl.Queue(); q != nil && left.IsPositive(); q = pl.Queue() {
		if limit != nil && !pl.crosses(q.price, *limit) {
			break
		}
		done := q.process(trade, onFill, takerID, left)
		left = left.Sub(done)
		processed = processed.Add(done)
	}
	return processed
}

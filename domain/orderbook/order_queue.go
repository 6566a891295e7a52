package orderbook

import (
	"github.com/shopspring/decimal"

	"matchbook/infra/memory"
)

// TradeFunc receives one fill: maker, taker, their statuses after the
// fill, the filled quantity and the maker's price.
type TradeFunc func(makerID, takerID OrderID, makerStatus, takerStatus OrderStatus, qty, price decimal.Decimal)

// FillFunc detaches a fully consumed maker order from the book and
// releases it. It runs after the order's TradeFunc call.
type FillFunc func(o *Order)

// OrderQueue is the FIFO of orders resting at one price.
type OrderQueue struct {
	price    decimal.Decimal
	totalQty decimal.Decimal
	size     int

	head memory.Handle
	tail memory.Handle
	self memory.Handle

	orders *memory.Pool[Order]
}

func (q *OrderQueue) init(self memory.Handle, price decimal.Decimal, orders *memory.Pool[Order]) {
	q.self = self
	q.price = price
	q.totalQty = decimal.Zero
	q.orders = orders
}

func (q *OrderQueue) Price() decimal.Decimal    { return q.price }
func (q *OrderQueue) TotalQty() decimal.Decimal { return q.totalQty }
func (q *OrderQueue) Len() int                  { return q.size }

func (q *OrderQueue) Head() *Order { return q.orders.Get(q.head) }
func (q *OrderQueue) Tail() *Order { return q.orders.Get(q.tail) }

// Append links o at the tail.
func (q *OrderQueue) Append(o *Order) {
	o.queue = q.self
	o.prev = q.tail
	o.next = memory.Nil
	if q.tail == memory.Nil {
		q.head = o.self
	} else {
		q.orders.Get(q.tail).next = o.self
	}
	q.tail = o.self
	q.size++
	q.totalQty = q.totalQty.Add(o.Qty)
}

// Remove unlinks o, wherever it sits in the queue.
func (q *OrderQueue) Remove(o *Order) {
	if o.prev == memory.Nil {
		q.head = o.next
	} else {
		q.orders.Get(o.prev).next = o.next
	}
	if o.next == memory.Nil {
		q.tail = o.prev
	} else {
		q.orders.Get(o.next).prev = o.prev
	}
	o.prev, o.next, o.queue = memory.Nil, memory.Nil, memory.Nil
	q.size--
	q.totalQty = q.totalQty.Sub(o.Qty)
}

// process fills up to qty for takerID against the queue, oldest order
// first, and returns the quantity filled. A partially filled head stays
// in place. When the last member is consumed the queue may already be
// released by onFill, so the receiver is not touched afterwards.
func (q *OrderQueue) process(onTrade TradeFunc, onFill FillFunc, takerID OrderID, qty decimal.Decimal) decimal.Decimal {
	processed := decimal.Zero
	orders := q.orders

	for h := q.head; h != memory.Nil && qty.IsPositive(); {
		ho := orders.Get(h)
		next := ho.next

		switch ho.Qty.Cmp(qty) {
		case 1:
			ho.Qty = ho.Qty.Sub(qty)
			q.totalQty = q.totalQty.Sub(qty)
			processed = processed.Add(qty)
			onTrade(ho.ID, takerID, FilledPartial, FilledComplete, qty, ho.Price)
			return processed
		case -1:
			filled := ho.Qty
			processed = processed.Add(filled)
			qty = qty.Sub(filled)
			onTrade(ho.ID, takerID, FilledComplete, FilledPartial, filled, ho.Price)
			onFill(ho)
		default:
			filled := ho.Qty
			processed = processed.Add(filled)
			onTrade(ho.ID, takerID, FilledComplete, FilledComplete, filled, ho.Price)
			onFill(ho)
			return processed
		}

		h = next
	}

	return processed
}

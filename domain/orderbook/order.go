package orderbook

import (
	"github.com/shopspring/decimal"

	"matchbook/infra/memory"
)

// Order is a resting order record. It lives in the book's order pool
// and is linked into exactly one OrderQueue by handle.
type Order struct {
	ID        OrderID
	Qty       decimal.Decimal
	Price     decimal.Decimal
	TrigPrice decimal.Decimal
	Type      Type
	Side      Side
	Flag      Flag

	self  memory.Handle
	queue memory.Handle
	prev  memory.Handle
	next  memory.Handle
}

// PriceFor returns the price the order is indexed by in a level of
// the given type.
func (o *Order) PriceFor(pt PriceType) decimal.Decimal {
	if pt == TriggerOver || pt == TriggerUnder {
		return o.TrigPrice
	}
	return o.Price
}

// Handle returns the pool handle of the order.
func (o *Order) Handle() memory.Handle { return o.self }

// Next returns the handle of the order queued behind this one.
func (o *Order) Next() memory.Handle { return o.next }

// Prev returns the handle of the order queued ahead of this one.
func (o *Order) Prev() memory.Handle { return o.prev }

package orderbook

import "github.com/shopspring/decimal"

// Notification receives the book's events synchronously, on the
// writer's goroutine, in the order they happen.
//
// PutOrder's err is nil unless status is Rejected, in which case it is
// one of the Error codes.
type Notification interface {
	PutOrder(msg MsgType, status OrderStatus, id OrderID, qty decimal.Decimal, err error)
	PutTrade(makerID, takerID OrderID, makerStatus, takerStatus OrderStatus, qty, price decimal.Decimal)
}

// EmptyNotification discards every event.
type EmptyNotification struct{}

func (EmptyNotification) PutOrder(MsgType, OrderStatus, OrderID, decimal.Decimal, error) {}

func (EmptyNotification) PutTrade(OrderID, OrderID, OrderStatus, OrderStatus, decimal.Decimal, decimal.Decimal) {
}

// Fanout forwards every event to each of its members in turn.
type Fanout []Notification

func (f Fanout) PutOrder(msg MsgType, status OrderStatus, id OrderID, qty decimal.Decimal, err error) {
	for _, n := range f {
		n.PutOrder(msg, status, id, qty, err)
	}
}

func (f Fanout) PutTrade(makerID, takerID OrderID, makerStatus, takerStatus OrderStatus, qty, price decimal.Decimal) {
	for _, n := range f {
		n.PutTrade(makerID, takerID, makerStatus, takerStatus, qty, price)
	}
}

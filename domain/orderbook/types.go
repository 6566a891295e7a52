package orderbook

import "github.com/shopspring/decimal"

// OrderID identifies an order. It is unique among resting orders only
// and may be reused once the order is filled or canceled.
type OrderID = uint64

type Side uint8
type Type uint8
type MsgType uint8
type OrderStatus uint8
type PriceType uint8

const (
	Buy Side = iota
	Sell
)

const (
	Limit Type = iota
	Market
)

const (
	CreateOrder MsgType = iota
	CancelOrder
)

const (
	Rejected OrderStatus = iota
	Canceled
	FilledPartial
	FilledComplete
	Accepted
)

// PriceType selects both the price an order is indexed by and the
// direction in which a PriceLevel considers prices "better".
const (
	BidPrice PriceType = iota
	AskPrice
	TriggerOver
	TriggerUnder
)

// Flag is a bitmask of order instructions.
type Flag uint8

const (
	None       Flag = 0
	IoC        Flag = 1
	AoN        Flag = 2
	FoK        Flag = 4
	StopLoss   Flag = 8
	TakeProfit Flag = 16
	Snapshot   Flag = 32
)

// Has reports whether any bit of mask is set.
func (f Flag) Has(mask Flag) bool { return f&mask != 0 }

func (s Side) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	default:
		return "Unknown"
	}
}

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (t Type) String() string {
	switch t {
	case Limit:
		return "Limit"
	case Market:
		return "Market"
	default:
		return "Unknown"
	}
}

func (m MsgType) String() string {
	switch m {
	case CreateOrder:
		return "CreateOrder"
	case CancelOrder:
		return "CancelOrder"
	default:
		return "Unknown"
	}
}

func (s OrderStatus) String() string {
	switch s {
	case Rejected:
		return "Rejected"
	case Canceled:
		return "Canceled"
	case FilledPartial:
		return "FilledPartial"
	case FilledComplete:
		return "FilledComplete"
	case Accepted:
		return "Accepted"
	default:
		return "Unknown"
	}
}

func (p PriceType) String() string {
	switch p {
	case BidPrice:
		return "Bid"
	case AskPrice:
		return "Ask"
	case TriggerOver:
		return "TriggerOver"
	case TriggerUnder:
		return "TriggerUnder"
	default:
		return "Unknown"
	}
}

func (f Flag) String() string {
	switch f {
	case None:
		return "None"
	case IoC:
		return "IoC"
	case AoN:
		return "AoN"
	case FoK:
		return "FoK"
	case StopLoss:
		return "StopLoss"
	case TakeProfit:
		return "TakeProfit"
	case Snapshot:
		return "Snapshot"
	default:
		return "Mixed"
	}
}

// LevelView is a read-only summary of one price in a PriceLevel.
type LevelView struct {
	Price    decimal.Decimal
	TotalQty decimal.Decimal
	Orders   int
}

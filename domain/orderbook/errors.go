package orderbook

import "github.com/cockroachdb/errors"

// Error is a rejection code carried by a Rejected order event.
type Error uint16

const (
	ErrInvalidQty Error = iota + 1
	ErrInvalidPrice
	ErrInvalidTriggerPrice
	ErrOrderID
	ErrOrderExists
	ErrOrderNotExists
	ErrInsufficientQty
	ErrNoMatching
)

var _ error = Error(0)

func (e Error) Error() string {
	switch e {
	case ErrInvalidQty:
		return "InvalidQty"
	case ErrInvalidPrice:
		return "InvalidPrice"
	case ErrInvalidTriggerPrice:
		return "InvalidTriggerPrice"
	case ErrOrderID:
		return "OrderID"
	case ErrOrderExists:
		return "OrderExists"
	case ErrOrderNotExists:
		return "OrderNotExists"
	case ErrInsufficientQty:
		return "InsufficientQty"
	case ErrNoMatching:
		return "NoMatching"
	default:
		return "Unknown"
	}
}

// ErrOutOfSequence is returned when a call's token is not exactly one
// past the last applied token. It means the single-writer contract is
// broken upstream and is not recoverable: the book refuses the call
// without touching any state, and the caller must stop feeding it.
var ErrOutOfSequence = errors.New("invalid token received: cannot maintain determinism")

func outOfSequence(tok, last uint64) error {
	return errors.Wrapf(ErrOutOfSequence, "token %d after %d", tok, last)
}

// Package events defines the envelope the engine publishes for every
// order and trade notification.
package events

import (
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const Version = 1

type Kind string

const (
	KindOrder Kind = "order"
	KindTrade Kind = "trade"
)

// Event is one book notification. Seq orders events across the whole
// engine; Token is the book call that produced it.
type Event struct {
	V     int       `json:"v"`
	Seq   uint64    `json:"seq"`
	RunID uuid.UUID `json:"run_id"`
	Token uint64    `json:"token"`
	Time  int64     `json:"ts"`
	Kind  Kind      `json:"kind"`

	Order *Order `json:"order,omitempty"`
	Trade *Trade `json:"trade,omitempty"`
}

type Order struct {
	Msg    string          `json:"msg"`
	Status string          `json:"status"`
	ID     uint64          `json:"id"`
	Qty    decimal.Decimal `json:"qty"`
	Err    string          `json:"err,omitempty"`
}

type Trade struct {
	MakerID     uint64          `json:"maker_id"`
	TakerID     uint64          `json:"taker_id"`
	MakerStatus string          `json:"maker_status"`
	TakerStatus string          `json:"taker_status"`
	Qty         decimal.Decimal `json:"qty"`
	Price       decimal.Decimal `json:"price"`
}

// Key is the partition key: the order id, or the taker for trades, so
// all events of one taker land on one partition.
func (e *Event) Key() []byte {
	switch {
	case e.Order != nil:
		return strconv.AppendUint(nil, e.Order.ID, 10)
	case e.Trade != nil:
		return strconv.AppendUint(nil, e.Trade.TakerID, 10)
	default:
		return nil
	}
}

func Encode(e *Event) ([]byte, error) {
	return sonic.ConfigStd.Marshal(e)
}

func Decode(b []byte) (*Event, error) {
	var e Event
	if err := sonic.ConfigStd.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// KeyOf decodes payload just far enough to return its Key. Undecodable
// payloads get no key.
func KeyOf(payload []byte) []byte {
	e, err := Decode(payload)
	if err != nil {
		return nil
	}
	return e.Key()
}

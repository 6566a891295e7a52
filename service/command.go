package service

import (
	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/encoding/protowire"

	"matchbook/domain/orderbook"
)

// PlaceOrder is an add-order command.
type PlaceOrder struct {
	ID        orderbook.OrderID
	Type      orderbook.Type
	Side      orderbook.Side
	Qty       decimal.Decimal
	Price     decimal.Decimal
	TrigPrice decimal.Decimal
	Flag      orderbook.Flag
}

var ErrBadCommand = errors.New("malformed command payload")

// Journal payloads use the protobuf wire format so fields can be added
// without breaking old journals. Decimals travel as their canonical
// string.
const (
	fieldID        protowire.Number = 1
	fieldType      protowire.Number = 2
	fieldSide      protowire.Number = 3
	fieldQty       protowire.Number = 4
	fieldPrice     protowire.Number = 5
	fieldTrigPrice protowire.Number = 6
	fieldFlag      protowire.Number = 7
	fieldHalted    protowire.Number = 8
)

// addCommand is PlaceOrder plus the matching state it was applied under.
type addCommand struct {
	PlaceOrder
	Halted bool
}

func encodeAdd(c addCommand) []byte {
	b := make([]byte, 0, 64)
	b = appendVarint(b, fieldID, c.ID)
	b = appendVarint(b, fieldType, uint64(c.Type))
	b = appendVarint(b, fieldSide, uint64(c.Side))
	b = appendDecimal(b, fieldQty, c.Qty)
	b = appendDecimal(b, fieldPrice, c.Price)
	b = appendDecimal(b, fieldTrigPrice, c.TrigPrice)
	b = appendVarint(b, fieldFlag, uint64(c.Flag))
	if c.Halted {
		b = appendVarint(b, fieldHalted, 1)
	}
	return b
}

func decodeAdd(b []byte) (addCommand, error) {
	c := addCommand{PlaceOrder: PlaceOrder{
		Qty:       decimal.Zero,
		Price:     decimal.Zero,
		TrigPrice: decimal.Zero,
	}}

	err := consumeFields(b, func(num protowire.Number, v uint64, raw []byte) error {
		var err error
		switch num {
		case fieldID:
			c.ID = v
		case fieldType:
			c.Type = orderbook.Type(v)
		case fieldSide:
			c.Side = orderbook.Side(v)
		case fieldQty:
			c.Qty, err = decimal.NewFromString(string(raw))
		case fieldPrice:
			c.Price, err = decimal.NewFromString(string(raw))
		case fieldTrigPrice:
			c.TrigPrice, err = decimal.NewFromString(string(raw))
		case fieldFlag:
			c.Flag = orderbook.Flag(v)
		case fieldHalted:
			c.Halted = v != 0
		}
		return err
	})
	return c, err
}

func encodeCancel(id orderbook.OrderID) []byte {
	return appendVarint(nil, fieldID, id)
}

func decodeCancel(b []byte) (orderbook.OrderID, error) {
	var id orderbook.OrderID
	err := consumeFields(b, func(num protowire.Number, v uint64, _ []byte) error {
		if num == fieldID {
			id = v
		}
		return nil
	})
	return id, err
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendDecimal(b []byte, num protowire.Number, d decimal.Decimal) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, d.String())
}

// consumeFields walks a message, handing varint and bytes fields to fn
// and skipping everything else.
func consumeFields(b []byte, fn func(num protowire.Number, v uint64, raw []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Wrap(ErrBadCommand, protowire.ParseError(n).Error())
		}
		b = b[n:]

		var (
			v   uint64
			raw []byte
		)
		switch typ {
		case protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			raw, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return errors.Wrapf(ErrBadCommand, "field %d: %s", num, protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.VarintType && typ != protowire.BytesType {
			continue
		}
		if err := fn(num, v, raw); err != nil {
			return errors.Wrapf(ErrBadCommand, "field %d: %v", num, err)
		}
	}
	return nil
}

package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"matchbook/domain/orderbook"
)

func TestAddCommandCodec(t *testing.T) {
	in := addCommand{
		PlaceOrder: PlaceOrder{
			ID:        1150,
			Type:      orderbook.Limit,
			Side:      orderbook.Sell,
			Qty:       decimal.RequireFromString("10.125"),
			Price:     decimal.RequireFromString("150"),
			TrigPrice: decimal.RequireFromString("149.5"),
			Flag:      orderbook.StopLoss,
		},
		Halted: true,
	}

	out, err := decodeAdd(encodeAdd(in))
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Type, out.Type)
	assert.Equal(t, in.Side, out.Side)
	assert.Equal(t, in.Flag, out.Flag)
	assert.True(t, out.Halted)
	assert.True(t, in.Qty.Equal(out.Qty))
	assert.True(t, in.Price.Equal(out.Price))
	assert.True(t, in.TrigPrice.Equal(out.TrigPrice))
}

func TestAddCommandSkipsUnknownFields(t *testing.T) {
	b := encodeAdd(addCommand{PlaceOrder: PlaceOrder{ID: 7, Qty: decimal.NewFromInt(1), Price: decimal.Zero, TrigPrice: decimal.Zero}})
	b = protowire.AppendTag(b, 99, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 42)

	out, err := decodeAdd(b)
	require.NoError(t, err)
	assert.Equal(t, orderbook.OrderID(7), out.ID)
	assert.False(t, out.Halted)
}

func TestCommandCodecErrors(t *testing.T) {
	_, err := decodeAdd([]byte{0x08})
	require.ErrorIs(t, err, ErrBadCommand)

	bad := appendVarint(nil, fieldID, 1)
	bad = protowire.AppendTag(bad, fieldQty, protowire.BytesType)
	bad = protowire.AppendString(bad, "not-a-number")
	_, err = decodeAdd(bad)
	require.ErrorIs(t, err, ErrBadCommand)

	id, err := decodeCancel(encodeCancel(170))
	require.NoError(t, err)
	assert.Equal(t, orderbook.OrderID(170), id)
}

package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"matchbook/domain/orderbook"
	"matchbook/infra/sequence"
)

func TestLogSink_WithOutbox(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	outbox := memOutbox(t)

	sink, err := NewSink(outbox, uuid.New(), zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	book := orderbook.NewOrderBook(orderbook.Fanout{sink, NewLogSink(zap.New(core).Sugar())})
	svc := NewOrderService(book, sequence.New(0), WithSink(sink))

	_, err = svc.PlaceOrder(limit(1, orderbook.Sell, "2", "100"))
	require.NoError(t, err)
	_, err = svc.PlaceOrder(limit(2, orderbook.Buy, "1", "100"))
	require.NoError(t, err)
	_, err = svc.PlaceOrder(limit(3, orderbook.Buy, "0", "100"))
	require.NoError(t, err)

	assert.Equal(t, 2, logs.FilterMessage("order").Len())
	trades := logs.FilterMessage("trade").All()
	require.Len(t, trades, 1)
	assert.Equal(t, uint64(1), trades[0].ContextMap()["maker"])
	assert.Equal(t, uint64(2), trades[0].ContextMap()["taker"])

	rejected := logs.FilterMessage("order rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, zapcore.WarnLevel, rejected[0].Level)

	// The outbox saw the same four events.
	assert.Len(t, outboxEvents(t, outbox), 4)
}

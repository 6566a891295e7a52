package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"matchbook/domain/orderbook"
	"matchbook/infra/sequence"
	entrywal "matchbook/infra/wal/entry"
	exitwal "matchbook/infra/wal/exit"
)

func benchPlace(b *testing.B, svc *OrderService) {
	prices := make([]decimal.Decimal, 32)
	for i := range prices {
		prices[i] = decimal.NewFromInt(int64(1000 + i))
	}
	qty := decimal.NewFromInt(1)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		side := orderbook.Buy
		price := prices[i%len(prices)]
		if i%2 == 1 {
			side = orderbook.Sell
		}
		if _, err := svc.PlaceOrder(PlaceOrder{
			ID:        uint64(i + 1),
			Type:      orderbook.Limit,
			Side:      side,
			Qty:       qty,
			Price:     price,
			TrigPrice: decimal.Zero,
		}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPlaceOrder_Core(b *testing.B) {
	book := orderbook.NewOrderBook(orderbook.EmptyNotification{})
	benchPlace(b, NewOrderService(book, sequence.New(0)))
}

func BenchmarkPlaceOrder_Journal(b *testing.B) {
	journal, err := entrywal.Open(entrywal.Config{
		Dir:         b.TempDir(),
		SegmentSize: 64 << 20,
	})
	if err != nil {
		b.Fatal(err)
	}
	defer journal.Close()

	book := orderbook.NewOrderBook(orderbook.EmptyNotification{})
	benchPlace(b, NewOrderService(book, sequence.New(0), WithJournal(journal)))
}

func BenchmarkPlaceOrder_JournalOutbox(b *testing.B) {
	journal, err := entrywal.Open(entrywal.Config{
		Dir:         b.TempDir(),
		SegmentSize: 64 << 20,
	})
	if err != nil {
		b.Fatal(err)
	}
	defer journal.Close()

	outbox, err := exitwal.Open(b.TempDir(), exitwal.Options{NoSync: true})
	if err != nil {
		b.Fatal(err)
	}
	defer outbox.Close()

	sink, err := NewSink(outbox, uuid.New(), zap.NewNop().Sugar())
	if err != nil {
		b.Fatal(err)
	}
	defer sink.Close()

	book := orderbook.NewOrderBook(sink)
	benchPlace(b, NewOrderService(book, sequence.New(0), WithJournal(journal), WithSink(sink)))
}

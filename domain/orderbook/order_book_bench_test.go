package orderbook

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func BenchmarkOrderBook_AddRest(b *testing.B) {
	book := NewOrderBook(EmptyNotification{})
	qty := decimal.NewFromInt(1)
	prices := make([]decimal.Decimal, 64)
	for i := range prices {
		prices[i] = decimal.NewFromInt(int64(1000 + i))
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tok := uint64(i + 1)
		_ = book.AddOrder(tok, OrderID(tok), Limit, Buy, qty, prices[i%len(prices)], decimal.Zero, None)
	}
}

func BenchmarkOrderBook_Mixed(b *testing.B) {
	book := NewOrderBook(EmptyNotification{})
	r := rand.New(rand.NewSource(42))

	var tok uint64
	var id OrderID
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tok++
		switch r.Intn(10) {
		case 0, 1:
			_ = book.CancelOrder(tok, OrderID(r.Int63n(int64(id)+1)))
		case 2:
			id++
			side := Side(r.Intn(2))
			_ = book.AddOrder(tok, id, Market, side, decimal.NewFromInt(int64(r.Intn(5)+1)), decimal.Zero, decimal.Zero, None)
		default:
			id++
			side := Side(r.Intn(2))
			price := decimal.NewFromInt(int64(1000 + r.Intn(40) - 20))
			if side == Sell {
				price = price.Add(decimal.NewFromInt(5))
			}
			_ = book.AddOrder(tok, id, Limit, side, decimal.NewFromInt(int64(r.Intn(5)+1)), price, decimal.Zero, None)
		}
	}
}

package service

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"matchbook/domain/orderbook"
)

// LogSink writes the book's events to a logger. Rejections go out at warn
// level, everything else at debug.
type LogSink struct {
	log *zap.SugaredLogger
}

var _ orderbook.Notification = (*LogSink)(nil)

func NewLogSink(log *zap.SugaredLogger) *LogSink {
	return &LogSink{log: log}
}

func (l *LogSink) PutOrder(msg orderbook.MsgType, status orderbook.OrderStatus, id orderbook.OrderID, qty decimal.Decimal, err error) {
	if status == orderbook.Rejected {
		l.log.Warnw("order rejected", "msg", msg, "id", id, "qty", qty, "reason", err)
		return
	}
	l.log.Debugw("order", "msg", msg, "status", status, "id", id, "qty", qty)
}

func (l *LogSink) PutTrade(makerID, takerID orderbook.OrderID, makerStatus, takerStatus orderbook.OrderStatus, qty, price decimal.Decimal) {
	l.log.Debugw("trade",
		"maker", makerID,
		"taker", takerID,
		"maker_status", makerStatus,
		"taker_status", takerStatus,
		"qty", qty,
		"price", price,
	)
}

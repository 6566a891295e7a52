package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"matchbook/config"
	"matchbook/domain/orderbook"
	"matchbook/events"
	"matchbook/infra/kafka"
	"matchbook/infra/sequence"
	entrywal "matchbook/infra/wal/entry"
	exitwal "matchbook/infra/wal/exit"
	"matchbook/jobs/broadcaster"
	"matchbook/service"
)

func main() {
	cfgPath := flag.String("config", "", "path to the YAML config; defaults apply when empty")
	demo := flag.Bool("demo", false, "seed a small book, cross it once and print it")
	flag.Parse()

	if err := run(*cfgPath, *demo); err != nil {
		fmt.Fprintf(os.Stderr, "engine: %+v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string, demo bool) error {
	cfg := config.Default()
	if cfgPath != "" {
		var err error
		if cfg, err = config.Load(cfgPath); err != nil {
			return err
		}
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	runID := uuid.New()
	log = log.With("run_id", runID.String())

	// ---------------- Exit WAL ----------------

	outbox, err := exitwal.Open(cfg.Outbox.Dir, exitwal.Options{NoSync: cfg.Outbox.NoSync})
	if err != nil {
		return err
	}
	defer outbox.Close()

	sink, err := service.NewSink(outbox, runID, log)
	if err != nil {
		return err
	}
	defer sink.Close()

	// ---------------- Entry WAL ----------------

	journal, err := entrywal.Open(entrywal.Config{
		Dir:             cfg.Journal.Dir,
		SegmentSize:     cfg.Journal.SegmentSize,
		SegmentDuration: cfg.Journal.SegmentDuration,
		SyncEveryWrite:  cfg.Journal.SyncEveryWrite,
	})
	if err != nil {
		return err
	}
	defer journal.Close()

	// ---------------- Domain ----------------

	book := orderbook.NewOrderBook(orderbook.Fanout{sink, service.NewLogSink(log)},
		orderbook.WithPoolSizes(cfg.Engine.OrderPoolSize, cfg.Engine.QueuePoolSize),
		orderbook.WithTriggerHook(func(id orderbook.OrderID, _ orderbook.Type, side orderbook.Side, qty, _, trig decimal.Decimal, flag orderbook.Flag) {
			log.Warnw("trigger order accepted without a trigger engine",
				"id", id, "side", side, "qty", qty, "trigger", trig, "flag", flag)
		}),
	)

	svc := service.NewOrderService(book, sequence.New(0),
		service.WithJournal(journal),
		service.WithSink(sink),
		service.WithLogger(log),
	)

	// ---------------- Journal replay ----------------

	if _, err := svc.Replay(cfg.Journal.Dir); err != nil {
		return err
	}
	if cfg.Engine.StartHalted {
		svc.SetMatching(false)
	}

	// ---------------- Background jobs ----------------

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Broadcaster.Enabled {
		pub, err := newPublisher(cfg)
		if err != nil {
			return err
		}
		bc := broadcaster.New(outbox, pub, events.KeyOf, broadcaster.Config{
			Interval:     cfg.Broadcaster.Interval,
			BatchSize:    cfg.Broadcaster.BatchSize,
			MaxRetries:   cfg.Broadcaster.MaxRetries,
			CleanupEvery: cfg.Broadcaster.CleanupEvery,
		}, log)
		bc.Start(ctx)
		defer func() {
			stop()
			bc.Wait()
			if err := bc.Close(); err != nil {
				log.Errorw("failed to close publisher", "error", err)
			}
		}()
	}

	if demo {
		if err := runDemo(svc); err != nil {
			return err
		}
		fmt.Print(svc.String())
	}

	log.Infow("engine running", "resting", book.Len(), "last_token", book.LastToken())
	<-ctx.Done()
	log.Infow("engine shutting down")
	return svc.Err()
}

func newLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Log.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}

	zc := zap.NewProductionConfig()
	if cfg.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level

	l, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return l.Sugar(), nil
}

func newPublisher(cfg *config.Config) (broadcaster.Publisher, error) {
	switch cfg.Broadcaster.Driver {
	case config.DriverKafkaGo:
		return kafka.NewProducer(cfg.Broadcaster.Brokers, cfg.Broadcaster.Topic), nil
	default:
		p, err := kafka.NewSyncProducer(cfg.Broadcaster.Brokers, cfg.Broadcaster.Topic)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// runDemo seeds bids 50..90 and asks 100..140 under ids 1000001 and up,
// then buys through the first ask.
func runDemo(svc *service.OrderService) error {
	base := uint64(1_000_000)
	place := func(id uint64, side orderbook.Side, qty, price int64) error {
		_, err := svc.PlaceOrder(service.PlaceOrder{
			ID:        base + id,
			Type:      orderbook.Limit,
			Side:      side,
			Qty:       decimal.NewFromInt(qty),
			Price:     decimal.NewFromInt(price),
			TrigPrice: decimal.Zero,
		})
		return err
	}

	for i := int64(0); i < 5; i++ {
		if err := place(uint64(i+1), orderbook.Buy, 2, 50+10*i); err != nil {
			return err
		}
		if err := place(uint64(i+6), orderbook.Sell, 2, 100+10*i); err != nil {
			return err
		}
	}
	return place(11, orderbook.Buy, 3, 110)
}

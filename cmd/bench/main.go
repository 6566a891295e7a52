// Command bench drives an order book with no event sink and reports
// throughput or per-call latency.
//
// Every round cancels the previous bid/ask pair and places a new pair
// one spread step up or down a random walk kept inside [-l, -u]. The
// ask is placed a spread below the bid, so each new pair trades.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"slices"
	"time"

	"github.com/grafana/pyroscope-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"matchbook/domain/orderbook"
)

type params struct {
	seed       int64
	duration   time.Duration
	depth      int
	lower      decimal.Decimal
	upper      decimal.Decimal
	spread     decimal.Decimal
	lockThread bool
}

func main() {
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	duration := flag.Duration("duration", 10*time.Second, "how long to run")
	lower := flag.String("l", "50.0", "lower price bound")
	upper := flag.String("u", "100.0", "upper price bound")
	spread := flag.String("m", "0.25", "minimum spread / walk step")
	depth := flag.Int("p", 10, "price levels seeded per side before a latency run")
	lockThread := flag.Bool("sched", false, "pin the benchmark goroutine to its OS thread")
	mode := flag.String("n", "latency", "latency | throughput")
	profileAddr := flag.String("pyroscope", "", "pyroscope server address; profiling is off when empty")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "bench: build logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Sugar()
	defer func() { _ = log.Sync() }()

	p := params{
		seed:       *seed,
		duration:   *duration,
		depth:      *depth,
		lockThread: *lockThread,
	}
	if p.lower, err = decimal.NewFromString(*lower); err != nil {
		log.Fatalw("bad -l", "error", err)
	}
	if p.upper, err = decimal.NewFromString(*upper); err != nil {
		log.Fatalw("bad -u", "error", err)
	}
	if p.spread, err = decimal.NewFromString(*spread); err != nil {
		log.Fatalw("bad -m", "error", err)
	}

	if *profileAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "matchbook.bench",
			ServerAddress:   *profileAddr,
			Tags:            map[string]string{"mode": *mode},
			Logger:          log,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalw("pyroscope start failed", "error", err)
		}
		defer func() { _ = profiler.Stop() }()
	}

	log.Infow("starting benchmark", "mode", *mode, "seed", p.seed, "duration", p.duration, "pid", os.Getpid())

	switch *mode {
	case "throughput":
		throughput(p)
	case "latency":
		latency(p)
	default:
		log.Fatalw("unknown mode", "mode", *mode)
	}
}

// walker produces the next bid/ask pair of the random walk.
type walker struct {
	r        *rand.Rand
	bid, ask decimal.Decimal
	p        params
}

func newWalker(p params) *walker {
	bid := p.lower.Add(p.upper).Div(decimal.NewFromInt(2))
	return &walker{
		r:   rand.New(rand.NewSource(p.seed)),
		bid: bid,
		ask: bid.Sub(p.spread),
		p:   p,
	}
}

func (w *walker) step() (bid, ask decimal.Decimal) {
	w.shift(w.r.Intn(10) < 5)
	if w.bid.LessThan(w.p.lower) {
		w.shift(false)
	} else if w.ask.GreaterThan(w.p.upper) {
		w.shift(true)
	}
	return w.bid, w.ask
}

func (w *walker) shift(down bool) {
	d := w.p.spread
	if down {
		d = d.Neg()
	}
	w.bid = w.bid.Add(d)
	w.ask = w.ask.Add(d)
}

// round is one cancel/cancel/add/add cycle.
type round struct {
	book          *orderbook.OrderBook
	tok           uint64
	buyID, sellID orderbook.OrderID
	qty           decimal.Decimal
}

// op runs step i (0-3) of the cycle.
func (r *round) op(i int, bid, ask decimal.Decimal) {
	r.tok++
	switch i {
	case 0:
		_ = r.book.CancelOrder(r.tok, r.buyID)
	case 1:
		_ = r.book.CancelOrder(r.tok, r.sellID)
	case 2:
		r.buyID = r.tok
		_ = r.book.AddOrder(r.tok, r.buyID, orderbook.Limit, orderbook.Buy, r.qty, bid, decimal.Zero, orderbook.None)
	case 3:
		r.sellID = r.tok
		_ = r.book.AddOrder(r.tok, r.sellID, orderbook.Limit, orderbook.Sell, r.qty, ask, decimal.Zero, orderbook.None)
	}
}

func throughput(p params) {
	if p.lockThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	w := newWalker(p)
	r := &round{book: orderbook.NewOrderBook(orderbook.EmptyNotification{}), qty: decimal.NewFromInt(10)}

	var operations uint64
	start := time.Now()
	end := start.Add(p.duration)
	for time.Now().Before(end) {
		bid, ask := w.step()
		for i := 0; i < 4; i++ {
			r.op(i, bid, ask)
		}
		operations += 4
	}
	elapsed := time.Since(start)

	fmt.Printf("Total Ops: %d ops\n", operations)
	fmt.Printf("Throughput: %.2f ops/sec\n", float64(operations)/elapsed.Seconds())
	fmt.Printf("Avg latency: %.2f ns/op\n", float64(elapsed.Nanoseconds())/float64(operations))
}

func latency(p params) {
	if p.lockThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	w := newWalker(p)
	r := &round{book: orderbook.NewOrderBook(orderbook.EmptyNotification{}), qty: decimal.NewFromInt(10)}
	seedDepth(r, w, p.depth)

	samples := make([]time.Duration, 0, 1<<20)
	end := time.Now().Add(p.duration)
	for time.Now().Before(end) {
		bid, ask := w.step()
		for i := 0; i < 4; i++ {
			t0 := time.Now()
			r.op(i, bid, ask)
			samples = append(samples, time.Since(t0))
		}
	}
	if len(samples) == 0 {
		fmt.Println("no samples")
		return
	}

	slices.Sort(samples)
	pct := func(q float64) time.Duration {
		return samples[int(q*float64(len(samples)-1))]
	}
	fmt.Printf("Samples: %d\n", len(samples))
	for _, q := range []float64{0.5, 0.9, 0.99, 0.999} {
		fmt.Printf("p%-5g %v\n", q*100, pct(q))
	}
	fmt.Printf("max    %v\n", samples[len(samples)-1])
	fmt.Printf("resting orders at end: %d\n", r.book.Len())
}

// seedDepth rests depth levels on each side, away from the walk, so
// cancels and adds run against a populated book.
func seedDepth(r *round, w *walker, depth int) {
	step := w.p.spread
	for i := 1; i <= depth; i++ {
		off := step.Mul(decimal.NewFromInt(int64(i)))
		r.tok++
		_ = r.book.AddOrder(r.tok, r.tok, orderbook.Limit, orderbook.Buy, r.qty, w.p.lower.Sub(off), decimal.Zero, orderbook.None)
		r.tok++
		_ = r.book.AddOrder(r.tok, r.tok, orderbook.Limit, orderbook.Sell, r.qty, w.p.upper.Add(off), decimal.Zero, orderbook.None)
	}
}

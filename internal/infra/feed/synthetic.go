package feed

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"paper_trade/internal/domain"
	"paper_trade/pkg/quant"
)

// GeometricBrownianMotion is a GBM price process.
type GeometricBrownianMotion struct {
	Drift      float64 // mu
	Volatility float64 // sigma
	Rand       *rand.Rand
}

// NewGBM creates a seeded process.
func NewGBM(drift, volatility float64, seed int64) *GeometricBrownianMotion {
	return &GeometricBrownianMotion{
		Drift:      drift,
		Volatility: volatility,
		Rand:       rand.New(rand.NewSource(seed)),
	}
}

// Next evolves price by one step of length dt.
func (g *GeometricBrownianMotion) Next(price, dt float64) float64 {
	z := g.Rand.NormFloat64()
	return price * math.Exp((g.Drift-0.5*g.Volatility*g.Volatility)*dt+g.Volatility*math.Sqrt(dt)*z)
}

// SyntheticConfig configures a SyntheticFeed.
type SyntheticConfig struct {
	Symbols     []string
	StartPrices map[string]quant.PriceMicros
	Interval    time.Duration
	Drift       float64
	Volatility  float64 // per step
	SpreadBps   int64   // full bid/ask spread around the mid
	Seed        int64
}

// SyntheticFeed generates random-walk ticks for paper trading without an
// external source. Floats stay inside the generator; ticks are fixed-point.
type SyntheticFeed struct {
	cfg    SyntheticConfig
	gbm    *GeometricBrownianMotion
	prices map[string]float64
	out    Publisher
	log    *slog.Logger
	now    func() time.Time
	counters
}

// NewSyntheticFeed validates cfg and seeds the generator.
func NewSyntheticFeed(cfg SyntheticConfig, out Publisher, log *slog.Logger) (*SyntheticFeed, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("synthetic feed: interval must be positive")
	}
	if log == nil {
		log = slog.Default()
	}
	f := &SyntheticFeed{
		cfg:    cfg,
		gbm:    NewGBM(cfg.Drift, cfg.Volatility, cfg.Seed),
		prices: make(map[string]float64, len(cfg.Symbols)),
		out:    out,
		log:    log,
		now:    time.Now,
	}
	for _, sym := range cfg.Symbols {
		p, ok := cfg.StartPrices[sym]
		if !ok || p <= 0 {
			return nil, fmt.Errorf("synthetic feed: no start price for %s", sym)
		}
		f.prices[sym] = float64(p) / quant.PriceScale
	}
	return f, nil
}

// Step publishes the current price of every symbol, in configured order,
// then advances each price by one GBM step.
func (f *SyntheticFeed) Step() {
	ts := quant.TimeStamp(f.now().UnixMicro())
	for _, sym := range f.cfg.Symbols {
		tick := f.quote(sym, ts)
		if err := publish(f.out, "SYNTHETIC", tick, &f.counters); err != nil {
			f.log.Warn("FEED_TICK_INVALID", slog.String("symbol", sym), slog.Any("error", err))
		}
		f.prices[sym] = f.gbm.Next(f.prices[sym], 1)
	}
}

func (f *SyntheticFeed) quote(sym string, ts quant.TimeStamp) domain.MarketTick {
	mid := max(quant.ToPriceMicros(f.prices[sym]), 1)
	half := f.cfg.SpreadBps / 2
	return domain.MarketTick{
		Symbol:     sym,
		LastMicros: mid,
		BidMicros:  max(quant.SlipDown(mid, half), 1),
		AskMicros:  quant.SlipUp(mid, f.cfg.SpreadBps-half),
		Ts:         ts,
	}
}

// Run publishes immediately and then every Interval until ctx is done.
func (f *SyntheticFeed) Run(ctx context.Context) {
	f.log.Info("FEED_STARTED",
		slog.String("source", "SYNTHETIC"),
		slog.Any("symbols", f.cfg.Symbols),
		slog.Duration("interval", f.cfg.Interval))

	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	f.Step()
	for {
		select {
		case <-ctx.Done():
			st := f.Stats()
			f.log.Info("FEED_STOPPED",
				slog.String("source", "SYNTHETIC"),
				slog.Uint64("published", st.Published),
				slog.Uint64("dropped", st.Dropped))
			return
		case <-ticker.C:
			f.Step()
		}
	}
}

// Stats returns publish counters.
func (f *SyntheticFeed) Stats() Stats {
	return f.stats()
}

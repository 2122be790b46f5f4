// Package backtest replays journaled ticks through a fresh engine on a
// virtual clock, optionally with a strategy attached.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"paper_trade/internal/domain"
	"paper_trade/internal/engine"
	"paper_trade/internal/execution"
	"paper_trade/internal/storage"
	"paper_trade/internal/strategy"
)

// Options configures a replay. Zero CashCurrency and InitialCash fall back
// to what the journal recorded.
type Options struct {
	FromSeq         uint64
	CashCurrency    string
	Assets          []string
	InitialCash     int64
	SlippageBps     int64
	AcceptanceDelay time.Duration
	Strategy        strategy.Strategy
	Logger          *slog.Logger
}

// Result summarizes a replay.
type Result struct {
	Ticks        int
	FirstSeq     uint64
	LastSeq      uint64
	CashCurrency string
	InitialCash  int64
	Valuation    execution.Valuation
	Orders       []domain.Order
	Positions    []domain.Position
}

// Replayer reads ticks from a journal and feeds them into a Sequencer.
type Replayer struct {
	journal *storage.Journal
}

// NewReplayer opens the journal at dbPath.
func NewReplayer(dbPath string) (*Replayer, error) {
	j, err := storage.OpenJournal(dbPath)
	if err != nil {
		return nil, err
	}
	return &Replayer{journal: j}, nil
}

// Close closes the journal.
func (r *Replayer) Close() error {
	return r.journal.Close()
}

func (r *Replayer) account(ctx context.Context, opts *Options) error {
	if opts.CashCurrency == "" {
		c, err := r.journal.GetMetadata(ctx, "cash_currency")
		if err != nil {
			return err
		}
		if c == "" {
			return fmt.Errorf("journal has no cash_currency; pass one explicitly")
		}
		opts.CashCurrency = c
	}
	if opts.InitialCash == 0 {
		v, err := r.journal.GetMetadata(ctx, "initial_cash")
		if err != nil {
			return err
		}
		if v != "" {
			cash, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("bad initial_cash metadata %q: %w", v, err)
			}
			opts.InitialCash = cash
		}
	}
	return nil
}

// RunReplay replays every journaled tick from opts.FromSeq in order. The
// virtual clock follows tick timestamps, so acceptance delays elapse the
// way they did live.
func (r *Replayer) RunReplay(ctx context.Context, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if err := r.account(ctx, &opts); err != nil {
		return nil, err
	}

	ticks, err := r.journal.LoadTicks(ctx, opts.FromSeq)
	if err != nil {
		return nil, err
	}

	res := &Result{CashCurrency: opts.CashCurrency, InitialCash: opts.InitialCash}
	start := time.Unix(0, 0)
	if len(ticks) > 0 {
		start = time.UnixMicro(int64(ticks[0].Ts))
		res.FirstSeq = ticks[0].Seq
	}

	sched := execution.NewManualScheduler(start)
	eng := execution.NewPaperEngine(execution.Options{
		CashCurrency:    opts.CashCurrency,
		Assets:          opts.Assets,
		InitialCash:     opts.InitialCash,
		SlippageBps:     opts.SlippageBps,
		AcceptanceDelay: opts.AcceptanceDelay,
		Scheduler:       sched,
		Logger:          opts.Logger,
	})
	seq := engine.NewSequencer(engine.Config{
		Engine:   eng,
		Strategy: opts.Strategy,
		Logger:   opts.Logger,
	})

	for _, ev := range ticks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Orders accepted before this tick must be working when it lands.
		if d := time.UnixMicro(int64(ev.Ts)).Sub(sched.Now()); d > 0 {
			sched.Advance(d)
		}
		seq.ReplayEvent(ev)
		res.Ticks++
		res.LastSeq = ev.Seq
	}
	sched.Advance(opts.AcceptanceDelay)

	res.Valuation = eng.Valuation()
	res.Orders = eng.Orders()
	res.Positions = eng.Positions()
	opts.Logger.Info("REPLAY_COMPLETED",
		slog.Int("ticks", res.Ticks),
		slog.Uint64("last_seq", res.LastSeq),
		slog.Int("orders", len(res.Orders)),
		slog.Int64("total_micros", res.Valuation.TotalMicros))
	return res, nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"paper_trade/backtest"
	"paper_trade/internal/infra"
	"paper_trade/internal/strategy"
	"paper_trade/pkg/quant"
)

func main() {
	dbPath := flag.String("db", "", "journal to replay (default: the workspace journal for the configured mode)")
	from := flag.Uint64("from", 0, "first sequence number to replay")
	withStrategy := flag.Bool("strategy", false, "run the configured SMA strategy during the replay")
	flag.Parse()

	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		slog.Error("CONFIG_LOAD_FAILED", slog.Any("error", err))
		os.Exit(1)
	}
	logger := infra.NewLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	if *dbPath == "" {
		dataDir := filepath.Join(infra.GetWorkspaceDir(), "data", strings.ToLower(cfg.Trading.Mode))
		*dbPath = infra.ResolveWorkPath(dataDir, cfg.Storage.Path, "journal.db")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := backtest.NewReplayer(*dbPath)
	if err != nil {
		slog.Error("JOURNAL_OPEN_FAILED", slog.String("path", *dbPath), slog.Any("error", err))
		os.Exit(1)
	}
	defer r.Close()

	opts := backtest.Options{
		FromSeq:         *from,
		Assets:          cfg.Trading.Assets,
		SlippageBps:     cfg.Trading.SlippageBps,
		AcceptanceDelay: cfg.AcceptanceDelay(),
		Logger:          logger,
	}
	if *withStrategy {
		qty, err := cfg.StrategyQtySats()
		if err != nil || qty <= 0 || cfg.Strategy.Symbol == "" {
			slog.Error("STRATEGY_CONFIG_INVALID", slog.Any("error", err))
			os.Exit(1)
		}
		opts.Strategy = strategy.NewSMACrossStrategy(cfg.Strategy.Symbol, cfg.Strategy.ShortWindow, cfg.Strategy.LongWindow, qty)
	}

	res, err := r.RunReplay(ctx, opts)
	if err != nil {
		slog.Error("REPLAY_FAILED", slog.Any("error", err))
		os.Exit(1)
	}

	cash := func(v int64) string { return quant.PriceMicros(v).String() }
	fmt.Printf("ticks:     %d (seq %d..%d)\n", res.Ticks, res.FirstSeq, res.LastSeq)
	fmt.Printf("orders:    %d\n", len(res.Orders))
	fmt.Printf("initial:   %s %s\n", cash(res.InitialCash), res.CashCurrency)
	fmt.Printf("cash:      %s\n", cash(res.Valuation.CashMicros))
	fmt.Printf("assets:    %s\n", cash(res.Valuation.AssetsMicros))
	fmt.Printf("total:     %s\n", cash(res.Valuation.TotalMicros))
	fmt.Printf("pnl:       %s\n", cash(res.Valuation.TotalMicros-res.InitialCash))
	if len(res.Valuation.Unpriced) > 0 {
		fmt.Printf("unpriced:  %s\n", strings.Join(res.Valuation.Unpriced, ", "))
	}
}

package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"paper_trade/internal/app"
	"paper_trade/internal/infra"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		slog.Error("CONFIG_LOAD_FAILED", slog.Any("error", err))
		os.Exit(1)
	}

	logger := infra.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)
	infra.PrintBanner(os.Stdout, cfg)

	// Pprof server, localhost only
	go func() {
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Warn("PPROF_SERVER_FAILED", slog.Any("error", err))
		}
	}()

	workDir := infra.GetWorkspaceDir()
	if err := infra.EnsureDir(workDir); err != nil {
		slog.Error("WORKDIR_FAILED", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := app.NewBootstrap(cfg, workDir, logger)
	if err := b.Initialize(ctx); err != nil {
		slog.Error("BOOTSTRAP_FAILED", slog.Any("error", err))
		os.Exit(1)
	}
	defer b.Close()

	ln, err := net.Listen("tcp", cfg.API.Addr)
	if err != nil {
		slog.Error("API_LISTEN_FAILED", slog.String("addr", cfg.API.Addr), slog.Any("error", err))
		b.Close()
		os.Exit(1)
	}

	slog.Info("SYSTEM_OPERATIONAL", slog.String("addr", ln.Addr().String()))
	if err := b.Run(ctx, ln); err != nil {
		slog.Error("RUN_FAILED", slog.Any("error", err))
		b.Close()
		os.Exit(1)
	}
}

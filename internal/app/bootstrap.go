package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"paper_trade/internal/api"
	"paper_trade/internal/engine"
	"paper_trade/internal/event"
	"paper_trade/internal/execution"
	"paper_trade/internal/infra"
	"paper_trade/internal/infra/feed"
	"paper_trade/internal/storage"
	"paper_trade/internal/strategy"
	"paper_trade/pkg/quant"
)

const shutdownTimeout = 5 * time.Second

// Bootstrap owns every long-lived component of the service and the order in
// which they start and stop.
type Bootstrap struct {
	Config    *infra.Config
	Log       *slog.Logger
	WorkDir   string
	Journal   *storage.Journal
	Snapshots *storage.SnapshotManager
	Bus       *event.Bus
	Engine    *execution.PaperEngine
	Sequencer *engine.Sequencer
	Gateway   *event.Gateway
	Strategy  *strategy.SMACrossStrategy
	Handler   http.Handler

	unlock func()
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap(cfg *infra.Config, workDir string, log *slog.Logger) *Bootstrap {
	if log == nil {
		log = slog.Default()
	}
	return &Bootstrap{Config: cfg, WorkDir: workDir, Log: log}
}

// Initialize opens the journal and builds the engine, sequencer and API.
// Nothing runs until Run.
func (b *Bootstrap) Initialize(ctx context.Context) (err error) {
	cfg := b.Config
	b.Log.Info("BOOTSTRAP_STARTED", slog.String("mode", cfg.Trading.Mode), slog.String("workdir", b.WorkDir))

	event.Warmup()

	mode := strings.ToLower(cfg.Trading.Mode)
	dataDir := filepath.Join(b.WorkDir, "data", mode)
	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	// One engine per journal.
	unlock, err := infra.CreateLockFile(b.WorkDir)
	if err != nil {
		return err
	}
	b.unlock = unlock
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	dbPath := infra.ResolveWorkPath(dataDir, cfg.Storage.Path, "journal.db")
	j, err := storage.OpenJournal(dbPath)
	if err != nil {
		return err
	}
	j.SetLogger(b.Log)
	b.Journal = j
	b.Log.Info("JOURNAL_OPENED", slog.String("path", dbPath))

	if err := b.checkAccount(ctx); err != nil {
		return err
	}
	lastSeq, err := j.LastSeq(ctx)
	if err != nil {
		return err
	}

	b.Snapshots = storage.NewSnapshotManager(infra.ResolveWorkPath(b.WorkDir, cfg.Storage.SnapshotDir, "snapshots"))
	b.Snapshots.SetLogger(b.Log)

	b.Bus = event.NewBus()
	eng, err := execution.NewExecutionFactory(cfg).CreateExecution(execution.WallScheduler{}, b.Bus, b.Log)
	if err != nil {
		return err
	}
	b.Engine = eng

	seqCfg := engine.Config{
		LastSeq:   lastSeq,
		Engine:    eng,
		Journal:   j,
		Snapshots: b.Snapshots,
		Logger:    b.Log,
	}
	if cfg.Strategy.Enabled {
		qty, err := cfg.StrategyQtySats()
		if err != nil {
			return err
		}
		b.Strategy = strategy.NewSMACrossStrategy(cfg.Strategy.Symbol, cfg.Strategy.ShortWindow, cfg.Strategy.LongWindow, qty)
		seqCfg.Strategy = b.Strategy
		b.Log.Info("STRATEGY_ENABLED",
			slog.String("symbol", cfg.Strategy.Symbol),
			slog.Int("short", cfg.Strategy.ShortWindow),
			slog.Int("long", cfg.Strategy.LongWindow))
	}
	b.Sequencer = engine.NewSequencer(seqCfg)
	b.Gateway = event.NewGateway(b.Sequencer.Inbox(), lastSeq)

	cash, _ := cfg.InitialCashMicros()
	h := &api.Handler{
		Engine:       eng,
		Gateway:      b.Gateway,
		Journal:      j,
		Bus:          b.Bus,
		DefaultCash:  cash,
		StreamBuffer: cfg.API.StreamBuffer,
		Log:          b.Log,
	}
	// order_per_sec 0 turns throttling off
	if cfg.API.OrderPerSec > 0 {
		h.Limiter = infra.NewRateLimiter(max(cfg.API.OrderBurst, 1), cfg.API.OrderPerSec)
	}
	b.Handler = api.NewRouter(h)

	b.Log.Info("BOOTSTRAP_COMPLETED", slog.Uint64("last_seq", lastSeq))
	return nil
}

// checkAccount pins the journal to one cash currency. A journal written for
// another currency is refused instead of being mixed.
func (b *Bootstrap) checkAccount(ctx context.Context) error {
	cfg := b.Config
	stored, err := b.Journal.GetMetadata(ctx, "cash_currency")
	if err != nil {
		return err
	}
	if stored != "" && stored != cfg.Trading.CashCurrency {
		return fmt.Errorf("journal was written for %s, config says %s", stored, cfg.Trading.CashCurrency)
	}

	cash, err := cfg.InitialCashMicros()
	if err != nil {
		return err
	}
	now := time.Now().UnixMicro()
	if err := b.Journal.UpsertMetadata(ctx, "cash_currency", cfg.Trading.CashCurrency, now); err != nil {
		return err
	}
	return b.Journal.UpsertMetadata(ctx, "initial_cash", strconv.FormatInt(cash, 10), now)
}

// startFeed launches the configured price source. It returns nil when the
// feed is disabled.
func (b *Bootstrap) startFeed(ctx context.Context, wg *sync.WaitGroup) error {
	cfg := b.Config
	switch cfg.Feed.Kind {
	case infra.FeedWebSocket:
		f := feed.NewWSFeed(cfg.Feed.URL, cfg.Feed.Symbols, b.Gateway, b.Log)
		f.Start(ctx)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			f.Stop()
		}()

	case infra.FeedSynthetic:
		syn := cfg.Feed.Synthetic
		prices := make(map[string]quant.PriceMicros, len(syn.StartPrices))
		for sym, s := range syn.StartPrices {
			p, err := quant.ParsePriceMicros(s)
			if err != nil {
				return fmt.Errorf("feed.synthetic.start_prices[%s]: %w", sym, err)
			}
			prices[sym] = p
		}
		f, err := feed.NewSyntheticFeed(feed.SyntheticConfig{
			Symbols:     cfg.Feed.Symbols,
			StartPrices: prices,
			Interval:    time.Duration(syn.IntervalMS) * time.Millisecond,
			Volatility:  syn.Volatility,
			SpreadBps:   syn.SpreadBps,
			Seed:        syn.Seed,
		}, b.Gateway, b.Log)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Run(ctx)
		}()

	case infra.FeedNone:
		b.Log.Info("FEED_DISABLED")
	}
	return nil
}

// Run serves the API on ln and drives the sequencer until ctx is done, then
// shuts down in reverse order and writes a shutdown snapshot.
func (b *Bootstrap) Run(ctx context.Context, ln net.Listener) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	notes, unsubscribe := b.Bus.Subscribe(b.Config.API.StreamBuffer)
	journalDone := make(chan struct{})
	go func() {
		defer close(journalDone)
		// Drains until unsubscribe closes the channel.
		b.Journal.Run(context.Background(), notes)
	}()

	seqDone := make(chan struct{})
	go func() {
		defer close(seqDone)
		b.Sequencer.Run(runCtx)
	}()

	var feeds sync.WaitGroup
	if err := b.startFeed(runCtx, &feeds); err != nil {
		cancel()
		<-seqDone
		unsubscribe()
		<-journalDone
		return err
	}

	srv := &http.Server{
		Handler:           b.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		b.Log.Info("API_LISTENING", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-runCtx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("api server: %w", err)
		}
	}
	b.Log.Info("SHUTDOWN_STARTED")

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		b.Log.Warn("API_SHUTDOWN_FAILED", slog.Any("error", err))
	}

	cancel()
	feeds.Wait()
	<-seqDone

	if path, err := b.Sequencer.DumpState("shutdown"); err != nil {
		b.Log.Error("STATE_DUMP_FAILED", slog.Any("error", err))
	} else {
		b.Log.Info("SHUTDOWN_SNAPSHOT", slog.String("path", path))
	}
	if err := b.Snapshots.Cleanup(b.Config.Storage.SnapshotsKept); err != nil {
		b.Log.Warn("SNAPSHOT_CLEANUP_FAILED", slog.Any("error", err))
	}

	unsubscribe()
	<-journalDone
	if n := b.Journal.Skipped(); n > 0 {
		b.Log.Warn("JOURNAL_SKIPPED_NOTIFICATIONS", slog.Uint64("count", n))
	}
	b.Log.Info("SHUTDOWN_COMPLETED", slog.Uint64("last_seq", b.Sequencer.LastSeq()))
	return runErr
}

// Close releases the journal and the instance lock.
func (b *Bootstrap) Close() error {
	var err error
	if b.Bus != nil {
		b.Bus.Close()
	}
	if b.Journal != nil {
		err = b.Journal.Close()
		b.Journal = nil
	}
	if b.unlock != nil {
		b.unlock()
		b.unlock = nil
	}
	return err
}

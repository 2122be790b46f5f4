package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"paper_trade/internal/domain"
	"paper_trade/internal/event"
	"paper_trade/internal/execution"
	"paper_trade/internal/storage"
	"paper_trade/internal/strategy"
)

// maxGap is the largest forward sequence gap tolerated on the live path.
const maxGap = 10

// TradingEngine is the execution side driven by the sequencer.
type TradingEngine interface {
	domain.TickSink
	domain.Execution
	Order(id string) (domain.Order, error)
	Disable()
}

// TickJournal persists ticks before they are applied (WAL-first).
type TickJournal interface {
	SaveTick(ctx context.Context, ev *event.MarketUpdateEvent) error
}

// Config wires a Sequencer. Only Engine is required.
type Config struct {
	InboxSize int
	// LastSeq is the last sequence number already journaled; the next
	// accepted event is LastSeq+1.
	LastSeq   uint64
	Engine    TradingEngine
	Journal   TickJournal
	Strategy  strategy.Strategy
	Snapshots *storage.SnapshotManager
	DumpPath  string // used when Snapshots is nil
	Logger    *slog.Logger
}

// Sequencer is the core single-threaded event processor. Every tick reaches
// the engine and the strategy in sequence order, from live feeds and replays alike.
type Sequencer struct {
	inbox   chan event.Event
	nextSeq atomic.Uint64

	engine    TradingEngine
	journal   TickJournal
	strategy  strategy.Strategy
	snapshots *storage.SnapshotManager
	dumpPath  string
	log       *slog.Logger

	// Hotpath-only state
	signals [4]domain.OrderRequest
	own     map[string]domain.Order // strategy orders not yet terminal
}

// NewSequencer creates a new sequencer instance.
func NewSequencer(cfg Config) *Sequencer {
	if cfg.Engine == nil {
		panic("sequencer: engine is required")
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DumpPath == "" {
		cfg.DumpPath = "panic_dump.json"
	}
	s := &Sequencer{
		inbox:     make(chan event.Event, cfg.InboxSize),
		engine:    cfg.Engine,
		journal:   cfg.Journal,
		strategy:  cfg.Strategy,
		snapshots: cfg.Snapshots,
		dumpPath:  cfg.DumpPath,
		log:       cfg.Logger,
		own:       make(map[string]domain.Order),
	}
	s.nextSeq.Store(cfg.LastSeq + 1)
	return s
}

// Inbox returns the event channel. Producers should go through an
// event.Gateway so sequence numbers stay contiguous.
func (s *Sequencer) Inbox() chan<- event.Event {
	return s.inbox
}

// NextSeq returns the sequence number expected next.
func (s *Sequencer) NextSeq() uint64 {
	return s.nextSeq.Load()
}

// LastSeq returns the last processed sequence number.
func (s *Sequencer) LastSeq() uint64 {
	return s.nextSeq.Load() - 1
}

// ValidateSequence checks evSeq against the expected number. It returns false
// for duplicates, which must be dropped. Small gaps fast-forward; large gaps
// panic.
func (s *Sequencer) ValidateSequence(evSeq uint64) bool {
	expected := s.nextSeq.Load()
	if evSeq == expected {
		return true
	}

	diff := int64(evSeq) - int64(expected)

	// Case 1: Replay/Duplicate (Old event)
	if diff < 0 {
		s.log.Warn("SEQUENCE_DUPLICATE_IGNORED", slog.Uint64("expected", expected), slog.Uint64("got", evSeq))
		return false
	}

	// Case 2: Future Gap
	if diff <= maxGap {
		s.log.Warn("SEQUENCE_GAP_TOLERATED",
			slog.Uint64("expected", expected),
			slog.Uint64("got", evSeq),
			slog.Int64("gap", diff))
		s.nextSeq.Store(evSeq)
		return true
	}

	panic(fmt.Sprintf("SEQUENCE_GAP_FATAL: expected %d, got %d", expected, evSeq))
}

// Run starts the main event loop. This MUST be run in a single goroutine.
func (s *Sequencer) Run(ctx context.Context) {
	s.log.Info("SEQUENCER_STARTED", slog.Uint64("next_seq", s.NextSeq()))

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			if _, err := s.DumpState("panic"); err != nil {
				s.log.Error("STATE_DUMP_FAILED", slog.Any("error", err))
			}
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("SEQUENCER_STOPPED", slog.Uint64("last_seq", s.LastSeq()))
			return
		case ev := <-s.inbox:
			s.processEvent(ctx, ev)
		}
	}
}

func (s *Sequencer) processEvent(ctx context.Context, ev event.Event) {
	mu, isTick := ev.(*event.MarketUpdateEvent)
	if isTick {
		defer event.ReleaseMarketUpdateEvent(mu)
	}

	// 1. Sequence Gap Check (with Tolerance Policy)
	if !s.ValidateSequence(ev.GetSeq()) {
		return
	}

	// 2. WAL-first: Persistence
	if isTick && s.journal != nil {
		if err := s.journal.SaveTick(ctx, mu); err != nil {
			panic(fmt.Sprintf("PERSISTENCE_FAILURE: %v", err))
		}
	}

	// 3. Logic Dispatch
	s.dispatch(ctx, ev)

	// 4. Increment Sequence
	s.nextSeq.Add(1)
}

// ReplayEvent processes an event synchronously without WAL logging.
// Journals hold ticks only, so replayed numbers may skip but never go back.
// The event is not released to the pool.
func (s *Sequencer) ReplayEvent(ev event.Event) {
	if ev.GetSeq() < s.nextSeq.Load() {
		panic(fmt.Sprintf("REPLAY_ORDER_VIOLATION: expected >= %d, got %d", s.nextSeq.Load(), ev.GetSeq()))
	}
	s.dispatch(context.Background(), ev)
	s.nextSeq.Store(ev.GetSeq() + 1)
}

func (s *Sequencer) dispatch(ctx context.Context, ev event.Event) {
	switch e := ev.(type) {
	case *event.MarketUpdateEvent:
		s.handleMarketUpdate(ctx, e)
	case *event.SystemHaltEvent:
		s.log.Warn("SYSTEM_HALT", slog.Uint64("seq", e.Seq), slog.String("reason", e.Reason))
		s.engine.Disable()
	default:
		s.log.Warn("UNKNOWN_EVENT_TYPE", slog.Any("type", ev.GetType()))
	}
}

func (s *Sequencer) handleMarketUpdate(ctx context.Context, e *event.MarketUpdateEvent) {
	tick := domain.MarketTick{
		Symbol:     e.Symbol,
		LastMicros: e.LastMicros,
		BidMicros:  e.BidMicros,
		AskMicros:  e.AskMicros,
		Ts:         e.Ts,
	}
	if err := s.engine.UpdateMarketTick(tick); err != nil {
		s.log.Warn("TICK_REJECTED", slog.Uint64("seq", e.Seq), slog.Any("error", err))
		return
	}

	if s.strategy == nil {
		return
	}
	s.syncStrategyOrders()

	n := s.strategy.OnMarketUpdate(tick, s.signals[:])
	for i := 0; i < n; i++ {
		req := s.signals[i]
		o, err := s.engine.PlaceOrder(ctx, req)
		if err != nil {
			s.log.Warn("STRATEGY_ORDER_FAILED",
				slog.String("symbol", req.Symbol),
				slog.String("side", string(req.Side)),
				slog.String("qty", req.QtySats.String()),
				slog.Any("error", err))
			continue
		}
		s.log.Info("STRATEGY_ORDER", slog.String("id", o.ID), slog.String("side", string(o.Side)))
		s.own[o.ID] = o
		s.strategy.OnOrderUpdate(o)
	}
}

// syncStrategyOrders reports state changes of the strategy's working orders.
// An order that vanished (account reset) is reported as canceled.
func (s *Sequencer) syncStrategyOrders() {
	for id, prev := range s.own {
		cur, err := s.engine.Order(id)
		if errors.Is(err, domain.ErrOrderNotFound) {
			cur = prev
			cur.Status = domain.StatusCanceled
		} else if err != nil || cur.Status == prev.Status {
			continue
		}
		if cur.IsOpen() {
			s.own[id] = cur
		} else {
			delete(s.own, id)
		}
		s.strategy.OnOrderUpdate(cur)
	}
}

type stateDump struct {
	NextSeq uint64           `json:"next_seq"`
	Engine  *execution.State `json:"engine,omitempty"`
}

// DumpState writes the sequencer and engine state for post-mortem and returns
// where it went. Safe to call only when Run is not processing.
func (s *Sequencer) DumpState(reason string) (string, error) {
	d := stateDump{NextSeq: s.NextSeq()}
	if src, ok := s.engine.(interface{ Snapshot() execution.State }); ok {
		st := src.Snapshot()
		d.Engine = &st
	}

	if s.snapshots != nil {
		snap, err := storage.CreateSnapshot(s.LastSeq(), reason, d)
		if err != nil {
			return "", err
		}
		return s.snapshots.Save(snap)
	}

	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := os.WriteFile(s.dumpPath, b, 0644); err != nil {
		return "", fmt.Errorf("failed to write state dump: %w", err)
	}
	s.log.Info("STATE_DUMPED", slog.String("file", s.dumpPath), slog.String("reason", reason))
	return s.dumpPath, nil
}

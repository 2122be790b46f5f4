package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"paper_trade/internal/domain"
	"paper_trade/internal/event"
	"paper_trade/pkg/quant"
	"paper_trade/pkg/safe"

	"github.com/google/uuid"
)

// Options configures a PaperEngine.
type Options struct {
	CashCurrency    string
	Assets          []string
	InitialCash     int64 // cash micros
	SlippageBps     int64
	AcceptanceDelay time.Duration
	StartDisabled   bool

	Scheduler Scheduler
	Bus       *event.Bus
	NewID     func() string
	Logger    *slog.Logger
}

// Valuation is the account value in cash micros.
// Unpriced lists assets with a balance but no tick for ASSET/CASH; they are
// left out of AssetsMicros.
type Valuation struct {
	CashMicros   int64    `json:"cash,string"`
	AssetsMicros int64    `json:"assets,string"`
	TotalMicros  int64    `json:"total,string"`
	Unpriced     []string `json:"unpriced,omitempty"`
}

// State is a point-in-time copy of the engine, used for dumps.
type State struct {
	Enabled   bool                         `json:"enabled"`
	Orders    []domain.Order               `json:"orders"`
	Balances  []domain.Balance             `json:"balances"`
	Positions []domain.Position            `json:"positions"`
	Ticks     map[string]domain.MarketTick `json:"ticks"`
}

// PaperEngine simulates order execution for one account against an external
// price stream. All state is guarded by mu; scheduled acceptance callbacks and
// ticks are serialized through it, so every execution is atomic.
type PaperEngine struct {
	opts  Options
	sched Scheduler
	bus   *event.Bus
	log   *slog.Logger

	mu        sync.Mutex
	enabled   bool
	balances  *domain.BalanceBook
	positions *domain.PositionBook
	orders    map[string]*domain.Order
	history   []*domain.Order            // placement order
	open      map[string][]*domain.Order // symbol -> pending orders, placement order
	accepted  map[string]bool            // orders past their acceptance attempt
	timers    map[string]Timer
	ticks     map[string]domain.MarketTick
	seq       uint64
}

var _ domain.Execution = (*PaperEngine)(nil)
var _ domain.TickSink = (*PaperEngine)(nil)

// NewPaperEngine creates an engine funded with opts.InitialCash.
func NewPaperEngine(opts Options) *PaperEngine {
	if opts.Scheduler == nil {
		opts.Scheduler = WallScheduler{}
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	e := &PaperEngine{
		opts:    opts,
		sched:   opts.Scheduler,
		bus:     opts.Bus,
		log:     opts.Logger,
		enabled: !opts.StartDisabled,
		ticks:   make(map[string]domain.MarketTick),
	}
	e.resetLocked(opts.InitialCash)
	return e
}

// Now reads the engine clock.
func (e *PaperEngine) Now() time.Time {
	return e.sched.Now()
}

func (e *PaperEngine) now() quant.TimeStamp {
	return quant.TimeStamp(e.sched.Now().UnixMicro())
}

// publish stamps and delivers n. Must be called with mu held so that
// notification order matches state order; delivery never blocks.
func (e *PaperEngine) publish(n event.Notification) {
	e.seq++
	n.Seq = e.seq
	n.Ts = e.now()
	if e.bus != nil {
		e.bus.Publish(n)
	}
}

// UpdateMarketTick stores tick as the latest for its symbol, evaluates the
// symbol's working orders against it and marks its positions to market.
func (e *PaperEngine) UpdateMarketTick(tick domain.MarketTick) error {
	if err := tick.Normalize(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if tick.Ts == 0 {
		tick.Ts = e.now()
	}
	e.ticks[tick.Symbol] = tick

	// execute() shrinks e.open[symbol]; iterate over a copy.
	pending := append([]*domain.Order(nil), e.open[tick.Symbol]...)
	for _, o := range pending {
		if !e.accepted[o.ID] || !o.IsOpen() {
			continue
		}
		if price, ok := matchPrice(o, tick, e.opts.SlippageBps); ok {
			e.execute(o, price)
		}
	}

	for _, p := range e.positions.MarkToMarket(tick.Symbol, tick.LastMicros, e.now()) {
		e.publish(event.PositionNotification(p))
	}
	return nil
}

// PlaceOrder validates req, reserves the worst-case funds and stores the order
// as PENDING. Execution happens asynchronously after the acceptance delay.
func (e *PaperEngine) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled {
		return domain.Order{}, domain.ErrEngineDisabled
	}
	if err := req.Validate(); err != nil {
		return domain.Order{}, err
	}
	base, quote, _ := domain.SplitSymbol(req.Symbol)
	if quote != e.opts.CashCurrency {
		return domain.Order{}, fmt.Errorf("%w: %s is not quoted in %s", domain.ErrInvalidOrder, req.Symbol, e.opts.CashCurrency)
	}
	tick, ok := e.ticks[req.Symbol]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrNoMarketData, req.Symbol)
	}

	ts := e.now()
	currency, amount, ok := reservation(req, base, e.opts.CashCurrency, tick, e.opts.SlippageBps)
	var err error
	if !ok {
		err = fmt.Errorf("%w: cost of %s %s exceeds any balance", domain.ErrInsufficientFunds, req.QtySats, req.Symbol)
	} else {
		err = e.balances.Reserve(currency, amount, ts)
	}
	if err != nil {
		e.log.Info("PAPER EXECUTION: Order Refused",
			slog.String("symbol", req.Symbol),
			slog.String("side", string(req.Side)),
			slog.String("qty", req.QtySats.String()),
			slog.Any("error", err))
		return domain.Order{}, err
	}

	o := domain.NewOrder(e.opts.NewID(), req, ts)
	o.ReservedCurrency = currency
	o.ReservedUnits = amount
	e.orders[o.ID] = o
	e.history = append(e.history, o)
	e.open[o.Symbol] = append(e.open[o.Symbol], o)

	id := o.ID
	e.timers[id] = e.sched.AfterFunc(e.opts.AcceptanceDelay, func() { e.accept(id) })

	e.publish(event.OrderNotification(event.KindOrderPlaced, *o))
	e.log.Info("PAPER EXECUTION: Order Placed",
		slog.String("id", o.ID),
		slog.String("symbol", o.Symbol),
		slog.String("side", string(o.Side)),
		slog.String("type", string(o.Type)),
		slog.String("qty", o.QtySats.String()),
		slog.String("reserved_currency", currency),
		slog.Int64("reserved", amount))

	return *o, nil
}

// accept runs the first execution attempt once the acceptance delay elapsed.
// From then on the order is also evaluated on every tick.
func (e *PaperEngine) accept(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.timers, id)
	o, ok := e.orders[id]
	if !ok || !o.IsOpen() {
		// Cancelled, or wiped by Reset, while the callback was waiting on mu.
		return
	}
	e.accepted[id] = true

	tick, ok := e.ticks[o.Symbol]
	if !ok {
		e.reject(o, fmt.Errorf("%w: %s", domain.ErrNoMarketData, o.Symbol))
		return
	}
	if price, ok := matchPrice(o, tick, e.opts.SlippageBps); ok {
		e.execute(o, price)
	}
}

// execute fills o at price: settles the ledger, upserts the position and
// publishes. Must be called with mu held and o PENDING.
func (e *PaperEngine) execute(o *domain.Order, price quant.PriceMicros) {
	if !o.IsOpen() {
		return
	}
	ts := e.now()
	base, cash := o.Base(), e.opts.CashCurrency

	if o.Side == domain.SideBuy {
		cost, ok := quant.CheckedNotionalCeil(o.QtySats, price)
		if !ok {
			e.reject(o, fmt.Errorf("%w: cost at %s exceeds any balance", domain.ErrInsufficientFunds, price))
			return
		}
		if cost > o.ReservedUnits {
			// The ask moved up between placement and execution.
			extra := cost - o.ReservedUnits
			if err := e.balances.Reserve(cash, extra, ts); err != nil {
				e.reject(o, err)
				return
			}
			o.ReservedUnits = cost
		}
		e.balances.Settle(cash, cost, base, int64(o.QtySats), ts)
		e.balances.Release(cash, o.ReservedUnits-cost, ts)
	} else {
		proceeds, ok := quant.CheckedNotional(o.QtySats, price)
		if !ok {
			e.reject(o, fmt.Errorf("%w: proceeds at %s are too large", domain.ErrInvalidOrder, price))
			return
		}
		e.balances.Settle(base, int64(o.QtySats), cash, proceeds, ts)
	}

	o.Fill(price, ts)
	e.closeOrder(o)
	pos := e.positions.ApplyFill(o.Symbol, domain.DirectionOf(o.Side), o.FilledQtySats, price, ts)

	e.publish(event.OrderNotification(event.KindOrderFilled, *o))
	e.publish(event.PositionNotification(pos))

	e.log.Info("PAPER EXECUTION: Order Filled",
		slog.String("id", o.ID),
		slog.String("symbol", o.Symbol),
		slog.String("side", string(o.Side)),
		slog.String("price", price.String()),
		slog.String("qty", o.QtySats.String()))
}

// reject releases o's reservation and marks it REJECTED. Must be called with mu held.
func (e *PaperEngine) reject(o *domain.Order, reason error) {
	e.balances.Release(o.ReservedCurrency, o.ReservedUnits, e.now())
	o.Reject(reason.Error())
	e.closeOrder(o)

	e.publish(event.OrderNotification(event.KindOrderRejected, *o))
	e.log.Warn("PAPER EXECUTION: Order Rejected",
		slog.String("id", o.ID),
		slog.String("symbol", o.Symbol),
		slog.Any("reason", reason))
}

// closeOrder drops a terminal order from the working set.
func (e *PaperEngine) closeOrder(o *domain.Order) {
	if t, ok := e.timers[o.ID]; ok {
		t.Stop()
		delete(e.timers, o.ID)
	}
	delete(e.accepted, o.ID)

	list := e.open[o.Symbol]
	for i, other := range list {
		if other == o {
			e.open[o.Symbol] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(e.open[o.Symbol]) == 0 {
		delete(e.open, o.Symbol)
	}
}

// CancelOrder cancels a PENDING order and releases exactly what it reserved.
// A terminal order is left untouched and the matching sentinel is returned.
func (e *PaperEngine) CancelOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[orderID]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	if !o.IsOpen() {
		return *o, fmt.Errorf("%w: %s", o.TerminalError(), orderID)
	}

	e.balances.Release(o.ReservedCurrency, o.ReservedUnits, e.now())
	o.Cancel()
	e.closeOrder(o)

	e.publish(event.OrderNotification(event.KindOrderCancelled, *o))
	e.log.Info("PAPER EXECUTION: Order Canceled", slog.String("id", orderID))
	return *o, nil
}

// Enable allows PlaceOrder again.
func (e *PaperEngine) Enable() {
	e.setEnabled(true)
}

// Disable makes PlaceOrder fail with ErrEngineDisabled. Pending orders keep working.
func (e *PaperEngine) Disable() {
	e.setEnabled(false)
}

func (e *PaperEngine) setEnabled(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enabled == on {
		return
	}
	e.enabled = on

	kind := event.KindEngineDisabled
	if on {
		kind = event.KindEngineEnabled
	}
	e.publish(event.Notification{Kind: kind})
	e.log.Info("PAPER EXECUTION: Engine Toggled", slog.Bool("enabled", on))
}

// Enabled reports whether PlaceOrder is accepted.
func (e *PaperEngine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// Reset drops every order, position and balance and funds the account with
// initialCash micros of the cash currency. Latest ticks are kept.
func (e *PaperEngine) Reset(initialCash int64) error {
	if initialCash < 0 {
		return errors.New("initial cash must not be negative")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, t := range e.timers {
		t.Stop()
	}
	e.resetLocked(initialCash)

	e.publish(event.Notification{Kind: event.KindReset, InitialCash: initialCash})
	e.log.Info("PAPER EXECUTION: Account Reset", slog.String("cash", quant.PriceMicros(initialCash).String()))
	return nil
}

func (e *PaperEngine) resetLocked(initialCash int64) {
	currencies := append([]string{e.opts.CashCurrency}, e.opts.Assets...)
	e.balances = domain.NewBalanceBook(currencies...)
	e.balances.Deposit(e.opts.CashCurrency, initialCash, e.now())
	e.positions = domain.NewPositionBook()
	e.orders = make(map[string]*domain.Order)
	e.history = nil
	e.open = make(map[string][]*domain.Order)
	e.accepted = make(map[string]bool)
	e.timers = make(map[string]Timer)
}

// Orders returns copies of every order in placement order.
func (e *PaperEngine) Orders() []domain.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Order, 0, len(e.history))
	for _, o := range e.history {
		out = append(out, *o)
	}
	return out
}

// OpenOrders returns copies of PENDING orders in placement order.
func (e *PaperEngine) OpenOrders() []domain.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []domain.Order
	for _, o := range e.history {
		if o.IsOpen() {
			out = append(out, *o)
		}
	}
	return out
}

// Order returns a copy of one order.
func (e *PaperEngine) Order(id string) (domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	return *o, nil
}

// Positions returns positions with qty > 0.
func (e *PaperEngine) Positions() []domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positions.Open()
}

// Balances returns every balance sorted by currency.
func (e *PaperEngine) Balances() []domain.Balance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances.Snapshot()
}

// Balance returns one balance; unknown currencies read as zero.
func (e *PaperEngine) Balance(currency string) domain.Balance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances.Get(currency)
}

// Tick returns the latest tick for symbol.
func (e *PaperEngine) Tick(symbol string) (domain.MarketTick, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.ticks[symbol]
	return t, ok
}

// CashCurrency returns the account's cash currency.
func (e *PaperEngine) CashCurrency() string {
	return e.opts.CashCurrency
}

// TotalPortfolioValue is cash plus every non-zero asset balance at its latest
// ASSET/CASH price, in cash micros. Assets without a tick are skipped.
func (e *PaperEngine) TotalPortfolioValue() int64 {
	return e.Valuation().TotalMicros
}

// Valuation breaks TotalPortfolioValue down and names the unpriced assets.
func (e *PaperEngine) Valuation() Valuation {
	e.mu.Lock()
	defer e.mu.Unlock()

	cash := e.opts.CashCurrency
	v := Valuation{CashMicros: e.balances.Get(cash).Total}
	for _, b := range e.balances.Snapshot() {
		if b.Currency == cash || b.Total == 0 {
			continue
		}
		tick, ok := e.ticks[domain.PairSymbol(b.Currency, cash)]
		if !ok {
			v.Unpriced = append(v.Unpriced, b.Currency)
			continue
		}
		// Values past int64 saturate instead of wrapping.
		worth, ok := quant.CheckedNotional(quant.QtySats(b.Total), tick.LastMicros)
		if !ok {
			worth = math.MaxInt64
		}
		v.AssetsMicros = safe.SaturatingAdd(v.AssetsMicros, worth)
	}
	v.TotalMicros = safe.SaturatingAdd(v.CashMicros, v.AssetsMicros)
	return v
}

// Snapshot copies the whole engine state.
func (e *PaperEngine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := State{
		Enabled:   e.enabled,
		Orders:    make([]domain.Order, 0, len(e.history)),
		Balances:  e.balances.Snapshot(),
		Positions: e.positions.Open(),
		Ticks:     make(map[string]domain.MarketTick, len(e.ticks)),
	}
	for _, o := range e.history {
		s.Orders = append(s.Orders, *o)
	}
	for k, v := range e.ticks {
		s.Ticks[k] = v
	}
	return s
}

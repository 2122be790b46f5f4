package strategy

import (
	"paper_trade/internal/domain"
	"paper_trade/pkg/quant"
	"paper_trade/pkg/safe"
)

// SMACrossStrategy implements a simple long-only SMA Crossover strategy.
// It is stateful and deterministic.
// OPTIMIZED: Uses a Ring Buffer to ensure Zero-Alloc in the hotpath.
type SMACrossStrategy struct {
	symbol      string
	shortPeriod int
	longPeriod  int
	qty         quant.QtySats

	// State (Ring Buffer)
	prices []int64
	head   int   // Current write position
	count  int   // Number of elements filled
	sum    int64 // Running sum for the longest period (optimization)

	prevShortSMA int64
	prevLongSMA  int64

	// Inventory, fed back through OnOrderUpdate
	held    quant.QtySats
	working map[string]bool
}

// NewSMACrossStrategy creates a new instance trading qty per signal.
func NewSMACrossStrategy(symbol string, shortPeriod, longPeriod int, qty quant.QtySats) *SMACrossStrategy {
	if shortPeriod <= 0 || shortPeriod >= longPeriod {
		panic("SMACrossStrategy: shortPeriod must be positive and less than longPeriod")
	}
	if qty <= 0 {
		panic("SMACrossStrategy: qty must be positive")
	}
	return &SMACrossStrategy{
		symbol:      symbol,
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
		qty:         qty,
		prices:      make([]int64, longPeriod), // Fixed size allocation
		working:     make(map[string]bool),
	}
}

// Symbol returns the traded symbol.
func (s *SMACrossStrategy) Symbol() string { return s.symbol }

// Held returns the filled inventory the strategy believes it owns.
func (s *SMACrossStrategy) Held() quant.QtySats { return s.held }

// OnMarketUpdate processes market updates and generates signals.
// Golden cross buys qty when flat; dead cross sells everything held.
// No signal is emitted while one of its orders is still working.
func (s *SMACrossStrategy) OnMarketUpdate(tick domain.MarketTick, out []domain.OrderRequest) int {
	// 1. Filter by symbol
	if tick.Symbol != s.symbol {
		return 0
	}

	currentPrice := int64(tick.LastMicros)

	// 2. Update Price History (Ring Buffer)
	// If full, subtract the oldest value from sum before overwriting
	if s.count == s.longPeriod {
		oldestPrice := s.prices[s.head] // s.head points to the oldest value when full
		s.sum = safe.SafeSub(s.sum, oldestPrice)
	}

	s.prices[s.head] = currentPrice
	s.sum = safe.SafeAdd(s.sum, currentPrice)
	s.head = (s.head + 1) % s.longPeriod
	if s.count < s.longPeriod {
		s.count++
	}

	// 3. Check if we have enough data
	if s.count < s.longPeriod {
		return 0
	}

	// 4. Calculate SMAs
	currLongSMA := safe.SafeDiv(s.sum, int64(s.longPeriod))
	currShortSMA := s.calculateShortSMA()

	n := 0

	// 5. Check for Cross
	if s.prevLongSMA != 0 && len(out) > 0 && len(s.working) == 0 {
		golden := s.prevShortSMA <= s.prevLongSMA && currShortSMA > currLongSMA
		dead := s.prevShortSMA >= s.prevLongSMA && currShortSMA < currLongSMA

		switch {
		case golden && s.held == 0:
			out[0] = domain.OrderRequest{
				Symbol:  s.symbol,
				Side:    domain.SideBuy,
				Type:    domain.OrderTypeMarket,
				QtySats: s.qty,
			}
			n = 1
		case dead && s.held > 0:
			out[0] = domain.OrderRequest{
				Symbol:  s.symbol,
				Side:    domain.SideSell,
				Type:    domain.OrderTypeMarket,
				QtySats: s.held,
			}
			n = 1
		}
	}

	// 6. Update State
	s.prevShortSMA = currShortSMA
	s.prevLongSMA = currLongSMA

	return n
}

// OnOrderUpdate tracks working orders and filled inventory.
func (s *SMACrossStrategy) OnOrderUpdate(order domain.Order) {
	if order.Symbol != s.symbol {
		return
	}
	if order.IsOpen() {
		s.working[order.ID] = true
		return
	}
	delete(s.working, order.ID)
	if order.Status != domain.StatusFilled {
		return
	}
	switch order.Side {
	case domain.SideBuy:
		s.held += order.FilledQtySats
	case domain.SideSell:
		s.held = max(s.held-order.FilledQtySats, 0)
	}
}

// calculateShortSMA calculates the SMA for the short period using the ring buffer.
func (s *SMACrossStrategy) calculateShortSMA() int64 {
	var sum int64 = 0
	// Walk backwards from current head (which points to next write slot, so head-1 is latest)
	idx := s.head
	for i := 0; i < s.shortPeriod; i++ {
		idx--
		if idx < 0 {
			idx = s.longPeriod - 1
		}
		sum = safe.SafeAdd(sum, s.prices[idx])
	}
	return safe.SafeDiv(sum, int64(s.shortPeriod))
}

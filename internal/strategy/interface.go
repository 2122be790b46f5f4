package strategy

import (
	"paper_trade/internal/domain"
)

// Strategy defines the interface for trading logic.
type Strategy interface {
	// OnMarketUpdate is called for every sequenced tick.
	// It returns the number of order requests written to the 'out' buffer.
	// Zero-Alloc: Caller provides the 'out' slice to avoid heap allocations.
	OnMarketUpdate(tick domain.MarketTick, out []domain.OrderRequest) int

	// OnOrderUpdate is called when one of the strategy's own orders changes
	// state (placed, filled, canceled or rejected).
	OnOrderUpdate(order domain.Order)
}

package domain

import "context"

// Execution is the order-entry contract of a trading venue.
// The paper engine implements it; strategies and transports depend on it.
type Execution interface {
	// PlaceOrder validates, reserves funds and accepts an order as PENDING.
	PlaceOrder(ctx context.Context, req OrderRequest) (Order, error)

	// CancelOrder cancels a PENDING order and releases its reservation.
	CancelOrder(ctx context.Context, orderID string) (Order, error)
}

// TickSink consumes market ticks.
type TickSink interface {
	UpdateMarketTick(tick MarketTick) error
}

package domain

import "errors"

// Order and ledger failures returned to callers. Wrap with fmt.Errorf("%w")
// and test with errors.Is.
var (
	ErrEngineDisabled    = errors.New("engine disabled")
	ErrNoMarketData      = errors.New("no market data")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOrderNotFound     = errors.New("order not found")
	ErrAlreadyFilled     = errors.New("order already filled")
	ErrAlreadyCancelled  = errors.New("order already cancelled")
	ErrAlreadyRejected   = errors.New("order already rejected")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrInvalidTick       = errors.New("invalid market tick")
)

package domain

import (
	"fmt"

	"paper_trade/pkg/quant"
)

// MarketTick is the latest top-of-book for a symbol.
// Fields are ordered for cache-line efficiency: hot fields (prices) first.
type MarketTick struct {
	LastMicros quant.PriceMicros `json:"last,string"`
	BidMicros  quant.PriceMicros `json:"bid,string"`
	AskMicros  quant.PriceMicros `json:"ask,string"`
	Ts         quant.TimeStamp   `json:"ts,string"`
	Symbol     string            `json:"symbol"`
}

// Normalize validates the tick and fills Last with the mid price when absent.
func (t *MarketTick) Normalize() error {
	if _, _, err := SplitSymbol(t.Symbol); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTick, err)
	}
	if t.BidMicros <= 0 || t.AskMicros <= 0 {
		return fmt.Errorf("%w: %s bid=%s ask=%s must be positive", ErrInvalidTick, t.Symbol, t.BidMicros, t.AskMicros)
	}
	if t.BidMicros > t.AskMicros {
		return fmt.Errorf("%w: %s crossed bid=%s ask=%s", ErrInvalidTick, t.Symbol, t.BidMicros, t.AskMicros)
	}
	if t.LastMicros < 0 {
		return fmt.Errorf("%w: %s negative last", ErrInvalidTick, t.Symbol)
	}
	if t.LastMicros == 0 {
		t.LastMicros = t.BidMicros + (t.AskMicros-t.BidMicros)/2
	}
	return nil
}

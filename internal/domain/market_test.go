package domain

import (
	"errors"
	"math"
	"testing"

	"paper_trade/pkg/quant"
)

func TestMarketTick_Normalize(t *testing.T) {
	t.Run("Mid price fills last", func(t *testing.T) {
		tick := MarketTick{Symbol: "BTC/USD", BidMicros: 49_950 * quant.PriceScale, AskMicros: 50_050 * quant.PriceScale}
		if err := tick.Normalize(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tick.LastMicros != 50_000*quant.PriceScale {
			t.Errorf("expected mid 50000, got %s", tick.LastMicros)
		}
	})

	t.Run("Mid near the int64 limit", func(t *testing.T) {
		tick := MarketTick{Symbol: "BTC/USD", BidMicros: math.MaxInt64 - 2, AskMicros: math.MaxInt64}
		if err := tick.Normalize(); err != nil || tick.LastMicros != math.MaxInt64-1 {
			t.Errorf("got last=%d err=%v", tick.LastMicros, err)
		}
	})

	t.Run("Explicit last kept", func(t *testing.T) {
		tick := MarketTick{Symbol: "BTC/USD", LastMicros: 7, BidMicros: 5, AskMicros: 10}
		if err := tick.Normalize(); err != nil || tick.LastMicros != 7 {
			t.Errorf("got last=%d err=%v", tick.LastMicros, err)
		}
	})

	invalid := map[string]MarketTick{
		"Crossed":   {Symbol: "BTC/USD", BidMicros: 11, AskMicros: 10},
		"ZeroBid":   {Symbol: "BTC/USD", AskMicros: 10},
		"BadSymbol": {Symbol: "BTC", BidMicros: 1, AskMicros: 2},
	}
	for name, tick := range invalid {
		t.Run(name, func(t *testing.T) {
			if err := tick.Normalize(); !errors.Is(err, ErrInvalidTick) {
				t.Errorf("expected ErrInvalidTick, got %v", err)
			}
		})
	}
}

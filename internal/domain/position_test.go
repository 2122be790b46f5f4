package domain

import (
	"math"
	"testing"

	"paper_trade/pkg/quant"
)

func TestPosition_Direction(t *testing.T) {
	tests := []struct {
		name    string
		side    Side
		isLong  bool
		isShort bool
	}{
		{"Long", SideBuy, true, false},
		{"Short", SideSell, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Position{Direction: DirectionOf(tt.side)}
			if got := p.IsLong(); got != tt.isLong {
				t.Errorf("Position.IsLong() = %v, want %v", got, tt.isLong)
			}
			if got := p.IsShort(); got != tt.isShort {
				t.Errorf("Position.IsShort() = %v, want %v", got, tt.isShort)
			}
		})
	}
}

func TestPosition_WeightedAverage(t *testing.T) {
	pb := NewPositionBook()
	tenth := quant.QtySats(10_000_000)

	pb.ApplyFill("BTC/USD", Long, tenth, 50_000*quant.PriceScale, 1)
	p := pb.ApplyFill("BTC/USD", Long, tenth, 52_000*quant.PriceScale, 2)

	if p.QtySats != 2*tenth {
		t.Errorf("expected qty 0.2, got %s", p.QtySats)
	}
	if p.AvgEntryPriceMicros != 51_000*quant.PriceScale {
		t.Errorf("expected avg 51000, got %s", p.AvgEntryPriceMicros)
	}
	if p.OpenedUnixM != 1 || p.UpdatedUnixM != 2 {
		t.Errorf("unexpected timestamps: %+v", p)
	}
	if len(pb.Open()) != 1 {
		t.Errorf("expected one position, got %d", len(pb.Open()))
	}
}

func TestPosition_MarkToMarket(t *testing.T) {
	tests := []struct {
		name string
		dir  Direction
		mark quant.PriceMicros
		want int64
	}{
		{"LongGain", Long, 51_000 * quant.PriceScale, 100 * quant.PriceScale},
		{"LongLoss", Long, 49_000 * quant.PriceScale, -100 * quant.PriceScale},
		{"ShortGain", Short, 49_000 * quant.PriceScale, 100 * quant.PriceScale},
		{"ShortLoss", Short, 51_000 * quant.PriceScale, -100 * quant.PriceScale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := NewPositionBook()
			pb.ApplyFill("BTC/USD", tt.dir, 10_000_000, 50_000*quant.PriceScale, 1)
			updated := pb.MarkToMarket("BTC/USD", tt.mark, 2)
			if len(updated) != 1 {
				t.Fatalf("expected 1 updated position, got %d", len(updated))
			}
			if updated[0].UnrealizedPnLMicros != tt.want {
				t.Errorf("unrealized = %d, want %d", updated[0].UnrealizedPnLMicros, tt.want)
			}
			if updated[0].CurrentPriceMicros != tt.mark {
				t.Errorf("current price = %d, want %d", updated[0].CurrentPriceMicros, tt.mark)
			}
		})
	}
}

func TestPosition_MarkToMarketSaturates(t *testing.T) {
	tests := []struct {
		name string
		dir  Direction
		want int64
	}{
		{"Long", Long, math.MaxInt64},
		{"Short", Short, -math.MaxInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := NewPositionBook()
			pb.ApplyFill("BTC/USD", tt.dir, 9_000_000_000_000_000_000, 1, 1)
			updated := pb.MarkToMarket("BTC/USD", 50_000*quant.PriceScale, 2)
			if len(updated) != 1 || updated[0].UnrealizedPnLMicros != tt.want {
				t.Errorf("unrealized = %+v, want %d", updated, tt.want)
			}
		})
	}
}

func TestPositionBook_MarkToMarketOtherSymbol(t *testing.T) {
	pb := NewPositionBook()
	pb.ApplyFill("BTC/USD", Long, 1, 1, 1)
	if got := pb.MarkToMarket("ETH/USD", 5, 2); len(got) != 0 {
		t.Errorf("expected no updates for ETH, got %v", got)
	}
}

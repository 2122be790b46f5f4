package domain

import (
	"math"
	"sort"

	"paper_trade/pkg/quant"
	"paper_trade/pkg/safe"

	"github.com/shopspring/decimal"
)

// Direction of a position. A BUY fill accumulates LONG, a SELL fill SHORT.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// DirectionOf maps an order side to the position it accumulates into.
func DirectionOf(side Side) Direction {
	if side == SideSell {
		return Short
	}
	return Long
}

// PositionKey identifies a position.
type PositionKey struct {
	Symbol    string
	Direction Direction
}

// Position represents holdings for one (symbol, direction).
// All monetary values are strictly int64.
type Position struct {
	Symbol              string            `json:"symbol"`
	Direction           Direction         `json:"direction"`
	QtySats             quant.QtySats     `json:"qty,string"`
	AvgEntryPriceMicros quant.PriceMicros `json:"avg_entry_price,string"` // Weighted Average Entry Price.
	CurrentPriceMicros  quant.PriceMicros `json:"current_price,string"`
	UnrealizedPnLMicros int64             `json:"unrealized_pnl,string"`
	RealizedPnLMicros   int64             `json:"realized_pnl,string"` // Stays zero: fills never reduce a position.
	OpenedUnixM         quant.TimeStamp   `json:"opened_at,string"`
	UpdatedUnixM        quant.TimeStamp   `json:"updated_at,string"`
}

// Key returns the position's book key.
func (p *Position) Key() PositionKey {
	return PositionKey{Symbol: p.Symbol, Direction: p.Direction}
}

// IsLong checks if the position is Long.
func (p *Position) IsLong() bool {
	return p.Direction == Long
}

// IsShort checks if the position is Short.
func (p *Position) IsShort() bool {
	return p.Direction == Short
}

// ApplyFill adds qty at price and re-blends the average entry price:
// (q0*p0 + q1*p1) / (q0 + q1).
func (p *Position) ApplyFill(qty quant.QtySats, price quant.PriceMicros, ts quant.TimeStamp) {
	if p.QtySats == 0 {
		p.QtySats = qty
		p.AvgEntryPriceMicros = price
	} else {
		// sats*micros overflows int64 past ~1.8 BTC at 50k, so blend in decimal.
		total := safe.SafeAdd(int64(p.QtySats), int64(qty))
		cost := decimal.NewFromInt(int64(p.QtySats)).Mul(decimal.NewFromInt(int64(p.AvgEntryPriceMicros))).
			Add(decimal.NewFromInt(int64(qty)).Mul(decimal.NewFromInt(int64(price))))
		p.AvgEntryPriceMicros = quant.PriceMicros(cost.Div(decimal.NewFromInt(total)).Truncate(0).IntPart())
		p.QtySats = quant.QtySats(total)
	}
	p.UpdatedUnixM = ts
	p.MarkToMarket(price, ts)
}

// MarkToMarket revalues the position at price.
// Unrealized PnL is (price - avg) * qty for LONG and negated for SHORT,
// saturating at the int64 range.
func (p *Position) MarkToMarket(price quant.PriceMicros, ts quant.TimeStamp) {
	p.CurrentPriceMicros = price
	p.UpdatedUnixM = ts

	diff := int64(price) - int64(p.AvgEntryPriceMicros)
	neg := diff < 0
	if neg {
		diff = -diff
	}
	pnl, ok := safe.CheckedMulDiv(diff, int64(p.QtySats), quant.QtyScale)
	if !ok {
		pnl = math.MaxInt64
	}
	if neg != p.IsShort() {
		pnl = -pnl
	}
	p.UnrealizedPnLMicros = pnl
}

// PositionBook holds positions keyed by (symbol, direction).
// Not safe for concurrent use; the owner serializes access.
type PositionBook struct {
	positions map[PositionKey]*Position
}

// NewPositionBook creates an empty book.
func NewPositionBook() *PositionBook {
	return &PositionBook{positions: make(map[PositionKey]*Position)}
}

// ApplyFill upserts the position for (symbol, direction) and returns a copy.
func (pb *PositionBook) ApplyFill(symbol string, dir Direction, qty quant.QtySats, price quant.PriceMicros, ts quant.TimeStamp) Position {
	key := PositionKey{Symbol: symbol, Direction: dir}
	p, ok := pb.positions[key]
	if !ok {
		p = &Position{Symbol: symbol, Direction: dir, OpenedUnixM: ts}
		pb.positions[key] = p
	}
	p.ApplyFill(qty, price, ts)
	return *p
}

// MarkToMarket revalues every position on symbol and returns copies of the
// open ones that changed.
func (pb *PositionBook) MarkToMarket(symbol string, price quant.PriceMicros, ts quant.TimeStamp) []Position {
	var out []Position
	for _, dir := range []Direction{Long, Short} {
		p, ok := pb.positions[PositionKey{Symbol: symbol, Direction: dir}]
		if !ok || p.QtySats <= 0 {
			continue
		}
		p.MarkToMarket(price, ts)
		out = append(out, *p)
	}
	return out
}

// Get returns a copy of the position, if any.
func (pb *PositionBook) Get(key PositionKey) (Position, bool) {
	p, ok := pb.positions[key]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Open returns copies of positions with qty > 0, sorted by symbol then direction.
func (pb *PositionBook) Open() []Position {
	out := make([]Position, 0, len(pb.positions))
	for _, p := range pb.positions {
		if p.QtySats > 0 {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Direction < out[j].Direction
	})
	return out
}

package quant

import (
	"fmt"
	"math"
	"strconv"

	"paper_trade/pkg/safe"

	"github.com/shopspring/decimal"
)

// PriceMicros represents price multiplied by 1,000,000 (10^6).
// E.g., 1.23 USD = 1,230,000 PriceMicros.
type PriceMicros int64

// QtySats represents quantity multiplied by 100,000,000 (10^8).
// E.g., 1.0 BTC = 100,000,000 QtySats.
type QtySats int64

// TimeStamp represents Unix Microseconds.
type TimeStamp int64

const (
	PriceScale = 1000000
	QtyScale   = 100000000

	// BpsScale is the denominator for basis-point rates (1 bps = 0.01%).
	BpsScale = 10000
)

// ToPriceMicros converts a float64 (from external API) to PriceMicros.
// Note: Only used at the boundary. Internal logic uses PriceMicros directly.
func ToPriceMicros(f float64) PriceMicros {
	return PriceMicros(math.Round(f * PriceScale))
}

func (p PriceMicros) String() string {
	return p.Decimal().StringFixed(6)
}

func (q QtySats) String() string {
	return q.Decimal().StringFixed(8)
}

// Decimal returns the price as an exact decimal in cash units.
func (p PriceMicros) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -6)
}

// Decimal returns the quantity as an exact decimal in asset units.
func (q QtySats) Decimal() decimal.Decimal {
	return decimal.New(int64(q), -8)
}

// ParseTimeStamp converts a string (ms) to TimeStamp (micros).
func ParseTimeStamp(s string) (TimeStamp, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return TimeStamp(ms * 1000), nil
}

// ParsePriceMicros parses a decimal string ("50050.25") into PriceMicros.
// Digits beyond 10^-6 are truncated.
func ParsePriceMicros(s string) (PriceMicros, error) {
	v, err := parseScaled(s, 6)
	return PriceMicros(v), err
}

// ParseQtySats parses a decimal string ("0.1") into QtySats.
// Digits beyond 10^-8 are truncated.
func ParseQtySats(s string) (QtySats, error) {
	v, err := parseScaled(s, 8)
	return QtySats(v), err
}

func parseScaled(s string, exp int32) (int64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	if !d.IsZero() && d.Exponent()+exp > 18 {
		return 0, fmt.Errorf("parse %q: out of range", s)
	}
	// mantissa has fewer digits than s, so the scaled value is below one unit
	if d.Exponent()+exp < -int32(len(s)) {
		return 0, nil
	}
	scaled := d.Shift(exp).Truncate(0)
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("parse %q: out of range", s)
	}
	return scaled.IntPart(), nil
}

// Notional returns qty × price in cash micros, rounded down.
// Use for amounts the account receives.
func Notional(qty QtySats, price PriceMicros) int64 {
	return safe.MulDiv(int64(qty), int64(price), QtyScale)
}

// NotionalCeil returns qty × price in cash micros, rounded up.
// Use for amounts the account pays.
func NotionalCeil(qty QtySats, price PriceMicros) int64 {
	return safe.MulDivCeil(int64(qty), int64(price), QtyScale)
}

// CheckedNotional is Notional reporting an amount past int64 as ok=false.
func CheckedNotional(qty QtySats, price PriceMicros) (int64, bool) {
	return safe.CheckedMulDiv(int64(qty), int64(price), QtyScale)
}

// CheckedNotionalCeil is NotionalCeil reporting overflow as ok=false.
func CheckedNotionalCeil(qty QtySats, price PriceMicros) (int64, bool) {
	return safe.CheckedMulDivCeil(int64(qty), int64(price), QtyScale)
}

// SlipUp moves a price up by bps basis points, rounding up.
// The result saturates at math.MaxInt64.
func SlipUp(p PriceMicros, bps int64) PriceMicros {
	v, ok := safe.CheckedMulDivCeil(int64(p), BpsScale+bps, BpsScale)
	if !ok {
		return math.MaxInt64
	}
	return PriceMicros(v)
}

// SlipDown moves a price down by bps basis points, rounding down.
func SlipDown(p PriceMicros, bps int64) PriceMicros {
	return PriceMicros(safe.MulDiv(int64(p), BpsScale-bps, BpsScale))
}

package quant

import (
	"math"
	"testing"
)

func TestToPriceMicros(t *testing.T) {
	tests := []struct {
		input    float64
		expected PriceMicros
	}{
		{1.23, 1230000},
		{0.000001, 1},
		{0.0, 0},
		{-1.23, -1230000},
	}

	for _, tt := range tests {
		got := ToPriceMicros(tt.input)
		if got != tt.expected {
			t.Errorf("ToPriceMicros(%f) = %d; want %d", tt.input, got, tt.expected)
		}
	}
}

func TestPriceMicros_String(t *testing.T) {
	p := PriceMicros(1230000)
	expected := "1.230000"
	if p.String() != expected {
		t.Errorf("PriceMicros(1230000).String() = %s; want %s", p.String(), expected)
	}
	if q := QtySats(10_000_000).String(); q != "0.10000000" {
		t.Errorf("QtySats(10_000_000).String() = %s", q)
	}
}

func TestParseFixedPoint(t *testing.T) {
	tests := []struct {
		in        string
		wantPrice PriceMicros
		wantQty   QtySats
	}{
		{"50050", 50_050_000_000, 5_005_000_000_000},
		{"0.1", 100_000, 10_000_000},
		{"1.123456789", 1_123_456, 112_345_678},
		{"", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParsePriceMicros(tt.in)
			if err != nil || p != tt.wantPrice {
				t.Errorf("ParsePriceMicros(%q) = %d, %v; want %d", tt.in, p, err, tt.wantPrice)
			}
			q, err := ParseQtySats(tt.in)
			if err != nil || q != tt.wantQty {
				t.Errorf("ParseQtySats(%q) = %d, %v; want %d", tt.in, q, err, tt.wantQty)
			}
		})
	}

	if _, err := ParsePriceMicros("abc"); err == nil {
		t.Error("expected error for non-numeric input")
	}
	if _, err := ParseQtySats("999999999999999999"); err == nil {
		t.Error("expected out of range error")
	}
}

func TestNotional(t *testing.T) {
	// 0.1 BTC at 49,000 = 4,900 USD
	if got := Notional(10_000_000, 49_000_000_000); got != 4_900_000_000 {
		t.Errorf("Notional = %d", got)
	}
	// 1 sat at 0.5 micro rounds down to 0, up to 1
	if got := Notional(1, 1); got != 0 {
		t.Errorf("Notional floor = %d", got)
	}
	if got := NotionalCeil(1, 1); got != 1 {
		t.Errorf("NotionalCeil = %d", got)
	}
	// 90 billion BTC at 50,050 USD does not fit in cash micros.
	if _, ok := CheckedNotionalCeil(9_000_000_000_000_000_000, 50_050_000_000); ok {
		t.Error("CheckedNotionalCeil should report overflow")
	}
	if got, ok := CheckedNotional(10_000_000, 49_000_000_000); !ok || got != 4_900_000_000 {
		t.Errorf("CheckedNotional = (%d, %v)", got, ok)
	}
}

func TestSlippage(t *testing.T) {
	ask := PriceMicros(50_050_000_000)
	if got := SlipUp(ask, 10); got != 50_100_050_000 {
		t.Errorf("SlipUp = %d", got)
	}
	bid := PriceMicros(49_950_000_000)
	if got := SlipDown(bid, 10); got != 49_900_050_000 {
		t.Errorf("SlipDown = %d", got)
	}
	if SlipUp(ask, 0) != ask || SlipDown(bid, 0) != bid {
		t.Error("zero slippage must not move the price")
	}
	if got := SlipUp(math.MaxInt64-1, 10); got != math.MaxInt64 {
		t.Errorf("SlipUp saturation = %d", got)
	}
}

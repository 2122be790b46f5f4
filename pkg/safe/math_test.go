package safe

import (
	"math"
	"testing"
)

func TestSafeMath(t *testing.T) {
	tests := []struct {
		name string
		val1 int64
		val2 int64
		want int64
	}{
		{"Normal Add", 10, 20, 30},
		{"Add Boundary", math.MaxInt64 - 1, 1, math.MaxInt64},
		{"Normal Sub", 30, 10, 20},
		{"Normal Mul", 5, 6, 30},
		{"Normal Div", 100, 4, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got int64
			switch tt.name {
			case "Normal Add", "Add Boundary":
				got = SafeAdd(tt.val1, tt.val2)
			case "Normal Sub":
				got = SafeSub(tt.val1, tt.val2)
			case "Normal Mul":
				got = SafeMul(tt.val1, tt.val2)
			case "Normal Div":
				got = SafeDiv(tt.val1, tt.val2)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMathPanic(t *testing.T) {
	t.Run("Add Overflow", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Should have panicked")
			}
		}()
		SafeAdd(math.MaxInt64, 1)
	})

	t.Run("Div By Zero", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Should have panicked")
			}
		}()
		SafeDiv(10, 0)
	})
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name      string
		a, b, c   int64
		wantFloor int64
		wantCeil  int64
	}{
		{"Exact", 10, 10, 4, 25, 25},
		{"Remainder", 10, 10, 3, 33, 34},
		{"Zero", 0, 123, 7, 0, 0},
		// 3 BTC at 50,050 USD: the raw product overflows int64.
		{"WideProduct", 300_000_000, 50_050_000_000, 100_000_000, 150_150_000_000, 150_150_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MulDiv(tt.a, tt.b, tt.c); got != tt.wantFloor {
				t.Errorf("MulDiv = %d, want %d", got, tt.wantFloor)
			}
			if got := MulDivCeil(tt.a, tt.b, tt.c); got != tt.wantCeil {
				t.Errorf("MulDivCeil = %d, want %d", got, tt.wantCeil)
			}
		})
	}
}

func TestMulDivPanic(t *testing.T) {
	cases := map[string]func(){
		"Negative":  func() { MulDiv(-1, 2, 3) },
		"ZeroDiv":   func() { MulDiv(1, 2, 0) },
		"Overflow":  func() { MulDiv(math.MaxInt64, math.MaxInt64, 1) },
		"CeilCarry": func() { MulDivCeil(math.MaxInt64, 3, 2) },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Error("Should have panicked")
				}
			}()
			fn()
		})
	}
}

func TestCheckedMulDiv(t *testing.T) {
	tests := []struct {
		name     string
		a, b, c  int64
		want     int64
		wantCeil int64
		ok       bool
	}{
		{"Fits", 10, 10, 3, 33, 34, true},
		{"ExactMax", math.MaxInt64, 2, 2, math.MaxInt64, math.MaxInt64, true},
		// 90 billion BTC at 50,050 USD, in cash micros.
		{"QuotientOverflow", 9_000_000_000_000_000_000, 50_050_000_000, 100_000_000, 0, 0, false},
		{"WideOverflow", math.MaxInt64, math.MaxInt64, 1, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CheckedMulDiv(tt.a, tt.b, tt.c)
			if ok != tt.ok || got != tt.want {
				t.Errorf("CheckedMulDiv = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.ok)
			}
			got, ok = CheckedMulDivCeil(tt.a, tt.b, tt.c)
			if ok != tt.ok || got != tt.wantCeil {
				t.Errorf("CheckedMulDivCeil = (%d, %v), want (%d, %v)", got, ok, tt.wantCeil, tt.ok)
			}
		})
	}

	t.Run("CeilPastMax", func(t *testing.T) {
		// (2^32-1)(2^32+1) = 2^64-1, so the floor is MaxInt64 with remainder 1.
		if q, ok := CheckedMulDiv(4_294_967_295, 4_294_967_297, 2); !ok || q != math.MaxInt64 {
			t.Errorf("CheckedMulDiv = (%d, %v)", q, ok)
		}
		if _, ok := CheckedMulDivCeil(4_294_967_295, 4_294_967_297, 2); ok {
			t.Error("rounding up past MaxInt64 should report overflow")
		}
	})
}

func TestSaturatingAdd(t *testing.T) {
	tests := []struct {
		name string
		a, b int64
		want int64
	}{
		{"Normal", 1, 2, 3},
		{"ClampHigh", math.MaxInt64, 1, math.MaxInt64},
		{"ClampLow", math.MinInt64, -1, math.MinInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SaturatingAdd(tt.a, tt.b); got != tt.want {
				t.Errorf("SaturatingAdd = %d, want %d", got, tt.want)
			}
		})
	}
}

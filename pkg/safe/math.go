package safe

import (
	"math"
	"math/bits"
)

// SafeAdd performs int64 addition and panics on overflow/underflow.
func SafeAdd(a, b int64) int64 {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		panic("CORE_SAFE_ADD_OVERFLOW")
	}
	return a + b
}

// SafeSub performs int64 subtraction and panics on overflow/underflow.
func SafeSub(a, b int64) int64 {
	if (b > 0 && a < math.MinInt64+b) || (b < 0 && a > math.MaxInt64+b) {
		panic("CORE_SAFE_SUB_OVERFLOW")
	}
	return a - b
}

// SafeMul performs int64 multiplication and panics on overflow/underflow.
func SafeMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > 0 {
		if b > 0 {
			if a > math.MaxInt64/b {
				panic("CORE_SAFE_MUL_OVERFLOW")
			}
		} else {
			if b < math.MinInt64/a {
				panic("CORE_SAFE_MUL_OVERFLOW")
			}
		}
	} else {
		if b > 0 {
			if a < math.MinInt64/b {
				panic("CORE_SAFE_MUL_OVERFLOW")
			}
		} else {
			if a < math.MaxInt64/b {
				panic("CORE_SAFE_MUL_OVERFLOW")
			}
		}
	}
	return a * b
}

// SafeDiv performs int64 division and panics on division by zero.
func SafeDiv(a, b int64) int64 {
	if b == 0 {
		panic("CORE_SAFE_DIV_BY_ZERO")
	}
	// Note: int64 MinInt64 / -1 also overflows, but it's rare.
	if a == math.MinInt64 && b == -1 {
		panic("CORE_SAFE_DIV_OVERFLOW")
	}
	return a / b
}

// MulDiv returns floor(a*b/c) using a 128-bit intermediate product.
// Operands must be non-negative and c positive; a quotient that does not fit
// in int64 panics.
func MulDiv(a, b, c int64) int64 {
	q, ok := CheckedMulDiv(a, b, c)
	if !ok {
		panic("CORE_SAFE_MULDIV_OVERFLOW")
	}
	return q
}

// MulDivCeil returns ceil(a*b/c). Same operand rules as MulDiv.
func MulDivCeil(a, b, c int64) int64 {
	q, ok := CheckedMulDivCeil(a, b, c)
	if !ok {
		panic("CORE_SAFE_MULDIV_OVERFLOW")
	}
	return q
}

// CheckedMulDiv is MulDiv reporting an int64 overflow as ok=false instead of
// panicking. Negative operands and a non-positive c still panic.
func CheckedMulDiv(a, b, c int64) (int64, bool) {
	q, _, ok := mulDiv(a, b, c)
	return q, ok
}

// CheckedMulDivCeil is MulDivCeil reporting overflow as ok=false.
func CheckedMulDivCeil(a, b, c int64) (int64, bool) {
	q, r, ok := mulDiv(a, b, c)
	if !ok {
		return 0, false
	}
	if r != 0 {
		if q == math.MaxInt64 {
			return 0, false
		}
		q++
	}
	return q, true
}

// SaturatingAdd returns a+b clamped to the int64 range.
func SaturatingAdd(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	if b < 0 && a < math.MinInt64-b {
		return math.MinInt64
	}
	return a + b
}

func mulDiv(a, b, c int64) (int64, uint64, bool) {
	if a < 0 || b < 0 {
		panic("CORE_SAFE_MULDIV_NEGATIVE")
	}
	if c <= 0 {
		panic("CORE_SAFE_DIV_BY_ZERO")
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi >= uint64(c) {
		return 0, 0, false
	}
	q, r := bits.Div64(hi, lo, uint64(c))
	if q > math.MaxInt64 {
		return 0, 0, false
	}
	return int64(q), r, true
}

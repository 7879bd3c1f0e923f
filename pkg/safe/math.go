package safe

import (
	"math"
	"math/bits"
)

// Panic tags. The engine loop recovers them and dumps state.
const (
	ErrAddOverflow = "CORE_SAFE_ADD_OVERFLOW"
	ErrSubOverflow = "CORE_SAFE_SUB_OVERFLOW"
	ErrMulOverflow = "CORE_SAFE_MUL_OVERFLOW"
	ErrDivByZero   = "CORE_SAFE_DIV_BY_ZERO"
	ErrDivOverflow = "CORE_SAFE_DIV_OVERFLOW"
)

// SafeAdd performs int64 addition and panics on overflow/underflow.
func SafeAdd(a, b int64) int64 {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		panic(ErrAddOverflow)
	}
	return a + b
}

// SafeSub performs int64 subtraction and panics on overflow/underflow.
func SafeSub(a, b int64) int64 {
	if (b > 0 && a < math.MinInt64+b) || (b < 0 && a > math.MaxInt64+b) {
		panic(ErrSubOverflow)
	}
	return a - b
}

// SafeMul performs int64 multiplication and panics on overflow/underflow.
func SafeMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	r := a * b
	if r/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		panic(ErrMulOverflow)
	}
	return r
}

// MulDiv returns a*b/c truncated toward zero. The product is kept in 128 bits,
// so price*qty at 1e8 scale does not overflow before the division.
func MulDiv(a, b, c int64) int64 {
	if c == 0 {
		panic(ErrDivByZero)
	}
	neg := (a < 0) != (b < 0) != (c < 0)
	hi, lo := bits.Mul64(abs(a), abs(b))
	d := abs(c)
	if hi >= d {
		panic(ErrMulOverflow)
	}
	q, _ := bits.Div64(hi, lo, d)
	if neg {
		if q > 1<<63 {
			panic(ErrDivOverflow)
		}
		return -int64(q)
	}
	if q > math.MaxInt64 {
		panic(ErrDivOverflow)
	}
	return int64(q)
}

// MulDivCeil returns a*b/c rounded up, for a, b >= 0 and c > 0. Unlike
// MulDiv it never panics: ok is false when the inputs are out of range or the
// result does not fit in int64.
func MulDivCeil(a, b, c int64) (int64, bool) {
	if a < 0 || b < 0 || c <= 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi >= uint64(c) {
		return 0, false
	}
	q, r := bits.Div64(hi, lo, uint64(c))
	if q > math.MaxInt64 {
		return 0, false
	}
	if r != 0 {
		if q == math.MaxInt64 {
			return 0, false
		}
		q++
	}
	return int64(q), true
}

func abs(v int64) uint64 {
	if v < 0 {
		return uint64(^v) + 1
	}
	return uint64(v)
}

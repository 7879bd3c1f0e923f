package safe

import (
	"math"
	"testing"
)

// FuzzSafeAdd tests SafeAdd with fuzzing.
func FuzzSafeAdd(f *testing.F) {
	// Seed corpus
	f.Add(int64(0), int64(0))
	f.Add(int64(1), int64(2))
	f.Add(int64(-1), int64(1))
	f.Add(int64(9223372036854775807), int64(0))  // MaxInt64
	f.Add(int64(-9223372036854775808), int64(0)) // MinInt64

	f.Fuzz(func(t *testing.T, a, b int64) {
		defer func() { recover() }() // Overflow panic is expected behavior
		_ = SafeAdd(a, b)
	})
}

// FuzzSafeSub tests SafeSub with fuzzing.
func FuzzSafeSub(f *testing.F) {
	f.Add(int64(0), int64(0))
	f.Add(int64(10), int64(5))
	f.Add(int64(-1), int64(-1))
	f.Add(int64(9223372036854775807), int64(0))
	f.Add(int64(-9223372036854775808), int64(0))

	f.Fuzz(func(t *testing.T, a, b int64) {
		defer func() { recover() }()
		_ = SafeSub(a, b)
	})
}

// FuzzSafeMul tests SafeMul with fuzzing.
func FuzzSafeMul(f *testing.F) {
	f.Add(int64(0), int64(0))
	f.Add(int64(2), int64(3))
	f.Add(int64(-2), int64(3))
	f.Add(int64(1000000), int64(1000000))

	f.Fuzz(func(t *testing.T, a, b int64) {
		defer func() { recover() }()
		_ = SafeMul(a, b)
	})
}

// FuzzMulDiv checks MulDiv against SafeMul and plain division wherever the
// product fits in int64.
func FuzzMulDiv(f *testing.F) {
	f.Add(int64(100_00000000), int64(1_00000000), int64(1_00000000))
	f.Add(int64(-7), int64(3), int64(2))
	f.Add(int64(1), int64(1), int64(-1))

	f.Fuzz(func(t *testing.T, a, b, c int64) {
		var want int64
		ok := func() (ok bool) {
			defer func() {
				if recover() != nil {
					ok = false
				}
			}()
			p := SafeMul(a, b)
			if c == 0 || (p == math.MinInt64 && c == -1) {
				return false
			}
			want = p / c
			return true
		}()
		if !ok {
			return
		}
		if got := MulDiv(a, b, c); got != want {
			t.Fatalf("MulDiv(%d, %d, %d) = %d, want %d", a, b, c, got, want)
		}
	})
}

// FuzzMulDivCeil checks that MulDivCeil never panics and agrees with MulDiv
// rounded up whenever it reports a result.
func FuzzMulDivCeil(f *testing.F) {
	f.Add(int64(100_00000000), int64(1_00000000), int64(1_00000000))
	f.Add(int64(1), int64(1), int64(1_00000000))
	f.Add(int64(math.MaxInt64), int64(math.MaxInt64), int64(1))

	f.Fuzz(func(t *testing.T, a, b, c int64) {
		got, ok := MulDivCeil(a, b, c)
		if !ok || a < 0 || b < 0 || c <= 0 {
			return
		}
		floor := MulDiv(a, b, c)
		if got != floor && got != floor+1 {
			t.Fatalf("MulDivCeil(%d, %d, %d) = %d, floor %d", a, b, c, got, floor)
		}
	})
}

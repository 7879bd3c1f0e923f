package quant

import (
	"testing"
)

// FuzzParseFixed checks that parsing never panics and round-trips through String.
func FuzzParseFixed(f *testing.F) {
	f.Add("0")
	f.Add("1.23")
	f.Add("-1.23")
	f.Add("0.00000001")
	f.Add("21000000.0") // Max BTC supply
	f.Add("1e5")

	f.Fuzz(func(t *testing.T, s string) {
		v, err := ParseQtySats(s)
		if err != nil {
			return
		}
		back, err := ParseQtySats(v.String())
		if err != nil || back != v {
			t.Fatalf("round trip %q -> %d -> %q -> %d (%v)", s, v, v.String(), back, err)
		}
	})
}

// FuzzNotionalCost checks the cost never undercounts the truncated notional
// and never panics.
func FuzzNotionalCost(f *testing.F) {
	f.Add(int64(100*Scale), int64(Scale))
	f.Add(int64(1), int64(1))
	f.Add(int64(1_000_000_000*Scale), int64(100_000*Scale))

	f.Fuzz(func(t *testing.T, p, q int64) {
		c, ok := NotionalCost(PriceSats(p), QtySats(q))
		if !ok {
			return
		}
		if p < 0 || q < 0 {
			t.Fatalf("negative inputs accepted: %d x %d", p, q)
		}
		if floor := Notional(PriceSats(p), QtySats(q)); c < floor || c > floor+1 {
			t.Fatalf("NotionalCost(%d, %d) = %d, truncated %d", p, q, c, floor)
		}
	})
}

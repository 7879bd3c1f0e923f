package reconcile

import (
	"math"
	"reflect"
	"testing"

	"crypto_arb/internal/domain"
	"crypto_arb/pkg/quant"
)

const unit = quant.Scale

func lvl(price, qty float64) domain.PriceLevel {
	return domain.PriceLevel{Price: quant.PriceSats(price * unit), Qty: quant.QtySats(qty * unit)}
}

func TestFundedEntries(t *testing.T) {
	tests := []struct {
		name          string
		levels        []domain.PriceLevel
		available     int64
		consumesQuote bool
		want          []domain.PriceLevel
	}{
		{
			name:          "Quote budget stops before second level",
			levels:        []domain.PriceLevel{lvl(100, 1), lvl(90, 1)},
			available:     150 * unit,
			consumesQuote: true,
			want:          []domain.PriceLevel{lvl(100, 1)},
		},
		{
			name:          "Exact budget is affordable",
			levels:        []domain.PriceLevel{lvl(100, 1), lvl(90, 1)},
			available:     190 * unit,
			consumesQuote: true,
			want:          []domain.PriceLevel{lvl(100, 1), lvl(90, 1)},
		},
		{
			name:          "Truncates even when a later level would fit",
			levels:        []domain.PriceLevel{lvl(101, 1), lvl(102, 5), lvl(103, 0.5)},
			available:     2 * unit,
			consumesQuote: false,
			want:          []domain.PriceLevel{lvl(101, 1)},
		},
		{
			name:          "Base budget counts quantity only",
			levels:        []domain.PriceLevel{lvl(60000, 0.25), lvl(60001, 0.25)},
			available:     unit / 2,
			consumesQuote: false,
			want:          []domain.PriceLevel{lvl(60000, 0.25), lvl(60001, 0.25)},
		},
		{
			name:          "First level unaffordable",
			levels:        []domain.PriceLevel{lvl(100, 2)},
			available:     150 * unit,
			consumesQuote: true,
			want:          nil,
		},
		{
			name: "Overflowing notional is unaffordable",
			levels: []domain.PriceLevel{
				{Price: 1_000_000_000 * unit, Qty: 100_000 * unit},
				lvl(100, 1),
			},
			available:     150 * unit,
			consumesQuote: true,
			want:          nil,
		},
		{
			name: "Overflowing level after a funded one",
			levels: []domain.PriceLevel{
				lvl(100, 1),
				{Price: math.MaxInt64, Qty: math.MaxInt64},
			},
			available:     math.MaxInt64,
			consumesQuote: true,
			want:          []domain.PriceLevel{lvl(100, 1)},
		},
		{
			name: "Dust levels cost at least one sat",
			levels: []domain.PriceLevel{
				{Price: 1, Qty: 1}, {Price: 1, Qty: 1}, {Price: 1, Qty: 1},
			},
			available:     2,
			consumesQuote: true,
			want:          []domain.PriceLevel{{Price: 1, Qty: 1}, {Price: 1, Qty: 1}},
		},
		{
			name:          "Zero balance",
			levels:        []domain.PriceLevel{lvl(100, 1)},
			available:     0,
			consumesQuote: true,
			want:          nil,
		},
		{
			name:          "Empty book",
			levels:        nil,
			available:     150 * unit,
			consumesQuote: true,
			want:          nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FundedEntries(tt.levels, tt.available, tt.consumesQuote)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FundedEntries() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFundedEntries_DoesNotAlias(t *testing.T) {
	in := []domain.PriceLevel{lvl(100, 1)}
	out := FundedEntries(in, 200*unit, true)
	out[0].Qty = 0
	if in[0].Qty != unit {
		t.Error("result must not share the input backing array")
	}
}

func TestFundedSide(t *testing.T) {
	bal := domain.Balance{QuoteAvailable: 150 * unit, BaseAvailable: unit}
	bids := FundedSide(domain.BookSide{Side: domain.Bid, Levels: []domain.PriceLevel{lvl(100, 1), lvl(90, 1)}}, bal)
	if len(bids.Levels) != 1 {
		t.Errorf("expected 1 funded bid, got %d", len(bids.Levels))
	}
	asks := FundedSide(domain.BookSide{Side: domain.Ask, Levels: []domain.PriceLevel{lvl(110, 0.5), lvl(111, 0.5), lvl(112, 0.5)}}, bal)
	if len(asks.Levels) != 2 {
		t.Errorf("expected 2 funded asks, got %d", len(asks.Levels))
	}
}

func addCapped(a, b int64) int64 {
	if b > math.MaxInt64-a {
		return math.MaxInt64
	}
	return a + b
}

func cost(levels []domain.PriceLevel, consumesQuote bool) int64 {
	var c int64
	for _, l := range levels {
		if consumesQuote {
			n, ok := quant.NotionalCost(l.Price, l.Qty)
			if !ok {
				return math.MaxInt64
			}
			c = addCapped(c, int64(n))
		} else {
			c = addCapped(c, int64(l.Qty))
		}
	}
	return c
}

// FuzzFundedEntries checks the filter properties: the result is a prefix of
// the input, never costs more than available, and never shrinks when the
// balance grows.
func FuzzFundedEntries(f *testing.F) {
	f.Add([]byte{100, 1, 90, 1, 80, 3}, int64(150), true)
	f.Add([]byte{1, 1, 2, 2, 3, 3}, int64(4), false)
	f.Add([]byte{}, int64(10), true)

	f.Fuzz(func(t *testing.T, raw []byte, avail int64, consumesQuote bool) {
		if avail < 0 || avail > 1<<30 {
			return
		}
		var levels []domain.PriceLevel
		for i := 0; i+1 < len(raw); i += 2 {
			levels = append(levels, domain.PriceLevel{
				Price: quant.PriceSats(int64(raw[i]) * unit),
				Qty:   quant.QtySats(int64(raw[i+1]) * unit / 10),
			})
		}
		available := avail * unit / 100

		got := FundedEntries(levels, available, consumesQuote)
		if len(got) > len(levels) || !reflect.DeepEqual(got, levels[:len(got)]) && len(got) > 0 {
			t.Fatalf("result is not a prefix: %v of %v", got, levels)
		}
		if c := cost(got, consumesQuote); c > available {
			t.Fatalf("cost %d exceeds available %d", c, available)
		}
		if len(got) < len(levels) && available > 0 {
			next := cost(levels[:len(got)+1], consumesQuote)
			if next <= available {
				t.Fatalf("stopped early: next prefix cost %d fits %d", next, available)
			}
		}
		more := FundedEntries(levels, available+unit, consumesQuote)
		if len(more) < len(got) {
			t.Fatalf("larger balance funded fewer levels: %d < %d", len(more), len(got))
		}
	})
}

// FuzzFundedEntries_FullRange feeds arbitrary non-negative int64 levels and
// balances: the filter must never panic and never overspend.
func FuzzFundedEntries_FullRange(f *testing.F) {
	f.Add(int64(1_000_000_000*unit), int64(100_000*unit), int64(100*unit), int64(unit), int64(150*unit))
	f.Add(int64(math.MaxInt64), int64(math.MaxInt64), int64(1), int64(1), int64(math.MaxInt64))
	f.Add(int64(1), int64(1), int64(1), int64(1), int64(1))

	f.Fuzz(func(t *testing.T, p1, q1, p2, q2, available int64) {
		if p1 < 0 || q1 < 0 || p2 < 0 || q2 < 0 {
			return
		}
		levels := []domain.PriceLevel{
			{Price: quant.PriceSats(p1), Qty: quant.QtySats(q1)},
			{Price: quant.PriceSats(p2), Qty: quant.QtySats(q2)},
		}
		for _, consumesQuote := range []bool{true, false} {
			got := FundedEntries(levels, available, consumesQuote)
			if c := cost(got, consumesQuote); len(got) > 0 && c > available {
				t.Fatalf("cost %d exceeds available %d", c, available)
			}
		}
	})
}

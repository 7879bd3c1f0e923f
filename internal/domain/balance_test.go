package domain

import (
	"errors"
	"testing"

	"crypto_arb/pkg/quant"
)

func ptrQuote(v int64) *quant.PriceSats { p := quant.PriceSats(v); return &p }
func ptrBase(v int64) *quant.QtySats    { q := quant.QtySats(v); return &q }

func TestBalanceTracker_ApplySnapshot(t *testing.T) {
	bt := NewBalanceTracker()
	if bt.Version() != 0 {
		t.Fatalf("expected version 0, got %d", bt.Version())
	}

	if err := bt.ApplySnapshot(ptrQuote(150_00000000), ptrBase(2_00000000)); err != nil {
		t.Fatal(err)
	}
	got := bt.Get()
	if got.QuoteAvailable != 150_00000000 || got.BaseAvailable != 2_00000000 {
		t.Errorf("unexpected balance %+v", got)
	}

	// Partial message: only quote changes.
	if err := bt.ApplySnapshot(ptrQuote(10_00000000), nil); err != nil {
		t.Fatal(err)
	}
	got = bt.Get()
	if got.QuoteAvailable != 10_00000000 || got.BaseAvailable != 2_00000000 {
		t.Errorf("partial snapshot should keep base, got %+v", got)
	}
	if bt.Version() != 2 {
		t.Errorf("expected version 2, got %d", bt.Version())
	}
}

func TestBalanceTracker_RejectsNegative(t *testing.T) {
	bt := NewBalanceTracker()
	_ = bt.ApplySnapshot(ptrQuote(5), ptrBase(5))

	err := bt.ApplySnapshot(ptrQuote(10), ptrBase(-1))
	if !errors.Is(err, ErrNegativeBalance) {
		t.Fatalf("expected ErrNegativeBalance, got %v", err)
	}
	if got := bt.Get(); got.QuoteAvailable != 5 || got.BaseAvailable != 5 {
		t.Errorf("rejected snapshot must not apply partially, got %+v", got)
	}
}

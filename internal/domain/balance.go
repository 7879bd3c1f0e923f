package domain

import (
	"errors"
	"fmt"
	"sync"

	"crypto_arb/pkg/quant"
)

var ErrNegativeBalance = errors.New("negative balance")

// Balance is the funding available on the target venue.
type Balance struct {
	QuoteAvailable quant.PriceSats `json:"quote,string"`
	BaseAvailable  quant.QtySats   `json:"base,string"`
}

// BalanceTracker keeps the latest balance reported by the target venue.
// Writes come from the engine loop only; reads may come from any goroutine.
type BalanceTracker struct {
	mu      sync.RWMutex
	bal     Balance
	version uint64
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{}
}

func (t *BalanceTracker) Get() Balance {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bal
}

// Version counts applied snapshots. Zero means no balance has been seen yet.
func (t *BalanceTracker) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// ApplySnapshot replaces the currencies present in a balance message.
// A nil value leaves that currency unchanged.
func (t *BalanceTracker) ApplySnapshot(quote *quant.PriceSats, base *quant.QtySats) error {
	if quote != nil && *quote < 0 {
		return fmt.Errorf("%w: quote %s", ErrNegativeBalance, *quote)
	}
	if base != nil && *base < 0 {
		return fmt.Errorf("%w: base %s", ErrNegativeBalance, *base)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if quote != nil {
		t.bal.QuoteAvailable = *quote
	}
	if base != nil {
		t.bal.BaseAvailable = *base
	}
	t.version++
	return nil
}

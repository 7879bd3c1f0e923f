package execution

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"crypto_arb/internal/domain"
	"crypto_arb/pkg/quant"
)

// MockTarget records target venue calls instead of sending them.
type MockTarget struct {
	mu           sync.Mutex
	Commands     []domain.Command
	CancelAlls   int
	BalanceReqs  int
	Err          error // returned by SendOrderCommand when set
}

func NewMockTarget() *MockTarget { return &MockTarget{} }

func (m *MockTarget) SendOrderCommand(ctx context.Context, cmd domain.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Commands = append(m.Commands, cmd)
	return nil
}

func (m *MockTarget) CancelAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CancelAlls++
	return nil
}

func (m *MockTarget) RequestBalances(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BalanceReqs++
	return nil
}

// Snapshot returns copies of the recorded calls.
func (m *MockTarget) Snapshot() (cmds []domain.Command, cancelAlls, balanceReqs int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Command(nil), m.Commands...), m.CancelAlls, m.BalanceReqs
}

// Reset clears the recorded commands.
func (m *MockTarget) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commands = nil
}

// MockReference records hedge orders.
type MockReference struct {
	mu     sync.Mutex
	Orders []domain.Hedge
	Calls  int
	Err    error
	// Delay holds the reply back after the order is recorded, like a venue
	// that accepts the order but answers late.
	Delay time.Duration
}

func (m *MockReference) SubmitOrder(ctx context.Context, side domain.Side, price quant.PriceSats, qty quant.QtySats) error {
	m.mu.Lock()
	m.Calls++
	slog.Info("MOCK REFERENCE: Submit Order", "side", side, "price", price, "qty", qty)
	if m.Err != nil {
		m.mu.Unlock()
		return m.Err
	}
	m.Orders = append(m.Orders, domain.Hedge{Side: side, Price: price, Qty: qty})
	delay := m.Delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil
}

// CallCount returns the number of SubmitOrder calls.
func (m *MockReference) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

func (m *MockReference) Snapshot() []domain.Hedge {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Hedge(nil), m.Orders...)
}

package engine

import (
	"log/slog"

	"crypto_arb/internal/domain"
	"crypto_arb/internal/reconcile"
	"crypto_arb/internal/storage"
	"crypto_arb/pkg/quant"
)

// State is a copy of the engine state for readers outside the loop.
type State struct {
	Seq      uint64             `json:"seq"`
	LoggedIn bool               `json:"logged_in"`
	BrokerID string             `json:"broker_id"`
	Balance  domain.Balance     `json:"balance"`
	Market   domain.MarketState `json:"market"`
	Position domain.Position    `json:"position"`
	Exposure quant.QtySats      `json:"exposure,string"`
	Bids     []domain.OpenOrder `json:"bids"`
	Asks     []domain.OpenOrder `json:"asks"`
}

// State returns the state as of the last processed event.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) buildState() State {
	return State{
		Seq:      e.lastSeq,
		LoggedIn: e.loggedIn,
		BrokerID: e.brokerID,
		Balance:  e.balances.Get(),
		Market:   e.market,
		Position: e.position,
		Exposure: e.position.Exposure(),
		Bids:     e.bids.Orders(),
		Asks:     e.asks.Orders(),
	}
}

func (e *Engine) publish() {
	s := e.buildState()
	e.setOrderGauges(e.bids)
	e.setOrderGauges(e.asks)

	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) setOrderGauges(rec *reconcile.SideReconciler) {
	if e.metrics == nil {
		return
	}
	counts := make(map[string]int, 3)
	for st, n := range rec.Counts() {
		counts[st.String()] = n
	}
	e.metrics.SetOpenOrders(rec.Side().String(), counts)
}

// DumpState writes the current state to a snapshot file for post-mortem.
func (e *Engine) DumpState(reason string) {
	s := e.buildState()
	if e.snapshots == nil {
		slog.Info("STATE_DUMP", "reason", reason, "state", s)
		return
	}
	snap, err := storage.CreateSnapshot(e.lastSeq, reason, s)
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}
	if _, err := e.snapshots.Save(snap); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}

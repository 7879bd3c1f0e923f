package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"crypto_arb/internal/domain"
	"crypto_arb/internal/engine"
	"crypto_arb/internal/event"
	"crypto_arb/internal/storage"
)

// Replayer rebuilds session, balance and position state by feeding journal
// entries back through the engine. Book updates are not journaled, so open
// orders are not reconstructed.
type Replayer struct {
	journal *storage.Journal
}

func NewReplayer(j *storage.Journal) *Replayer {
	return &Replayer{journal: j}
}

// Stats summarizes a replay.
type Stats struct {
	Applied int
	Skipped int
	LastID  int64
}

// RunReplay replays every entry after afterID into eng, in journal order.
func (r *Replayer) RunReplay(ctx context.Context, eng *engine.Engine, afterID int64) (Stats, error) {
	var st Stats
	err := r.journal.Scan(ctx, afterID, func(e storage.Entry) error {
		st.LastID = e.ID
		ev, err := decode(e)
		if err != nil {
			return fmt.Errorf("entry %d (%s): %w", e.ID, e.Kind, err)
		}
		if ev == nil {
			st.Skipped++
			return nil
		}
		// Feed synchronously for deterministic replay.
		if err := eng.ReplayEvent(ctx, ev); err != nil && !errors.Is(err, engine.ErrAuthFailed) {
			return fmt.Errorf("entry %d (%s): %w", e.ID, e.Kind, err)
		}
		st.Applied++
		return nil
	})
	if err != nil {
		return st, err
	}
	slog.Info("Replay finished", "applied", st.Applied, "skipped", st.Skipped, "last_id", st.LastID)
	return st, nil
}

// decode maps a journal entry to the event that produced it. Entries that
// record outputs (commands, queued hedges, sweeps) return nil.
func decode(e storage.Entry) (event.Event, error) {
	switch e.Kind {
	case storage.KindLogin:
		var ev event.LoginEvent
		if err := json.Unmarshal(e.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case storage.KindBalance:
		var ev event.BalanceEvent
		if err := json.Unmarshal(e.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case storage.KindExecution:
		var r domain.ExecutionReport
		if err := json.Unmarshal(e.Payload, &r); err != nil {
			return nil, err
		}
		return event.ExecutionEvent{BaseEvent: event.BaseEvent{Ts: e.Ts}, Report: r}, nil
	case storage.KindHedgeResult:
		var ev event.HedgeResultEvent
		if err := json.Unmarshal(e.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	}
	return nil, nil
}

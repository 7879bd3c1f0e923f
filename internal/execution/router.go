package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"crypto_arb/internal/domain"
)

var ErrHedgeBacklogFull = errors.New("hedge backlog full")

// Router forwards reconciler commands to the target venue and fills to the
// hedger. It never waits on the reference venue.
type Router struct {
	target TargetVenue
	hedger *Hedger
	onSent func(cmd domain.Command, err error)
}

func NewRouter(target TargetVenue, hedger *Hedger) *Router {
	return &Router{target: target, hedger: hedger}
}

// OnSent registers a callback invoked after every command write.
func (r *Router) OnSent(fn func(cmd domain.Command, err error)) { r.onSent = fn }

// Send writes commands in order. A failed write does not stop the rest;
// all failures are returned joined.
func (r *Router) Send(ctx context.Context, cmds []domain.Command) error {
	var errs []error
	for _, cmd := range cmds {
		err := r.target.SendOrderCommand(ctx, cmd)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", cmd.Type, cmd.ClientID, err))
		}
		if r.onSent != nil {
			r.onSent(cmd, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Router) CancelAll(ctx context.Context) error {
	return r.target.CancelAll(ctx)
}

func (r *Router) RequestBalances(ctx context.Context) error {
	return r.target.RequestBalances(ctx)
}

// Hedge offsets a target fill: the reference order takes the opposite side
// at the fill price and quantity.
func (r *Router) Hedge(report domain.ExecutionReport) (domain.Hedge, error) {
	h := domain.Hedge{
		Side:     report.Side.Opposite(),
		Price:    report.FillPrice(),
		Qty:      report.LastQty,
		SourceID: report.ClientID,
	}
	if r.hedger == nil {
		return h, errors.New("no hedger configured")
	}
	if !r.hedger.Enqueue(h) {
		slog.Error("HEDGE_BACKLOG_FULL", "source", h.SourceID, "side", h.Side, "qty", h.Qty)
		return h, ErrHedgeBacklogFull
	}
	return h, nil
}

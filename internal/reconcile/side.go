package reconcile

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"crypto_arb/internal/domain"
	"crypto_arb/pkg/quant"
)

// SideReconciler owns the target venue orders of one book side and turns each
// new target level set into the cancel/create commands that converge on it.
// It is not safe for concurrent use; the engine loop is its only caller.
type SideReconciler struct {
	side   domain.Side
	symbol string
	seq    uint64

	orders map[string]*domain.OpenOrder // every tracked order by client id
	live   map[quant.PriceSats]string   // price -> client id of the Pending/Resting order
	now    func() quant.TimeStamp
}

func NewSideReconciler(side domain.Side, symbol string) *SideReconciler {
	return &SideReconciler{
		side:   side,
		symbol: symbol,
		orders: make(map[string]*domain.OpenOrder),
		live:   make(map[quant.PriceSats]string),
		now:    func() quant.TimeStamp { return quant.TimeStamp(time.Now().UnixMicro()) },
	}
}

func (r *SideReconciler) Side() domain.Side { return r.side }

// Process diffs target against the live orders. Cancels come first, best
// price first, followed by creates in target order. A price whose quantity
// changed is cancelled and re-created.
func (r *SideReconciler) Process(target []domain.PriceLevel) []domain.Command {
	desired := make(map[quant.PriceSats]quant.QtySats, len(target))
	levels := make([]domain.PriceLevel, 0, len(target))
	for _, l := range target {
		if l.Qty <= 0 {
			continue
		}
		if _, dup := desired[l.Price]; dup {
			slog.Warn("RECONCILE_DUPLICATE_LEVEL", "side", r.side, "price", l.Price)
			continue
		}
		desired[l.Price] = l.Qty
		levels = append(levels, l)
	}

	var cmds []domain.Command

	stale := make([]*domain.OpenOrder, 0)
	for price, id := range r.live {
		o := r.orders[id]
		if qty, ok := desired[price]; ok && qty == o.Qty {
			continue
		}
		stale = append(stale, o)
	}
	sort.Slice(stale, func(i, j int) bool { return r.better(stale[i].Price, stale[j].Price) })
	ts := r.now()
	for _, o := range stale {
		o.State = domain.Cancelling
		o.UpdatedAt = ts
		delete(r.live, o.Price)
		cmds = append(cmds, domain.Command{
			Type:     domain.CmdCancel,
			Side:     r.side,
			ClientID: o.ClientID,
			Price:    o.Price,
			Qty:      o.Qty,
		})
	}

	for _, l := range levels {
		if _, ok := r.live[l.Price]; ok {
			continue
		}
		o := &domain.OpenOrder{
			ClientID:  r.nextClientID(l.Price),
			Side:      r.side,
			Price:     l.Price,
			Qty:       l.Qty,
			State:     domain.Pending,
			UpdatedAt: ts,
		}
		r.orders[o.ClientID] = o
		r.live[o.Price] = o.ClientID
		cmds = append(cmds, domain.Command{
			Type:     domain.CmdNew,
			Side:     r.side,
			ClientID: o.ClientID,
			Price:    o.Price,
			Qty:      o.Qty,
		})
	}
	return cmds
}

// Owns reports whether the client id was issued by this reconciler.
func (r *SideReconciler) Owns(clientID string) bool {
	_, ok := r.orders[clientID]
	return ok
}

// Acknowledge moves a Pending order to Resting. Reports for unknown or
// cancelling orders are ignored.
func (r *SideReconciler) Acknowledge(clientID string) bool {
	o, ok := r.orders[clientID]
	if !ok || o.State != domain.Pending {
		return false
	}
	o.State = domain.Resting
	o.UpdatedAt = r.now()
	return true
}

// ApplyFill sets the order to the quantity the venue reports as left. The
// order is dropped once nothing is left to execute.
func (r *SideReconciler) ApplyFill(clientID string, lastQty, leavesQty quant.QtySats) bool {
	o, ok := r.orders[clientID]
	if !ok {
		return false
	}
	if leavesQty <= 0 {
		r.remove(o)
		return true
	}
	if leavesQty > o.Qty {
		slog.Warn("RECONCILE_FILL_GROWS_ORDER", "client_id", clientID, "qty", o.Qty, "leaves", leavesQty, "last", lastQty)
	}
	o.Qty = leavesQty
	if o.State == domain.Pending {
		o.State = domain.Resting
	}
	o.UpdatedAt = r.now()
	return true
}

// Remove drops an order after a cancel acknowledgment or a rejection.
func (r *SideReconciler) Remove(clientID string) bool {
	o, ok := r.orders[clientID]
	if !ok {
		return false
	}
	r.remove(o)
	return true
}

// Reset forgets every order. Used after a cancel-all broadcast.
func (r *SideReconciler) Reset() {
	r.orders = make(map[string]*domain.OpenOrder)
	r.live = make(map[quant.PriceSats]string)
}

// Orders returns a copy of every tracked order, best price first.
func (r *SideReconciler) Orders() []domain.OpenOrder {
	out := make([]domain.OpenOrder, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price == out[j].Price {
			return out[i].ClientID < out[j].ClientID
		}
		return r.better(out[i].Price, out[j].Price)
	})
	return out
}

// Counts returns the number of tracked orders per state.
func (r *SideReconciler) Counts() map[domain.OrderState]int {
	c := make(map[domain.OrderState]int, 3)
	for _, o := range r.orders {
		c[o.State]++
	}
	return c
}

// Sweep drops Cancelling orders not updated since before cutoff and returns
// the Pending ones that are equally old. Both are left over from lost
// acknowledgments.
func (r *SideReconciler) Sweep(cutoff quant.TimeStamp) (dropped, pending []domain.OpenOrder) {
	for _, o := range r.orders {
		if o.UpdatedAt >= cutoff {
			continue
		}
		switch o.State {
		case domain.Cancelling:
			dropped = append(dropped, *o)
			r.remove(o)
		case domain.Pending:
			pending = append(pending, *o)
		}
	}
	return dropped, pending
}

func (r *SideReconciler) remove(o *domain.OpenOrder) {
	delete(r.orders, o.ClientID)
	if r.live[o.Price] == o.ClientID {
		delete(r.live, o.Price)
	}
}

// better reports whether a is a better price than b on this side.
func (r *SideReconciler) better(a, b quant.PriceSats) bool {
	if r.side == domain.Bid {
		return a > b
	}
	return a < b
}

func (r *SideReconciler) nextClientID(price quant.PriceSats) string {
	return fmt.Sprintf("%s%s-%d-%d", r.side.Tag(), r.symbol, int64(price), quant.NextSeq(&r.seq))
}

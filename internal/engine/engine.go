package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"crypto_arb/internal/domain"
	"crypto_arb/internal/event"
	"crypto_arb/internal/execution"
	"crypto_arb/internal/marketdata"
	"crypto_arb/internal/metrics"
	"crypto_arb/internal/reconcile"
	"crypto_arb/internal/storage"
	"crypto_arb/pkg/quant"
)

var (
	// ErrAuthFailed is returned by Run when the target venue rejects the login.
	ErrAuthFailed = errors.New("target venue login rejected")
	ErrHalted     = errors.New("engine halted")
	ErrPanic      = errors.New("engine panic")
)

// Config holds the engine's settings.
type Config struct {
	Symbol     string
	Fees       marketdata.Fees
	BrokerID   string        // overrides the broker reported at login
	TargetID   string        // ConnectionEvent source of the target venue
	StaleAfter time.Duration // 0 disables the stale order sweep
	InboxSize  int
}

// Engine is the single-threaded dispatch loop. It owns both side
// reconcilers, the balance tracker and the position; only Run touches them.
type Engine struct {
	cfg   Config
	inbox chan event.Event

	bids     *reconcile.SideReconciler
	asks     *reconcile.SideReconciler
	balances *domain.BalanceTracker
	position domain.Position
	market   domain.MarketState
	book     *adaptedBook

	loggedIn  bool
	brokerID  string
	lastSeq   uint64
	replaying bool // no venue calls while rebuilding from the journal

	router    *execution.Router
	journal   *storage.Journal
	snapshots *storage.SnapshotManager
	metrics   *metrics.Metrics
	now       func() time.Time

	mu    sync.RWMutex // guards state, used only for external reads
	state State
}

type adaptedBook struct {
	bids, asks domain.BookSide
}

// Option configures optional collaborators.
type Option func(*Engine)

func WithJournal(j *storage.Journal) Option { return func(e *Engine) { e.journal = j } }

func WithSnapshots(sm *storage.SnapshotManager) Option {
	return func(e *Engine) { e.snapshots = sm }
}

func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithInbox makes the engine consume a channel created by the caller, so
// workers can be built before the engine.
func WithInbox(ch chan event.Event) Option { return func(e *Engine) { e.inbox = ch } }

func New(cfg Config, router *execution.Router, opts ...Option) *Engine {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 1024
	}
	e := &Engine{
		cfg:      cfg,
		bids:     reconcile.NewSideReconciler(domain.Bid, cfg.Symbol),
		asks:     reconcile.NewSideReconciler(domain.Ask, cfg.Symbol),
		balances: domain.NewBalanceTracker(),
		market:   domain.MarketState{Symbol: cfg.Symbol},
		router:   router,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.inbox == nil {
		e.inbox = make(chan event.Event, cfg.InboxSize)
	}
	router.OnSent(e.onCommandSent)
	e.publish()
	return e
}

// Inbox returns the event channel. Workers send events here.
func (e *Engine) Inbox() chan event.Event {
	return e.inbox
}

// Balances exposes the tracker for concurrent reads.
func (e *Engine) Balances() *domain.BalanceTracker { return e.balances }

// Run consumes the inbox until ctx ends or a fatal event arrives. It must be
// the only goroutine touching engine state. A clean shutdown returns nil.
func (e *Engine) Run(ctx context.Context) (err error) {
	slog.Info("Engine started (Single-Thread Hotpath)", "symbol", e.cfg.Symbol)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			e.DumpState("panic")
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	var sweep <-chan time.Time
	if e.cfg.StaleAfter > 0 {
		interval := e.cfg.StaleAfter / 2
		if interval < time.Millisecond {
			interval = time.Millisecond
		}
		t := time.NewTicker(interval)
		defer t.Stop()
		sweep = t.C
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Engine stopping...")
			return nil
		case ev := <-e.inbox:
			if err := e.processEvent(ctx, ev); err != nil {
				return err
			}
		case <-sweep:
			e.sweep(ctx)
			e.publish()
		}
	}
}

// ReplayEvent applies a recorded event synchronously without touching the
// venues. Used to rebuild balances and position from the journal.
func (e *Engine) ReplayEvent(ctx context.Context, ev event.Event) error {
	e.replaying = true
	defer func() { e.replaying = false }()
	return e.processEvent(ctx, ev)
}

func (e *Engine) processEvent(ctx context.Context, ev event.Event) error {
	start := time.Now()
	typ := ev.GetType()
	seq := ev.GetSeq()

	var err error
	switch ev := ev.(type) {
	case *event.BookUpdateEvent:
		e.handleBook(ctx, ev)
		event.ReleaseBookUpdateEvent(ev)
	case event.LoginEvent:
		err = e.handleLogin(ctx, ev)
	case event.BalanceEvent:
		e.handleBalance(ctx, ev)
	case event.ExecutionEvent:
		e.handleExecution(ctx, ev)
	case event.ConnectionEvent:
		e.handleConnection(ev)
	case event.HedgeResultEvent:
		e.handleHedgeResult(ctx, ev)
	case event.SystemHaltEvent:
		err = fmt.Errorf("%w: %s", ErrHalted, ev.Reason)
	default:
		slog.Warn("Unknown event type", slog.Any("type", typ))
	}

	e.lastSeq = seq
	e.metrics.ObserveEvent(typ.String(), time.Since(start))
	e.publish()
	return err
}

func (e *Engine) handleBook(ctx context.Context, ev *event.BookUpdateEvent) {
	bids, asks, err := marketdata.AdaptBook(ev.Book, e.cfg.Fees)
	if err != nil {
		// keep the previous book and orders
		slog.Warn("BOOK_DISCARDED", "seq", ev.Seq, "err", err)
		e.metrics.BookUpdate("malformed")
		return
	}
	e.metrics.BookUpdate("applied")

	e.book = &adaptedBook{bids: bids, asks: asks}
	e.market.BidLevels = len(bids.Levels)
	e.market.AskLevels = len(asks.Levels)
	e.market.BestBid, e.market.BestAsk = 0, 0
	if l, ok := bids.Best(); ok {
		e.market.BestBid = l.Price
	}
	if l, ok := asks.Best(); ok {
		e.market.BestAsk = l.Price
	}
	e.market.LastUpdateUnixM = ev.Ts

	e.reconcile(ctx)
}

// reconcile diffs the funded targets against the open orders and sends the
// resulting commands. Nothing is quoted until the target session is up.
func (e *Engine) reconcile(ctx context.Context) {
	if !e.loggedIn || e.book == nil || e.replaying {
		return
	}
	bal := e.balances.Get()
	bidTarget := reconcile.FundedSide(e.book.bids, bal)
	askTarget := reconcile.FundedSide(e.book.asks, bal)

	cmds := e.bids.Process(bidTarget.Levels)
	cmds = append(cmds, e.asks.Process(askTarget.Levels)...)
	if len(cmds) == 0 {
		return
	}
	if err := e.router.Send(ctx, cmds); err != nil {
		// Orders stay Pending/Cancelling until a report or the sweep resolves them.
		slog.Error("ORDER_SEND_FAILED", "err", err)
	}
}

func (e *Engine) onCommandSent(cmd domain.Command, err error) {
	e.metrics.Command(cmd.Type.String(), cmd.Side.String(), err)
	if err != nil {
		return
	}
	slog.Debug("ORDER_COMMAND", "cmd", cmd.String())
	e.record(context.Background(), storage.KindCommand, cmd)
}

func (e *Engine) handleLogin(ctx context.Context, ev event.LoginEvent) error {
	e.record(ctx, storage.KindLogin, ev)
	if !ev.Success {
		slog.Error("LOGIN_FAILED", "user", ev.UserID, "reason", ev.Reason)
		return fmt.Errorf("%w: %s", ErrAuthFailed, ev.Reason)
	}

	e.loggedIn = true
	e.brokerID = ev.BrokerID
	if e.cfg.BrokerID != "" {
		e.brokerID = e.cfg.BrokerID
	}
	slog.Info("✅ LOGGED_IN", "user", ev.UserID, "broker", e.brokerID)
	e.bids.Reset()
	e.asks.Reset()
	if e.replaying {
		return nil
	}

	// Whatever was resting before this session is unknown to us.
	if err := e.router.CancelAll(ctx); err != nil {
		slog.Error("CANCEL_ALL_FAILED", "err", err)
	}
	if err := e.router.RequestBalances(ctx); err != nil {
		slog.Error("BALANCE_REQUEST_FAILED", "err", err)
	}
	return nil
}

func (e *Engine) handleBalance(ctx context.Context, ev event.BalanceEvent) {
	if e.brokerID != "" && ev.BrokerID != e.brokerID {
		slog.Debug("BALANCE_OTHER_BROKER", "broker", ev.BrokerID, "own", e.brokerID)
		return
	}
	if err := e.balances.ApplySnapshot(ev.Quote, ev.Base); err != nil {
		slog.Error("BALANCE_REJECTED", "broker", ev.BrokerID, "err", err)
		return
	}
	bal := e.balances.Get()
	slog.Info("BALANCE", "quote", bal.QuoteAvailable, "base", bal.BaseAvailable)
	e.metrics.SetBalance(bal.QuoteAvailable, bal.BaseAvailable)
	e.record(ctx, storage.KindBalance, ev)

	e.reconcile(ctx)
}

func (e *Engine) handleExecution(ctx context.Context, ev event.ExecutionEvent) {
	r := ev.Report
	e.metrics.Execution(r.ExecType)
	e.record(ctx, storage.KindExecution, r)

	rec := e.reconcilerFor(r)
	if rec == nil {
		slog.Warn("EXECUTION_UNKNOWN_ORDER", "client_id", r.ClientID, "exec_type", r.ExecType)
	} else {
		switch r.ExecType {
		case domain.ExecNew:
			rec.Acknowledge(r.ClientID)
		case domain.ExecCancelled, domain.ExecRejected:
			rec.Remove(r.ClientID)
		case domain.ExecPartial, domain.ExecFill, domain.ExecTrade:
			rec.ApplyFill(r.ClientID, r.LastQty, r.LeavesQty)
		default:
			slog.Warn("EXECUTION_UNHANDLED", "client_id", r.ClientID, "exec_type", r.ExecType)
		}
	}

	// A fill is real even when the order predates this session.
	if !r.IsFill() {
		return
	}
	e.position.ApplyFill(r.Side, r.LastQty)
	e.metrics.SetExposure(e.position.Exposure())
	if e.replaying {
		return
	}

	h, err := e.router.Hedge(r)
	e.record(ctx, storage.KindHedge, h)
	if err != nil {
		slog.Error("HEDGE_FAILED", "source", r.ClientID, "side", h.Side, "qty", h.Qty, "err", err)
		e.metrics.Hedge("dropped")
	} else {
		slog.Info("HEDGE_QUEUED", "source", r.ClientID, "side", h.Side, "price", h.Price, "qty", h.Qty)
		e.metrics.Hedge("queued")
	}

	if err := e.router.RequestBalances(ctx); err != nil {
		slog.Warn("BALANCE_REQUEST_FAILED", "err", err)
	}
}

// reconcilerFor finds the reconciler that issued the report's order, by side
// first and by client id otherwise.
func (e *Engine) reconcilerFor(r domain.ExecutionReport) *reconcile.SideReconciler {
	for _, rec := range []*reconcile.SideReconciler{e.bids, e.asks} {
		if rec.Side() == r.Side && rec.Owns(r.ClientID) {
			return rec
		}
	}
	for _, rec := range []*reconcile.SideReconciler{e.bids, e.asks} {
		if rec.Owns(r.ClientID) {
			return rec
		}
	}
	return nil
}

func (e *Engine) handleHedgeResult(ctx context.Context, ev event.HedgeResultEvent) {
	e.record(ctx, storage.KindHedgeResult, ev)
	if ev.Err != "" {
		slog.Error("HEDGE_FAILED", "source", ev.Hedge.SourceID, "side", ev.Hedge.Side, "qty", ev.Hedge.Qty, "err", ev.Err)
		e.metrics.Hedge("failed")
		return
	}
	e.position.ApplyHedge(ev.Hedge.Side, ev.Hedge.Qty)
	e.metrics.Hedge("ok")
	e.metrics.SetExposure(e.position.Exposure())
	slog.Info("HEDGE_DONE", "source", ev.Hedge.SourceID, "exposure", e.position.Exposure())
}

func (e *Engine) handleConnection(ev event.ConnectionEvent) {
	e.metrics.SetConnected(ev.Source, ev.Connected)
	if ev.Connected {
		return
	}
	slog.Warn("DISCONNECTED", "source", ev.Source)
	if ev.Source == e.cfg.TargetID {
		// The next login resets the order state.
		e.loggedIn = false
	}
}

func (e *Engine) sweep(ctx context.Context) {
	cutoff := quant.TimeStamp(e.now().Add(-e.cfg.StaleAfter).UnixMicro())
	for _, rec := range []*reconcile.SideReconciler{e.bids, e.asks} {
		dropped, pending := rec.Sweep(cutoff)
		for _, o := range dropped {
			slog.Warn("STALE_CANCEL_DROPPED", "client_id", o.ClientID, "price", o.Price)
		}
		for _, o := range pending {
			slog.Warn("STALE_PENDING", "client_id", o.ClientID, "price", o.Price)
		}
		if len(dropped) > 0 {
			e.record(ctx, storage.KindSweep, dropped)
		}
	}
}

// Teardown cancels every target order. Call it after Run returns.
func (e *Engine) Teardown(ctx context.Context) error {
	slog.Info("🛑 TEARDOWN: cancelling all target orders")
	err := e.router.CancelAll(ctx)
	if err != nil {
		slog.Error("CANCEL_ALL_FAILED", "err", err)
	}
	e.bids.Reset()
	e.asks.Reset()
	e.record(ctx, storage.KindTeardown, map[string]any{"exposure": e.position.Exposure(), "err": errString(err)})
	e.publish()
	e.DumpState("teardown")
	return err
}

// record appends to the journal. Failures are logged, never fatal.
func (e *Engine) record(ctx context.Context, kind string, v any) {
	if e.journal == nil || e.replaying {
		return
	}
	ts := quant.TimeStamp(e.now().UnixMicro())
	if err := e.journal.Append(context.WithoutCancel(ctx), kind, ts, v); err != nil {
		slog.Error("JOURNAL_WRITE_FAILED", "kind", kind, "err", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

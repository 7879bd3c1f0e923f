package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"crypto_arb/internal/api"
	"crypto_arb/internal/engine"
	"crypto_arb/internal/event"
	"crypto_arb/internal/execution"
	"crypto_arb/internal/infra"
	"crypto_arb/internal/infra/bitstamp"
	"crypto_arb/internal/infra/blinktrade"
	"crypto_arb/internal/marketdata"
)

const shutdownTimeout = 10 * time.Second

// Arbitrator wires the venues, the engine and the admin surface together.
type Arbitrator struct {
	Engine *engine.Engine
	Feed   *bitstamp.Feed
	Target *blinktrade.Client
	Hedger *execution.Hedger
	Admin  *api.Server

	ref execution.ReferenceTrading
}

// NewArbitrator builds every component from an initialized bootstrap.
func NewArbitrator(b *Bootstrap) (*Arbitrator, error) {
	cfg := b.Config
	bidFee, askFee := cfg.Fees()

	ref, err := execution.NewReferenceTrading(cfg)
	if err != nil {
		return nil, err
	}

	inbox := make(chan event.Event, cfg.Trading.InboxSize)

	target, err := newTarget(cfg, inbox)
	if err != nil {
		return nil, err
	}
	breakerCfg := infra.DefaultCircuitBreakerConfig("bitstamp")
	breakerCfg.OnStateChange = func(name string, s infra.State) { b.Metrics.BreakerTransition(name, s.String()) }
	breaker := infra.NewCircuitBreaker(breakerCfg)

	a := &Arbitrator{Target: target, ref: ref}
	a.Hedger = execution.NewHedgerFromConfig(cfg, ref, inbox, breaker)
	a.Engine = engine.New(engine.Config{
		Symbol:     cfg.Trading.Symbol,
		Fees:       marketdata.Fees{Bid: bidFee, Ask: askFee},
		BrokerID:   cfg.API.BlinkTrade.BrokerID,
		TargetID:   target.ID(),
		StaleAfter: time.Duration(cfg.Trading.StaleAfterSec) * time.Second,
		InboxSize:  cfg.Trading.InboxSize,
	}, execution.NewRouter(target, a.Hedger),
		engine.WithInbox(inbox),
		engine.WithJournal(b.Journal),
		engine.WithSnapshots(b.Snapshots),
		engine.WithMetrics(b.Metrics),
	)

	bs := cfg.API.Bitstamp
	a.Feed = bitstamp.NewFeed(bs.WSURL, bs.Channel, cfg.Trading.Symbol, inbox)

	b.Metrics.RegisterFeedCounters(a.Feed.ID(), a.Feed.Received, a.Feed.Dropped)
	b.Metrics.RegisterBreaker("bitstamp", func() int { return int(breaker.GetState()) })

	if cfg.Admin.Addr != "" {
		a.Admin = api.NewServer(api.Options{
			Addr:        cfg.Admin.Addr,
			CORSOrigins: cfg.Admin.CORSOrigins,
			State:       a.Engine,
			Journal:     b.Journal,
			Metrics:     b.Metrics.Handler(),
			Checks: map[string]func() bool{
				"target_connected": target.Worker().Connected,
				"target_logged_in": target.LoggedIn,
				"feed_connected":   a.Feed.Worker().Connected,
				"hedge_breaker":    func() bool { return breaker.GetState() != infra.StateOpen },
				"balance_received": func() bool { return a.Engine.Balances().Version() > 0 },
			},
			Breakers: map[string]func(){"bitstamp": breaker.Reset},
		})
	}
	return a, nil
}

func newTarget(cfg *infra.Config, inbox chan<- event.Event) (*blinktrade.Client, error) {
	bt := cfg.API.BlinkTrade
	return blinktrade.NewClient(blinktrade.Config{
		URL:      bt.WSURL,
		Username: bt.Username,
		Password: bt.Password,
		BrokerID: bt.BrokerID,
		Symbol:   cfg.Trading.Symbol,
	}, inbox, time.Duration(bt.HeartbeatSec)*time.Second)
}

// Run starts everything, blocks until ctx ends or the engine stops, then
// cancels every target order and shuts down. It returns the engine's error.
func (a *Arbitrator) Run(ctx context.Context) error {
	// The target session and the hedger outlive ctx so teardown can still
	// cancel orders and finish queued hedges.
	sessionCtx, cancelSession := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelSession()

	go a.Hedger.Run(sessionCtx)

	if a.Admin != nil {
		go func() {
			if err := a.Admin.Start(); err != nil {
				slog.Error("Admin server failed", slog.Any("error", err))
			}
		}()
	}

	a.Target.Connect(sessionCtx)
	a.Feed.Connect(ctx)
	slog.InfoContext(ctx, "✨ Arbitrator fully operational. Press Ctrl+C to exit.")

	runErr := a.Engine.Run(ctx)
	if runErr != nil {
		slog.Error("ENGINE_STOPPED", "err", runErr)
	}
	slog.Info("👋 Shutting down gracefully...")

	a.Feed.Disconnect()

	tctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.Engine.Teardown(tctx); err != nil && !errors.Is(err, blinktrade.ErrNotLoggedIn) {
		slog.Error("TEARDOWN_FAILED", "err", err)
	}

	a.Hedger.Close()
	select {
	case <-a.Hedger.Done():
	case <-tctx.Done():
		slog.Error("HEDGER_DRAIN_TIMEOUT", "pending", a.Hedger.Backlog())
	}
	cancelSession()

	a.Target.Disconnect()
	if a.Admin != nil {
		a.Admin.Shutdown(tctx)
	}
	if c, ok := a.ref.(io.Closer); ok {
		c.Close()
	}
	return runErr
}

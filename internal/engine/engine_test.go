package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"crypto_arb/internal/domain"
	"crypto_arb/internal/event"
	"crypto_arb/internal/execution"
	"crypto_arb/internal/storage"
	"crypto_arb/pkg/quant"
)

type harness struct {
	eng    *Engine
	target *execution.MockTarget
	hedger *execution.Hedger
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	target := execution.NewMockTarget()
	cfg := execution.DefaultHedgerConfig()
	cfg.Backlog = 16
	hedger := execution.NewHedger(&execution.MockReference{}, nil, cfg, nil)
	router := execution.NewRouter(target, hedger)
	eng := New(Config{Symbol: "BTCUSD", TargetID: "BLINKTRADE"}, router, opts...)
	return &harness{eng: eng, target: target, hedger: hedger}
}

func (h *harness) process(t *testing.T, ev event.Event) {
	t.Helper()
	if err := h.eng.processEvent(context.Background(), ev); err != nil {
		t.Fatalf("processEvent(%s): %v", ev.GetType(), err)
	}
}

func (h *harness) commands() []domain.Command {
	cmds, _, _ := h.target.Snapshot()
	return cmds
}

func login(broker string) event.LoginEvent {
	return event.LoginEvent{BaseEvent: event.NewBase(), Success: true, BrokerID: broker, UserID: "90000"}
}

func balance(broker string, quote, base int64) event.BalanceEvent {
	q := quant.PriceSats(quote * quant.Scale)
	b := quant.QtySats(base * quant.Scale)
	return event.BalanceEvent{BaseEvent: event.NewBase(), BrokerID: broker, Quote: &q, Base: &b}
}

func book(bids, asks [][]string) *event.BookUpdateEvent {
	ev := event.AcquireBookUpdateEvent()
	ev.Symbol = "BTCUSD"
	ev.Book = domain.RawBook{Bids: bids, Asks: asks}
	return ev
}

func report(execType, clientID string, side domain.Side, price quant.PriceSats, last, leaves quant.QtySats) event.ExecutionEvent {
	return event.ExecutionEvent{BaseEvent: event.NewBase(), Report: domain.ExecutionReport{
		ExecType: execType, ClientID: clientID, Side: side, Price: price, LastQty: last, LeavesQty: leaves,
	}}
}

func TestEngine_EndToEnd(t *testing.T) {
	h := newHarness(t)

	h.process(t, login("5"))
	_, cancelAlls, balanceReqs := h.target.Snapshot()
	if cancelAlls != 1 || balanceReqs != 1 {
		t.Fatalf("login: cancelAll=%d balanceReq=%d, want 1/1", cancelAlls, balanceReqs)
	}

	h.process(t, balance("5", 150, 0))
	if len(h.commands()) != 0 {
		t.Fatal("no book yet, no commands expected")
	}

	h.process(t, book([][]string{{"100", "1"}, {"90", "1"}}, nil))
	cmds := h.commands()
	if len(cmds) != 1 {
		t.Fatalf("expected 1 command, got %v", cmds)
	}
	c := cmds[0]
	if c.Type != domain.CmdNew || c.Side != domain.Bid || c.Price != 100*quant.Scale || c.Qty != quant.Scale {
		t.Errorf("unexpected command %v", c)
	}

	st := h.eng.State()
	if !st.LoggedIn || st.BrokerID != "5" || len(st.Bids) != 1 || st.Market.BestBid != 100*quant.Scale {
		t.Errorf("state = %+v", st)
	}

	// Same book again is a no-op.
	h.process(t, book([][]string{{"100", "1"}, {"90", "1"}}, nil))
	if len(h.commands()) != 1 {
		t.Errorf("repeated book should not emit commands, got %v", h.commands())
	}
}

func TestEngine_HugeBidLevelIsUnaffordable(t *testing.T) {
	h := newHarness(t)
	h.process(t, login("5"))
	h.process(t, balance("5", 150, 1))

	// price*qty does not fit in int64; the level must be skipped, not crash the loop.
	h.process(t, book([][]string{{"1000000000", "100000"}, {"100", "1"}}, [][]string{{"110", "1"}}))

	cmds := h.commands()
	if len(cmds) != 1 || cmds[0].Side != domain.Ask || cmds[0].Price != 110*quant.Scale {
		t.Fatalf("commands = %v, want a single ask at 110", cmds)
	}
	if st := h.eng.State(); len(st.Bids) != 0 || st.Market.BestBid != 1_000_000_000*quant.Scale {
		t.Errorf("state = %+v", st)
	}
}

func TestEngine_NoOrdersBeforeLogin(t *testing.T) {
	h := newHarness(t)
	h.process(t, balance("5", 1000, 10))
	h.process(t, book([][]string{{"100", "1"}}, [][]string{{"110", "1"}}))
	if len(h.commands()) != 0 {
		t.Errorf("commands before login: %v", h.commands())
	}
}

func TestEngine_LoginFailed(t *testing.T) {
	h := newHarness(t)
	err := h.eng.processEvent(context.Background(), event.LoginEvent{
		BaseEvent: event.NewBase(), Success: false, Reason: "Invalid password",
	})
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
}

func TestEngine_BalanceFilteredByBroker(t *testing.T) {
	h := newHarness(t)
	h.process(t, login("5"))
	h.process(t, balance("11", 999, 9))
	if bal := h.eng.Balances().Get(); bal.QuoteAvailable != 0 || bal.BaseAvailable != 0 {
		t.Errorf("foreign broker balance applied: %+v", bal)
	}

	h.process(t, balance("5", 150, 2))
	if bal := h.eng.Balances().Get(); bal.QuoteAvailable != 150*quant.Scale || bal.BaseAvailable != 2*quant.Scale {
		t.Errorf("own balance not applied: %+v", bal)
	}
}

func TestEngine_BrokerOverride(t *testing.T) {
	target := execution.NewMockTarget()
	eng := New(Config{Symbol: "BTCUSD", BrokerID: "11"}, execution.NewRouter(target, nil))
	if err := eng.processEvent(context.Background(), login("5")); err != nil {
		t.Fatal(err)
	}
	if eng.State().BrokerID != "11" {
		t.Errorf("broker = %s, want configured 11", eng.State().BrokerID)
	}
}

func TestEngine_ExecutionLifecycleAndHedge(t *testing.T) {
	h := newHarness(t)
	h.process(t, login("5"))
	h.process(t, balance("5", 150, 0))
	h.process(t, book([][]string{{"100", "1"}}, nil))
	id := h.commands()[0].ClientID
	price := quant.PriceSats(100 * quant.Scale)

	h.process(t, report(domain.ExecNew, id, domain.Bid, price, 0, quant.Scale))
	if st := h.eng.State(); st.Bids[0].State != domain.Resting {
		t.Fatalf("order not resting: %+v", st.Bids[0])
	}
	if h.hedger.Backlog() != 0 {
		t.Fatal("a new-order report must not be hedged")
	}

	h.process(t, report(domain.ExecPartial, id, domain.Bid, price, 4e7, 6e7))
	st := h.eng.State()
	if st.Bids[0].Qty != 6e7 {
		t.Errorf("qty after partial = %d, want 6e7", st.Bids[0].Qty)
	}
	if st.Position.TargetNet != 4e7 || st.Exposure != 4e7 {
		t.Errorf("position = %+v", st.Position)
	}
	if h.hedger.Backlog() != 1 {
		t.Errorf("hedge backlog = %d, want 1", h.hedger.Backlog())
	}

	h.process(t, report(domain.ExecCancelled, id, domain.Bid, price, 0, 0))
	if st := h.eng.State(); len(st.Bids) != 0 {
		t.Errorf("cancelled order still tracked: %+v", st.Bids)
	}
}

func TestEngine_RejectedAndUnknownReports(t *testing.T) {
	h := newHarness(t)
	h.process(t, login("5"))

	// Rejected reports never reach the reference venue, even with a quantity.
	h.process(t, report(domain.ExecRejected, "1BTCUSD-1-1", domain.Bid, 1, quant.Scale, 0))
	if h.hedger.Backlog() != 0 {
		t.Error("rejected report hedged")
	}

	// A fill for an order from a previous session is still hedged.
	h.process(t, report(domain.ExecFill, "2BTCUSD-9-9", domain.Ask, 9, quant.Scale, 0))
	if h.hedger.Backlog() != 1 {
		t.Error("fill of an unknown order was not hedged")
	}
	if st := h.eng.State(); st.Position.TargetNet != -quant.Scale {
		t.Errorf("ask fill should reduce target net: %+v", st.Position)
	}
}

func TestEngine_HedgeResult(t *testing.T) {
	h := newHarness(t)
	h.process(t, report(domain.ExecFill, "1BTCUSD-100-1", domain.Bid, 100, quant.Scale, 0))

	h.process(t, event.HedgeResultEvent{BaseEvent: event.NewBase(), Hedge: domain.Hedge{Side: domain.Ask, Qty: quant.Scale}, Err: "503"})
	if h.eng.State().Exposure != quant.Scale {
		t.Error("failed hedge must leave exposure open")
	}

	h.process(t, event.HedgeResultEvent{BaseEvent: event.NewBase(), Hedge: domain.Hedge{Side: domain.Ask, Qty: quant.Scale}})
	if st := h.eng.State(); st.Exposure != 0 || st.Position.Hedges != 1 {
		t.Errorf("position after hedge = %+v", st.Position)
	}
}

func TestEngine_MalformedBookKeepsOrders(t *testing.T) {
	h := newHarness(t)
	h.process(t, login("5"))
	h.process(t, balance("5", 150, 0))
	h.process(t, book([][]string{{"100", "1"}}, nil))

	h.process(t, book([][]string{{"abc", "1"}}, nil))
	if len(h.commands()) != 1 {
		t.Errorf("malformed book produced commands: %v", h.commands())
	}
	if st := h.eng.State(); len(st.Bids) != 1 || st.Market.BestBid != 100*quant.Scale {
		t.Errorf("state changed on malformed book: %+v", st)
	}
}

func TestEngine_DisconnectStopsQuoting(t *testing.T) {
	h := newHarness(t)
	h.process(t, login("5"))
	h.process(t, balance("5", 150, 0))
	h.process(t, event.ConnectionEvent{BaseEvent: event.NewBase(), Source: "BLINKTRADE", Connected: false})

	h.process(t, book([][]string{{"100", "1"}}, nil))
	if len(h.commands()) != 0 {
		t.Errorf("quoted while disconnected: %v", h.commands())
	}

	// The next login cancels everything and starts over.
	h.process(t, login("5"))
	h.process(t, balance("5", 150, 0))
	if len(h.commands()) != 1 {
		t.Errorf("expected requote after login, got %v", h.commands())
	}
}

func TestEngine_Sweep(t *testing.T) {
	h := newHarness(t)
	h.eng.cfg.StaleAfter = time.Millisecond
	h.process(t, login("5"))
	h.process(t, balance("5", 150, 0))
	h.process(t, book([][]string{{"100", "1"}}, nil))
	h.process(t, book(nil, nil)) // cancels the order

	time.Sleep(5 * time.Millisecond)
	h.eng.sweep(context.Background())
	h.eng.publish()
	if st := h.eng.State(); len(st.Bids) != 0 {
		t.Errorf("stale cancelling order not dropped: %+v", st.Bids)
	}
}

func TestEngine_RunHaltTeardownAndJournal(t *testing.T) {
	dir := t.TempDir()
	j, err := storage.OpenJournal(filepath.Join(dir, "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	snaps := storage.NewSnapshotManager(filepath.Join(dir, "dumps"))

	h := newHarness(t, WithJournal(j), WithSnapshots(snaps))

	errCh := make(chan error, 1)
	go func() { errCh <- h.eng.Run(context.Background()) }()

	inbox := h.eng.Inbox()
	inbox <- login("5")
	inbox <- balance("5", 150, 0)
	inbox <- book([][]string{{"100", "1"}}, nil)
	inbox <- event.SystemHaltEvent{BaseEvent: event.NewBase(), Reason: "test"}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrHalted) {
			t.Fatalf("Run = %v, want ErrHalted", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	if err := h.eng.Teardown(context.Background()); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	_, cancelAlls, _ := h.target.Snapshot()
	if cancelAlls != 2 {
		t.Errorf("cancelAll = %d, want login + teardown", cancelAlls)
	}

	ctx := context.Background()
	for kind, want := range map[string]int64{
		storage.KindLogin: 1, storage.KindBalance: 1, storage.KindCommand: 1, storage.KindTeardown: 1,
	} {
		if n, _ := j.Count(ctx, kind); n != want {
			t.Errorf("journal %s = %d, want %d", kind, n, want)
		}
	}

	snap, err := snaps.LoadLatest()
	if err != nil || snap == nil || snap.Reason != "teardown" {
		t.Errorf("teardown snapshot = %+v, %v", snap, err)
	}
}

type panicTarget struct{ execution.MockTarget }

func (p *panicTarget) CancelAll(ctx context.Context) error { panic("boom") }

func TestEngine_RunRecoversPanic(t *testing.T) {
	snaps := storage.NewSnapshotManager(t.TempDir())
	eng := New(Config{Symbol: "BTCUSD"}, execution.NewRouter(&panicTarget{}, nil), WithSnapshots(snaps))

	eng.Inbox() <- login("5")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := eng.Run(ctx); !errors.Is(err, ErrPanic) {
		t.Fatalf("Run = %v, want ErrPanic", err)
	}
	snap, _ := snaps.LoadLatest()
	if snap == nil || snap.Reason != "panic" {
		t.Errorf("panic dump missing: %+v", snap)
	}
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.eng.Run(ctx); err != nil {
		t.Errorf("Run after cancel = %v, want nil", err)
	}
}

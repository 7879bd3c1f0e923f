package blinktrade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"crypto_arb/internal/domain"
	"crypto_arb/internal/event"
	"crypto_arb/internal/infra"
	"crypto_arb/pkg/quant"
)

var ErrNotLoggedIn = errors.New("blinktrade: not logged in")

// Config holds the target venue session settings.
type Config struct {
	URL      string
	Username string
	Password string
	BrokerID string // optional; the login response supplies it otherwise
	Symbol   string
}

// Client is the target venue transport: a BlinkTrade WebSocket session that
// logs in on every connect and turns venue messages into engine events.
type Client struct {
	base  *infra.BaseWSWorker
	cfg   Config
	inbox chan<- event.Event

	reqID    uint64
	loggedIn atomic.Bool

	mu       sync.RWMutex
	brokerID *int64
}

// NewClient creates a client that publishes into inbox.
func NewClient(cfg Config, inbox chan<- event.Event, heartbeat time.Duration) (*Client, error) {
	c := &Client{cfg: cfg, inbox: inbox}
	if cfg.BrokerID != "" {
		id, err := strconv.ParseInt(cfg.BrokerID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("broker id %q: %w", cfg.BrokerID, err)
		}
		c.brokerID = &id
	}
	c.base = infra.NewBaseWSWorker(c)
	c.base.PingInterval = heartbeat
	return c, nil
}

func (c *Client) ID() string     { return "BLINKTRADE" }
func (c *Client) GetURL() string { return c.cfg.URL }

// Worker exposes the connection settings (timeouts, backoff) before Connect.
func (c *Client) Worker() *infra.BaseWSWorker { return c.base }

// Connect starts the WebSocket connection loop.
func (c *Client) Connect(ctx context.Context) error {
	c.base.Start(ctx)
	return nil
}

// Disconnect terminates the connection.
func (c *Client) Disconnect() {
	c.base.Stop()
}

// LoggedIn reports whether the current session is authenticated.
func (c *Client) LoggedIn() bool { return c.loggedIn.Load() }

// OnConnect sends the login request.
func (c *Client) OnConnect(ctx context.Context, w infra.Writer) error {
	c.loggedIn.Store(false)
	c.mu.RLock()
	broker := c.brokerID
	c.mu.RUnlock()
	return infra.WriteJSON(w, loginRequest{
		MsgType:    MsgLogin,
		UserReqID:  quant.NextSeq(&c.reqID),
		UserReqTyp: "1",
		Username:   c.cfg.Username,
		Password:   c.cfg.Password,
		BrokerID:   broker,
	})
}

// OnPing sends an application heartbeat.
func (c *Client) OnPing(ctx context.Context, w infra.Writer) error {
	return infra.WriteJSON(w, heartbeat{
		MsgType:   MsgHeartbeat,
		TestReqID: uuid.NewString(),
		SendTime:  time.Now().UnixMilli(),
	})
}

func (c *Client) OnDisconnect(ctx context.Context, err error) {
	c.loggedIn.Store(false)
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	slog.Warn("BLINKTRADE_DISCONNECTED", "err", reason)
	c.publish(ctx, event.ConnectionEvent{BaseEvent: event.NewBase(), Source: c.ID(), Connected: false})
}

// OnMessage decodes one venue message.
func (c *Client) OnMessage(ctx context.Context, msg []byte) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		slog.Warn("BLINKTRADE_BAD_MESSAGE", "err", err)
		return
	}

	var ev event.Event
	var err error
	switch env.MsgType {
	case MsgLoginResponse:
		ev, err = c.onLogin(msg)
	case MsgBalanceResponse:
		evs, err := parseBalance(msg, c.broker())
		if err != nil {
			slog.Warn("BLINKTRADE_PARSE_ERROR", "type", env.MsgType, "err", err)
			return
		}
		for _, ev := range evs {
			c.publish(ctx, ev)
		}
		return
	case MsgExecutionReport:
		ev, err = parseExecution(msg)
	case MsgHeartbeatReply:
		return
	case MsgReject:
		slog.Error("BLINKTRADE_REJECT", "msg", string(msg))
		return
	default:
		slog.Debug("BLINKTRADE_IGNORED", "type", env.MsgType)
		return
	}
	if err != nil {
		slog.Warn("BLINKTRADE_PARSE_ERROR", "type", env.MsgType, "err", err)
		return
	}
	c.publish(ctx, ev)
}

func (c *Client) onLogin(msg []byte) (event.Event, error) {
	var resp loginResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		return nil, err
	}
	ev := event.LoginEvent{BaseEvent: event.NewBase(), UserID: resp.UserID.String()}
	if resp.UserStatus != userStatusLoggedIn {
		ev.Reason = resp.UserStatusText
		return ev, nil
	}

	var broker brokerInfo
	if len(resp.Broker) > 0 {
		if err := json.Unmarshal(resp.Broker, &broker); err != nil {
			return nil, fmt.Errorf("broker: %w", err)
		}
	}
	if id, err := broker.BrokerID.Int64(); err == nil {
		c.mu.Lock()
		c.brokerID = &id
		c.mu.Unlock()
	}
	c.mu.RLock()
	if c.brokerID != nil {
		ev.BrokerID = strconv.FormatInt(*c.brokerID, 10)
	}
	c.mu.RUnlock()

	ev.Success = true
	c.loggedIn.Store(true)
	return ev, nil
}

// parseBalance reads a U3 message: {"MsgType":"U3","<brokerID>":{"USD":n,"BTC":n}}.
// A message may carry several broker entries; one event per entry is
// returned, ordered by broker id. A non-empty broker keeps only that entry.
func parseBalance(msg []byte, broker string) ([]event.BalanceEvent, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(msg, &raw); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(raw))
	for key := range raw {
		if _, err := strconv.ParseInt(key, 10, 64); err != nil {
			continue
		}
		if broker != "" && key != broker {
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		if broker != "" {
			return nil, nil
		}
		return nil, errors.New("balance message without broker entry")
	}
	sort.Strings(keys)

	out := make([]event.BalanceEvent, 0, len(keys))
	for _, key := range keys {
		var amounts map[string]json.Number
		if err := json.Unmarshal(raw[key], &amounts); err != nil {
			return nil, fmt.Errorf("broker %s: %w", key, err)
		}
		ev := event.BalanceEvent{BaseEvent: event.NewBase(), BrokerID: key}
		if v, ok := amounts["USD"]; ok {
			n, err := quant.ParseFixed(v.String(), 0)
			if err != nil {
				return nil, fmt.Errorf("broker %s USD: %w", key, err)
			}
			q := quant.PriceSats(n)
			ev.Quote = &q
		}
		if v, ok := amounts["BTC"]; ok {
			n, err := quant.ParseFixed(v.String(), 0)
			if err != nil {
				return nil, fmt.Errorf("broker %s BTC: %w", key, err)
			}
			b := quant.QtySats(n)
			ev.Base = &b
		}
		out = append(out, ev)
	}
	return out, nil
}

func parseExecution(msg []byte) (event.Event, error) {
	var r executionReport
	if err := json.Unmarshal(msg, &r); err != nil {
		return nil, err
	}
	side, err := domain.ParseSide(r.Side)
	if err != nil {
		return nil, err
	}
	var nums [4]int64
	for i, n := range []json.Number{r.Price, r.LastShares, r.LastPx, r.LeavesQty} {
		if n == "" {
			continue
		}
		if nums[i], err = quant.ParseFixed(n.String(), 0); err != nil {
			return nil, fmt.Errorf("execution report %s: %w", r.ClOrdID, err)
		}
	}
	return event.ExecutionEvent{
		BaseEvent: event.NewBase(),
		Report: domain.ExecutionReport{
			ExecType:  r.ExecType,
			OrdStatus: r.OrdStatus,
			ClientID:  r.ClOrdID,
			Side:      side,
			Price:     quant.PriceSats(nums[0]),
			LastQty:   quant.QtySats(nums[1]),
			LastPx:    quant.PriceSats(nums[2]),
			LeavesQty: quant.QtySats(nums[3]),
		},
	}, nil
}

// publish blocks until the engine accepts the event: session events are never dropped.
// broker returns the session's broker id, or "" before it is known.
func (c *Client) broker() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.brokerID == nil {
		return ""
	}
	return strconv.FormatInt(*c.brokerID, 10)
}

func (c *Client) publish(ctx context.Context, ev event.Event) {
	select {
	case c.inbox <- ev:
	case <-ctx.Done():
	}
}

// SendOrderCommand writes a new-order or cancel message.
func (c *Client) SendOrderCommand(ctx context.Context, cmd domain.Command) error {
	if !c.loggedIn.Load() {
		return ErrNotLoggedIn
	}
	var msg any
	switch cmd.Type {
	case domain.CmdNew:
		c.mu.RLock()
		broker := c.brokerID
		c.mu.RUnlock()
		msg = newOrder{
			MsgType:  MsgNewOrder,
			ClOrdID:  cmd.ClientID,
			Symbol:   c.cfg.Symbol,
			Side:     cmd.Side.Tag(),
			OrdType:  ordTypeLimit,
			Price:    int64(cmd.Price),
			OrderQty: int64(cmd.Qty),
			BrokerID: broker,
		}
	case domain.CmdCancel:
		msg = cancelOrder{MsgType: MsgCancel, ClOrdID: cmd.ClientID}
	default:
		return fmt.Errorf("unknown command type %d", cmd.Type)
	}
	return infra.WriteJSON(c.base, msg)
}

// CancelAll broadcasts the cancel-all message for this user.
func (c *Client) CancelAll(ctx context.Context) error {
	if !c.loggedIn.Load() {
		return ErrNotLoggedIn
	}
	return infra.WriteJSON(c.base, cancelOrder{MsgType: MsgCancel})
}

// RequestBalances asks for a U3 balance message.
func (c *Client) RequestBalances(ctx context.Context) error {
	if !c.loggedIn.Load() {
		return ErrNotLoggedIn
	}
	return infra.WriteJSON(c.base, balanceRequest{MsgType: MsgBalanceRequest, BalanceReqID: quant.NextSeq(&c.reqID)})
}

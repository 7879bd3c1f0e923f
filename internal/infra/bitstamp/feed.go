package bitstamp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"crypto_arb/internal/domain"
	"crypto_arb/internal/event"
	"crypto_arb/internal/infra"
)

// Pusher protocol events.
const (
	pusherConnected = "pusher:connection_established"
	pusherSubscribe = "pusher:subscribe"
	pusherSubOK     = "pusher_internal:subscription_succeeded"
	pusherPing      = "pusher:ping"
	pusherPong      = "pusher:pong"
	pusherError     = "pusher:error"
	bookEvent       = "data"
)

type pusherMessage struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// Feed is the reference venue market data stream: a Pusher channel that
// delivers full order book snapshots.
type Feed struct {
	base    *infra.BaseWSWorker
	url     string
	channel string
	symbol  string
	inbox   chan<- event.Event

	subscribed atomic.Bool
	received   atomic.Uint64
	dropped    atomic.Uint64
}

// NewFeed creates a feed worker publishing book snapshots into inbox.
func NewFeed(url, channel, symbol string, inbox chan<- event.Event) *Feed {
	f := &Feed{url: url, channel: channel, symbol: symbol, inbox: inbox}
	f.base = infra.NewBaseWSWorker(f)
	return f
}

func (f *Feed) ID() string     { return "BITSTAMP_FEED" }
func (f *Feed) GetURL() string { return f.url }

// Worker exposes the connection settings before Connect.
func (f *Feed) Worker() *infra.BaseWSWorker { return f.base }

func (f *Feed) Connect(ctx context.Context) error {
	f.base.Start(ctx)
	return nil
}

func (f *Feed) Disconnect() {
	f.base.Stop()
}

// Received counts book snapshots handed to the engine.
func (f *Feed) Received() uint64 { return f.received.Load() }

// Dropped counts snapshots discarded because the engine inbox was full.
func (f *Feed) Dropped() uint64 { return f.dropped.Load() }

// OnConnect waits for connection_established before subscribing.
func (f *Feed) OnConnect(ctx context.Context, w infra.Writer) error {
	f.subscribed.Store(false)
	return nil
}

func (f *Feed) OnPing(ctx context.Context, w infra.Writer) error {
	return infra.WriteJSON(w, pusherMessage{Event: pusherPing, Data: json.RawMessage(`{}`)})
}

func (f *Feed) OnDisconnect(ctx context.Context, err error) {
	f.subscribed.Store(false)
	slog.Warn("BITSTAMP_FEED_DISCONNECTED", "err", err)
}

func (f *Feed) OnMessage(ctx context.Context, msg []byte) {
	var m pusherMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		slog.Warn("BITSTAMP_BAD_MESSAGE", "err", err)
		return
	}

	switch m.Event {
	case pusherConnected:
		sub := pusherMessage{Event: pusherSubscribe, Data: mustJSON(map[string]string{"channel": f.channel})}
		if err := infra.WriteJSON(f.base, sub); err != nil {
			slog.Error("BITSTAMP_SUBSCRIBE_FAILED", "channel", f.channel, "err", err)
		}
	case pusherSubOK:
		f.subscribed.Store(true)
		slog.Info("BITSTAMP_SUBSCRIBED", "channel", m.Channel)
	case pusherPing:
		infra.WriteJSON(f.base, pusherMessage{Event: pusherPong, Data: json.RawMessage(`{}`)})
	case pusherError:
		slog.Error("BITSTAMP_PUSHER_ERROR", "data", string(m.Data))
	case bookEvent:
		if m.Channel != "" && m.Channel != f.channel {
			return
		}
		book, err := decodeBook(m.Data)
		if err != nil {
			slog.Warn("BITSTAMP_BOOK_DECODE", "err", err)
			return
		}
		f.publish(book)
	}
}

// publish never blocks: a newer snapshot supersedes a dropped one.
func (f *Feed) publish(book domain.RawBook) {
	ev := event.AcquireBookUpdateEvent()
	ev.Symbol = f.symbol
	ev.Book = book

	select {
	case f.inbox <- ev:
		f.received.Add(1)
	default:
		f.dropped.Add(1)
		event.ReleaseBookUpdateEvent(ev)
	}
}

// decodeBook accepts the payload either as a JSON string (Pusher encodes
// event data as a string) or as an inline object.
func decodeBook(data json.RawMessage) (domain.RawBook, error) {
	var book domain.RawBook
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return book, err
		}
		data = json.RawMessage(s)
	}
	if err := json.Unmarshal(data, &book); err != nil {
		return book, fmt.Errorf("order book payload: %w", err)
	}
	return book, nil
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

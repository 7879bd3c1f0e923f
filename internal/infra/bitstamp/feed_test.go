package bitstamp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"crypto_arb/internal/event"
)

func httpToWS(url string) string {
	return strings.Replace(url, "http://", "ws://", 1)
}

// createMockPusherServer speaks enough of the Pusher protocol to deliver books.
func createMockPusherServer(t *testing.T, books []string, subscribed chan<- string) *httptest.Server {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"pusher:connection_established","data":"{\"socket_id\":\"1.2\"}"}`))

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub struct {
			Event string `json:"event"`
			Data  struct {
				Channel string `json:"channel"`
			} `json:"data"`
		}
		json.Unmarshal(raw, &sub)
		subscribed <- sub.Event + ":" + sub.Data.Channel

		for _, b := range books {
			data, _ := json.Marshal(b) // Pusher sends the payload as a JSON string
			msg := `{"event":"data","channel":"order_book","data":` + string(data) + `}`
			conn.WriteMessage(websocket.TextMessage, []byte(msg))
			time.Sleep(10 * time.Millisecond)
		}
		time.Sleep(200 * time.Millisecond)
	}))
}

func TestFeed_SubscribesAndPublishes(t *testing.T) {
	subscribed := make(chan string, 1)
	server := createMockPusherServer(t, []string{`{"bids":[["100.0","0.5"]],"asks":[["101.0","1"]]}`}, subscribed)
	defer server.Close()

	inbox := make(chan event.Event, 4)
	feed := NewFeed(httpToWS(server.URL), "order_book", "BTCUSD", inbox)
	feed.Connect(context.Background())
	defer feed.Disconnect()

	select {
	case s := <-subscribed:
		if s != "pusher:subscribe:order_book" {
			t.Errorf("unexpected subscription %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("feed did not subscribe")
	}

	select {
	case ev := <-inbox:
		book, ok := ev.(*event.BookUpdateEvent)
		if !ok {
			t.Fatalf("expected BookUpdateEvent, got %T", ev)
		}
		if book.Symbol != "BTCUSD" || book.Book.Bids[0][0] != "100.0" || book.Book.Asks[0][1] != "1" {
			t.Errorf("unexpected book %+v", book)
		}
		event.ReleaseBookUpdateEvent(book)
	case <-time.After(time.Second):
		t.Fatal("no book received")
	}
}

func TestFeed_DropsWhenInboxFull(t *testing.T) {
	inbox := make(chan event.Event) // unbuffered, nobody reading
	feed := NewFeed("ws://unused", "order_book", "BTCUSD", inbox)

	feed.OnMessage(context.Background(), []byte(`{"event":"data","channel":"order_book","data":{"bids":[],"asks":[]}}`))
	if feed.Dropped() != 1 || feed.Received() != 0 {
		t.Errorf("dropped=%d received=%d", feed.Dropped(), feed.Received())
	}
}

func TestFeed_IgnoresOtherChannelsAndGarbage(t *testing.T) {
	inbox := make(chan event.Event, 4)
	feed := NewFeed("ws://unused", "order_book", "BTCUSD", inbox)

	feed.OnMessage(context.Background(), []byte(`{"event":"data","channel":"live_trades","data":"{}"}`))
	feed.OnMessage(context.Background(), []byte(`not json`))
	feed.OnMessage(context.Background(), []byte(`{"event":"data","channel":"order_book","data":"{not a book"}`))

	select {
	case ev := <-inbox:
		t.Errorf("unexpected event %T", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDecodeBook(t *testing.T) {
	for _, raw := range []string{
		`"{\"bids\":[[\"1\",\"2\"]],\"asks\":[]}"`,
		`{"bids":[["1","2"]],"asks":[]}`,
	} {
		book, err := decodeBook(json.RawMessage(raw))
		if err != nil {
			t.Fatalf("decodeBook(%s): %v", raw, err)
		}
		if len(book.Bids) != 1 || book.Bids[0][1] != "2" {
			t.Errorf("decodeBook(%s) = %+v", raw, book)
		}
	}
}

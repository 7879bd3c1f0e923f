package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockHandler implements WebSocketHandler for testing
type mockHandler struct {
	url               string
	hello             []byte
	onConnectCalls    int32
	onMessageCalls    int32
	onDisconnectCalls int32
	mu                sync.Mutex
	messages          [][]byte
}

func (m *mockHandler) GetURL() string { return m.url }
func (m *mockHandler) ID() string     { return "MOCK" }
func (m *mockHandler) OnConnect(ctx context.Context, w Writer) error {
	atomic.AddInt32(&m.onConnectCalls, 1)
	if m.hello != nil {
		return w.Write(websocket.TextMessage, m.hello)
	}
	return nil
}
func (m *mockHandler) OnMessage(ctx context.Context, msg []byte) {
	atomic.AddInt32(&m.onMessageCalls, 1)
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
}
func (m *mockHandler) OnPing(ctx context.Context, w Writer) error { return nil }
func (m *mockHandler) OnDisconnect(ctx context.Context, err error) {
	atomic.AddInt32(&m.onDisconnectCalls, 1)
}

// createMockWSServer creates a test WebSocket server
func createMockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

// httpToWS converts http:// URL to ws://
func httpToWS(url string) string {
	return strings.Replace(url, "http://", "ws://", 1)
}

func TestBaseWSWorker_Connect(t *testing.T) {
	server := createMockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"test"}`))
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	handler := &mockHandler{url: httpToWS(server.URL)}
	worker := NewBaseWSWorker(handler)
	worker.ReadTimeout = 500 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	worker.Start(ctx)
	time.Sleep(200 * time.Millisecond)
	worker.Stop()

	if atomic.LoadInt32(&handler.onConnectCalls) == 0 {
		t.Error("OnConnect was not called")
	}
	if atomic.LoadInt32(&handler.onMessageCalls) == 0 {
		t.Error("OnMessage was not called")
	}
}

func TestBaseWSWorker_ReconnectsAndNotifies(t *testing.T) {
	var accepted int32
	server := createMockWSServer(t, func(conn *websocket.Conn) {
		atomic.AddInt32(&accepted, 1)
		// Drop the connection right away.
	})
	defer server.Close()

	handler := &mockHandler{url: httpToWS(server.URL)}
	worker := NewBaseWSWorker(handler)
	worker.Backoff = Backoff{Base: 10 * time.Millisecond, Max: 20 * time.Millisecond}

	worker.Start(context.Background())
	time.Sleep(300 * time.Millisecond)
	worker.Stop()

	if atomic.LoadInt32(&accepted) < 2 {
		t.Errorf("expected reconnects, server accepted %d", accepted)
	}
	if atomic.LoadInt32(&handler.onDisconnectCalls) < 1 {
		t.Error("OnDisconnect was not called")
	}
}

func TestBaseWSWorker_GracefulShutdown(t *testing.T) {
	serverClosed := make(chan struct{})
	server := createMockWSServer(t, func(conn *websocket.Conn) {
		<-serverClosed
	})
	defer server.Close()
	defer close(serverClosed)

	worker := NewBaseWSWorker(&mockHandler{url: httpToWS(server.URL)})
	worker.Start(context.Background())
	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		worker.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Stop did not return within timeout")
	}
}

func TestBaseWSWorker_Write(t *testing.T) {
	received := make(chan []byte, 2)

	server := createMockWSServer(t, func(conn *websocket.Conn) {
		for i := 0; i < 2; i++ {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- msg
		}
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	handler := &mockHandler{url: httpToWS(server.URL), hello: []byte(`{"hello":1}`)}
	worker := NewBaseWSWorker(handler)

	if err := worker.Write(websocket.TextMessage, []byte("x")); err != ErrNotConnected {
		t.Errorf("Write before Start = %v, want ErrNotConnected", err)
	}

	worker.Start(context.Background())
	time.Sleep(100 * time.Millisecond)

	if err := WriteJSON(worker, map[string]string{"action": "subscribe"}); err != nil {
		t.Errorf("Write failed: %v", err)
	}

	for _, want := range []string{`{"hello":1}`, `{"action":"subscribe"}`} {
		select {
		case msg := <-received:
			if string(msg) != want {
				t.Errorf("expected %s, got %s", want, msg)
			}
		case <-time.After(1 * time.Second):
			t.Fatal("server did not receive message")
		}
	}

	worker.Stop()
}

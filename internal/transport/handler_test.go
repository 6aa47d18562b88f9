package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rafi-haque/Secure-Chat/internal/protocol"
	"github.com/rafi-haque/Secure-Chat/internal/router"
)

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, *Handler, router.Router) {
	t.Helper()

	rt := router.NewRouter(router.Config{}, nil)
	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("router Start: %v", err)
	}
	h := NewHandler(cfg, rt, nil, nil)
	srv := httptest.NewServer(h)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		h.Shutdown(ctx)
		srv.Close()
		rt.Stop(ctx)
	})
	return srv, h, rt
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func emit(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	frame, err := protocol.Encode(event, data)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
}

func next(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	env, err := protocol.Decode(raw)
	if err != nil {
		t.Fatalf("Decode(%s): %v", raw, err)
	}
	return env
}

func authenticate(t *testing.T, conn *websocket.Conn, name string) {
	t.Helper()
	emit(t, conn, protocol.EventAuthenticate, protocol.Authenticate{Username: name})
	if env := next(t, conn); env.Event != protocol.EventAuthenticated {
		t.Fatalf("got %q, want authenticated", env.Event)
	}
}

func TestHandler_EndToEndMessage(t *testing.T) {
	srv, _, _ := newTestServer(t, Config{})
	alice := dial(t, srv)
	bob := dial(t, srv)
	authenticate(t, alice, "alice")
	authenticate(t, bob, "bob")

	emit(t, alice, protocol.EventSendMessage, protocol.SendMessage{To: "bob", EncryptedContent: "ct1", ID: "m1"})

	env := next(t, bob)
	if env.Event != protocol.EventMessage {
		t.Fatalf("bob got %q, want message", env.Event)
	}
	var msg protocol.Message
	json.Unmarshal(env.Data, &msg)
	if msg.ID != "m1" || msg.From != "alice" || msg.Content != "ct1" {
		t.Errorf("message = %+v", msg)
	}

	env = next(t, alice)
	var receipt protocol.MessageDelivered
	json.Unmarshal(env.Data, &receipt)
	if env.Event != protocol.EventMessageDelivered || receipt.MessageID != "m1" || receipt.Status != "delivered" {
		t.Errorf("alice got %s %+v", env.Event, receipt)
	}
}

func TestHandler_ArrivalOrderPreserved(t *testing.T) {
	srv, _, _ := newTestServer(t, Config{})
	alice := dial(t, srv)
	bob := dial(t, srv)
	authenticate(t, alice, "alice")
	authenticate(t, bob, "bob")

	for _, id := range []string{"1", "2", "3", "4", "5"} {
		emit(t, alice, protocol.EventSendMessage, protocol.SendMessage{To: "bob", EncryptedContent: "x", ID: id})
	}

	for _, want := range []string{"1", "2", "3", "4", "5"} {
		var msg protocol.Message
		json.Unmarshal(next(t, bob).Data, &msg)
		if msg.ID != want {
			t.Fatalf("message id = %q, want %q", msg.ID, want)
		}
	}
}

func TestHandler_CloseReleasesPresence(t *testing.T) {
	srv, h, rt := newTestServer(t, Config{})
	alice := dial(t, srv)
	authenticate(t, alice, "alice")

	ctx := context.Background()
	if online, _ := rt.IsOnline(ctx, "alice"); !online {
		t.Fatal("alice should be online")
	}

	alice.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	alice.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		online, _ := rt.IsOnline(ctx, "alice")
		if !online && h.Stats().ActiveSessions == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("alice still online after closing her socket")
}

func TestHandler_Shutdown(t *testing.T) {
	srv, h, _ := newTestServer(t, Config{})
	conn := dial(t, srv)
	authenticate(t, conn, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("read after Shutdown should fail")
	}

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status after Shutdown = %d, want 503", resp.StatusCode)
	}
}

func TestHandler_ReadLimit(t *testing.T) {
	srv, h, _ := newTestServer(t, Config{ReadLimit: 128})
	conn := dial(t, srv)
	authenticate(t, conn, "alice")

	big := strings.Repeat("a", 1024)
	emit(t, conn, protocol.EventSendMessage, protocol.SendMessage{To: "bob", EncryptedContent: big})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("oversized frame should close the connection")
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.Stats().ActiveSessions != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := h.Stats().ActiveSessions; n != 0 {
		t.Errorf("ActiveSessions = %d, want 0", n)
	}
}

func TestHandler_CheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		host    string
		want    bool
	}{
		{"no origin header", nil, "", "relay.example", true},
		{"same host", nil, "https://relay.example", "relay.example", true},
		{"cross origin default", nil, "https://evil.example", "relay.example", false},
		{"wildcard", []string{"*"}, "https://any.example", "relay.example", true},
		{"listed", []string{"https://app.example"}, "https://app.example", "relay.example", true},
		{"not listed", []string{"https://app.example"}, "https://relay.example", "relay.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(Config{AllowedOrigins: tt.allowed}, nil, nil, nil)
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			req.Host = tt.host
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := h.checkOrigin(req); got != tt.want {
				t.Errorf("checkOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandler_RejectsPlainHTTP(t *testing.T) {
	srv, h, _ := newTestServer(t, Config{})

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if h.Stats().TotalRejected != 1 {
		t.Errorf("TotalRejected = %d, want 1", h.Stats().TotalRejected)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := Config{}.withDefaults()
	d := DefaultConfig()

	if cfg.ReadLimit != d.ReadLimit || cfg.OutboxMax != d.OutboxMax || cfg.PongWait != d.PongWait {
		t.Errorf("withDefaults() = %+v, want %+v", cfg, d)
	}
	if d.PingInterval >= d.PongWait {
		t.Errorf("PingInterval %v must be shorter than PongWait %v", d.PingInterval, d.PongWait)
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rafi-haque/Secure-Chat/internal/metrics"
	"github.com/rafi-haque/Secure-Chat/internal/protocol"
	"github.com/rafi-haque/Secure-Chat/internal/router"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeConn struct {
	id string

	mu     sync.Mutex
	frames [][]byte
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return true
}

func (c *fakeConn) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		env, _ := protocol.Decode(f)
		out = append(out, env.Event)
	}
	return out
}

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestRouter(t *testing.T) router.Router {
	t.Helper()
	rt := router.NewRouter(router.Config{}, nil)
	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { rt.Stop(context.Background()) })
	return rt
}

// identify connects a fake session to rt and binds name to it.
func identify(t *testing.T, rt router.Router, name string) *fakeConn {
	t.Helper()
	ctx := context.Background()
	c := &fakeConn{id: "conn-" + name}
	if err := rt.Connect(ctx, c); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	frame, _ := protocol.Encode(protocol.EventAuthenticate, protocol.Authenticate{Username: name})
	if err := rt.Dispatch(ctx, c, frame); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	// Queries run after every earlier command.
	if _, err := rt.ConnectedCount(ctx); err != nil {
		t.Fatalf("ConnectedCount: %v", err)
	}
	return c
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal %s: %v", w.Body.String(), err)
	}
	return v
}

func TestServer_Status(t *testing.T) {
	rt := newTestRouter(t)
	h := NewServer(ServerConfig{}, ServerDeps{Router: rt}, nil).Handler()

	t.Run("empty", func(t *testing.T) {
		w := do(h, http.MethodGet, "/status", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if body := w.Body.String(); !strings.Contains(body, `"connectedUsernames":[]`) {
			t.Errorf("body = %s, want an empty list", body)
		}
	})

	identify(t, rt, "bob")
	identify(t, rt, "alice")

	t.Run("two identified", func(t *testing.T) {
		resp := decode[StatusResponse](t, do(h, http.MethodGet, "/status", ""))
		if resp.Status != "active" || resp.ConnectedUsers != 2 {
			t.Errorf("resp = %+v", resp)
		}
		if strings.Join(resp.ConnectedUsernames, ",") != "alice,bob" {
			t.Errorf("ConnectedUsernames = %v, want [alice bob]", resp.ConnectedUsernames)
		}
	})
}

func TestServer_StatusConsistentUnderChurn(t *testing.T) {
	rt := newTestRouter(t)
	h := NewServer(ServerConfig{}, ServerDeps{Router: rt}, nil).Handler()

	ctx, cancel := context.WithCancel(context.Background())
	churned := make(chan struct{})
	go func() {
		defer close(churned)
		for i := 0; ctx.Err() == nil; i++ {
			c := &fakeConn{id: fmt.Sprintf("churn-%d", i)}
			frame, _ := protocol.Encode(protocol.EventAuthenticate, protocol.Authenticate{Username: fmt.Sprintf("u%d", i%32)})
			if rt.Connect(ctx, c) != nil || rt.Dispatch(ctx, c, frame) != nil {
				return
			}
			if i%2 == 0 {
				rt.Disconnect(ctx, c)
			}
		}
	}()
	defer func() {
		cancel()
		<-churned
	}()

	for i := 0; i < 1000; i++ {
		w := do(h, http.MethodGet, "/status", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		resp := decode[StatusResponse](t, w)
		if resp.ConnectedUsers != len(resp.ConnectedUsernames) {
			t.Fatalf("connectedUsers = %d, len(connectedUsernames) = %d", resp.ConnectedUsers, len(resp.ConnectedUsernames))
		}
	}
}

func TestServer_Presence(t *testing.T) {
	rt := newTestRouter(t)
	identify(t, rt, "alice")
	identify(t, rt, "a/b")
	h := NewServer(ServerConfig{}, ServerDeps{
		Router: rt,
		Now:    func() time.Time { return fixedNow },
	}, nil).Handler()

	tests := []struct {
		path     string
		username string
		online   bool
	}{
		{"/users/alice/presence", "alice", true},
		{"/users/carol/presence", "carol", false},
		{"/users/a%2Fb/presence", "a/b", true},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			w := do(h, http.MethodGet, tt.path, "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			resp := decode[PresenceResponse](t, w)
			if resp.Username != tt.username || resp.IsOnline != tt.online {
				t.Errorf("resp = %+v, want %s online=%v", resp, tt.username, tt.online)
			}
			if resp.CheckedAt != "2026-01-02T03:04:05.000Z" {
				t.Errorf("CheckedAt = %q", resp.CheckedAt)
			}
		})
	}
}

func TestServer_Broadcast(t *testing.T) {
	rt := newTestRouter(t)
	alice := identify(t, rt, "alice")
	bob := identify(t, rt, "bob")
	h := NewServer(ServerConfig{}, ServerDeps{Router: rt}, nil).Handler()

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"invalid json", `{`, http.StatusBadRequest, "invalid request body"},
		{"blank message", `{"message":"  "}`, http.StatusBadRequest, "message is required"},
		{"ok", `{"message":"maintenance at noon"}`, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodPost, "/broadcast", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantErr != "" {
				if resp := decode[ErrorResponse](t, w); resp.Error != tt.wantErr {
					t.Errorf("error = %q, want %q", resp.Error, tt.wantErr)
				}
				return
			}
			if resp := decode[BroadcastResponse](t, w); resp.Delivered != 2 {
				t.Errorf("Delivered = %d, want 2", resp.Delivered)
			}
		})
	}

	for _, c := range []*fakeConn{alice, bob} {
		got := c.events()
		if len(got) != 2 || got[1] != protocol.EventBroadcast {
			t.Errorf("%s events = %v, want [authenticated broadcast]", c.id, got)
		}
	}
}

func TestServer_Health(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		rt := newTestRouter(t)
		h := NewServer(ServerConfig{}, ServerDeps{
			Router: rt,
			Checks: map[string]HealthCheck{
				"database": func(context.Context) error { return nil },
			},
		}, nil).Handler()

		w := do(h, http.MethodGet, "/health", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		resp := decode[HealthResponse](t, w)
		if resp.Status != "ok" || resp.Components["router"] != "ok" || resp.Components["database"] != "ok" {
			t.Errorf("resp = %+v", resp)
		}
		if resp.Version["version"] == "" {
			t.Error("version info missing")
		}
	})

	t.Run("failing check", func(t *testing.T) {
		rt := newTestRouter(t)
		h := NewServer(ServerConfig{}, ServerDeps{
			Router: rt,
			Checks: map[string]HealthCheck{
				"database": func(context.Context) error { return errors.New("connection refused") },
			},
		}, nil).Handler()

		w := do(h, http.MethodGet, "/health", "")
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", w.Code)
		}
		resp := decode[HealthResponse](t, w)
		if resp.Status != "degraded" || resp.Components["database"] != "connection refused" {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("stopped router", func(t *testing.T) {
		rt := router.NewRouter(router.Config{}, nil)
		rt.Start(context.Background())
		rt.Stop(context.Background())
		h := NewServer(ServerConfig{}, ServerDeps{Router: rt}, nil).Handler()

		w := do(h, http.MethodGet, "/health", "")
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", w.Code)
		}
		if resp := decode[HealthResponse](t, w); resp.Components["router"] == "ok" {
			t.Errorf("router component = ok after Stop")
		}
	})
}

func TestServer_RouterStopped(t *testing.T) {
	rt := router.NewRouter(router.Config{}, nil)
	rt.Start(context.Background())
	rt.Stop(context.Background())
	h := NewServer(ServerConfig{}, ServerDeps{Router: rt}, nil).Handler()

	for _, path := range []string{"/status", "/users/alice/presence"} {
		if w := do(h, http.MethodGet, path, ""); w.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s status = %d, want 503", path, w.Code)
		}
	}
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRelay(reg)
	m.ConnectionOpened()

	t.Run("enabled", func(t *testing.T) {
		h := NewServer(ServerConfig{}, ServerDeps{Router: newTestRouter(t), Gatherer: reg}, nil).Handler()
		w := do(h, http.MethodGet, "/metrics", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if !strings.Contains(w.Body.String(), "securechat_connections 1") {
			t.Errorf("metrics output missing securechat_connections:\n%s", w.Body.String())
		}
	})

	t.Run("disabled", func(t *testing.T) {
		h := NewServer(ServerConfig{MetricsPath: "-"}, ServerDeps{Router: newTestRouter(t), Gatherer: reg}, nil).Handler()
		if w := do(h, http.MethodGet, "/metrics", ""); w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})
}

func TestServer_WebSocketRoute(t *testing.T) {
	called := false
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})
	h := NewServer(ServerConfig{WebSocketPath: "/chat"}, ServerDeps{Router: newTestRouter(t), WebSocket: ws}, nil).Handler()

	if w := do(h, http.MethodGet, "/chat", ""); w.Code != http.StatusTeapot || !called {
		t.Errorf("status = %d called = %v, want the websocket handler", w.Code, called)
	}
}

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rafi-haque/Secure-Chat/internal/metrics"
	"github.com/rafi-haque/Secure-Chat/internal/router"
)

// disconnectTimeout bounds how long teardown waits on the router.
const disconnectTimeout = 5 * time.Second

// Handler upgrades HTTP requests to WebSocket sessions and feeds them to
// the router.
type Handler struct {
	cfg      Config
	router   router.Router
	metrics  *metrics.Relay
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*Session
	closing  bool
	wg       sync.WaitGroup

	accepted atomic.Int64
	rejected atomic.Int64
}

// NewHandler creates a WebSocket handler bound to rt.
func NewHandler(cfg Config, rt router.Router, m *metrics.Relay, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	h := &Handler{
		cfg:      cfg,
		router:   rt,
		metrics:  m,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// ServeHTTP runs one WebSocket session for its whole lifetime.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		h.rejected.Add(1)
		http.Error(w, ErrShuttingDown.Error(), http.StatusServiceUnavailable)
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.rejected.Add(1)
		h.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s := newSession(uuid.NewString(), conn, h.cfg, h.logger)
	h.track(s)
	defer h.untrack(s)

	if err := h.router.Connect(r.Context(), s); err != nil {
		s.logger.Warn("router refused connection", "error", err)
		s.finish()
		return
	}

	h.accepted.Add(1)
	h.metrics.ConnectionOpened()
	defer h.metrics.ConnectionClosed()
	s.logger.Debug("websocket session opened", "remote", r.RemoteAddr)

	s.start()
	s.readLoop(func(frame []byte) error {
		if err := h.router.Dispatch(r.Context(), s, frame); err != nil {
			return fmt.Errorf("dispatch: %w", err)
		}
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := h.router.Disconnect(ctx, s); err != nil {
		s.logger.Warn("router disconnect failed", "error", err)
	}
	s.finish()
	s.logger.Debug("websocket session closed")
}

// Shutdown stops accepting sessions, closes every open one, and waits for
// their handlers to finish.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	open := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		open = append(open, s)
	}
	h.mu.Unlock()

	h.logger.Info("closing websocket sessions", "count", len(open))
	for _, s := range open {
		s.kick()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	active := len(h.sessions)
	h.mu.Unlock()

	return Stats{
		ActiveSessions: active,
		TotalAccepted:  h.accepted.Load(),
		TotalRejected:  h.rejected.Load(),
	}
}

func (h *Handler) track(s *Session) {
	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()
}

func (h *Handler) untrack(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.id)
	h.mu.Unlock()
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	if len(h.cfg.AllowedOrigins) > 0 {
		return false
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

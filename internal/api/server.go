package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rafi-haque/Secure-Chat/internal/metrics"
	"github.com/rafi-haque/Secure-Chat/internal/protocol"
	"github.com/rafi-haque/Secure-Chat/internal/router"
	"github.com/rafi-haque/Secure-Chat/internal/version"
)

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	WebSocketPath string        // Default: /ws
	MetricsPath   string        // Default: /metrics; "-" disables
	HealthTimeout time.Duration // Per-check deadline. Default: 2s
}

// ServerDeps are the collaborators the HTTP surface reads from.
type ServerDeps struct {
	Router    router.Router
	WebSocket http.Handler           // Optional
	Gatherer  prometheus.Gatherer    // Optional
	Checks    map[string]HealthCheck // Optional, keyed by component name
	Now       func() time.Time       // Default: time.Now
}

// Server is the relay's HTTP surface.
type Server struct {
	cfg    ServerConfig
	deps   ServerDeps
	logger *slog.Logger
	engine *gin.Engine
}

// NewServer builds the gin engine and registers all routes.
func NewServer(cfg ServerConfig, deps ServerDeps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WebSocketPath == "" {
		cfg.WebSocketPath = "/ws"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 2 * time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		engine: gin.New(),
	}
	// Match escaped path segments so identities may contain '/'.
	s.engine.UseRawPath = true
	s.engine.Use(gin.Recovery(), requestLogger(logger))
	s.routes()
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/status", s.getStatus)
	s.engine.GET("/users/:username/presence", s.getPresence)
	s.engine.POST("/broadcast", s.postBroadcast)
	s.engine.GET("/health", s.getHealth)

	if s.deps.WebSocket != nil {
		s.engine.GET(s.cfg.WebSocketPath, gin.WrapH(s.deps.WebSocket))
	}
	if s.deps.Gatherer != nil && s.cfg.MetricsPath != "-" {
		s.engine.GET(s.cfg.MetricsPath, gin.WrapH(metrics.Handler(s.deps.Gatherer)))
	}
}

func (s *Server) getStatus(c *gin.Context) {
	// One query, so the count and the names come from the same loop turn.
	names, err := s.deps.Router.ConnectedIdentities(c.Request.Context())
	if err != nil {
		s.routerUnavailable(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}

	c.JSON(http.StatusOK, StatusResponse{
		Status:             "active",
		ConnectedUsers:     len(names),
		ConnectedUsernames: names,
	})
}

func (s *Server) getPresence(c *gin.Context) {
	username := c.Param("username")

	online, err := s.deps.Router.IsOnline(c.Request.Context(), username)
	if err != nil {
		s.routerUnavailable(c, err)
		return
	}

	c.JSON(http.StatusOK, PresenceResponse{
		Username:  username,
		IsOnline:  online,
		CheckedAt: protocol.FormatTime(s.deps.Now()),
	})
}

func (s *Server) postBroadcast(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "message is required"})
		return
	}

	n, err := s.deps.Router.Broadcast(c.Request.Context(), req.Message)
	if err != nil {
		s.routerUnavailable(c, err)
		return
	}

	s.logger.Info("operator broadcast", "delivered", n, "remote", c.ClientIP())
	c.JSON(http.StatusOK, BroadcastResponse{Delivered: n})
}

func (s *Server) getHealth(c *gin.Context) {
	resp := HealthResponse{
		Status:     "ok",
		Version:    version.Info(),
		Components: make(map[string]string),
	}

	// The router counts as healthy when its loop answers.
	if _, err := s.deps.Router.ConnectedCount(c.Request.Context()); err != nil {
		resp.Components["router"] = err.Error()
		resp.Status = "degraded"
	} else {
		resp.Components["router"] = "ok"
	}

	names := make([]string, 0, len(s.deps.Checks))
	for name := range s.deps.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.HealthTimeout)
		err := s.deps.Checks[name](ctx)
		cancel()

		if err != nil {
			resp.Components[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Components[name] = "ok"
	}

	st := s.deps.Router.Stats()
	resp.Router = RouterHealth{
		Sessions:          st.Sessions,
		Identities:        st.Identities,
		EventsReceived:    st.EventsReceived,
		MessagesDelivered: st.MessagesDelivered,
		MessagesFailed:    st.MessagesFailed,
		DroppedFrames:     st.DroppedFrames,
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

func (s *Server) routerUnavailable(c *gin.Context, err error) {
	code := http.StatusServiceUnavailable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		code = http.StatusGatewayTimeout
	}
	s.logger.Warn("router unavailable", "path", c.FullPath(), "error", err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// requestLogger logs one line per request at Debug, or Warn for 5xx.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
		)
	}
}

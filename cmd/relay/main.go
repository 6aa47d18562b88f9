package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/rafi-haque/Secure-Chat/internal/api"
	"github.com/rafi-haque/Secure-Chat/internal/audit"
	"github.com/rafi-haque/Secure-Chat/internal/config"
	"github.com/rafi-haque/Secure-Chat/internal/database"
	"github.com/rafi-haque/Secure-Chat/internal/metrics"
	"github.com/rafi-haque/Secure-Chat/internal/router"
	"github.com/rafi-haque/Secure-Chat/internal/transport"
	"github.com/rafi-haque/Secure-Chat/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	addr := flag.String("addr", "", "listen address, overrides server.addr")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting relay",
		"version", version.Version,
		"commit", version.Commit,
		"instance_id", cfg.Instance.ID,
		"config", *configPath,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("relay failed", "error", err)
		os.Exit(1)
	}
	logger.Info("relay stopped")
}

func loadConfig(path, addr string) (*config.RelayConfig, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadAndValidate(path); err != nil {
			return nil, err
		}
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	return cfg, nil
}

// newLogger builds the process logger from log.level and log.format.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func run(cfg *config.RelayConfig, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	reg := metrics.NewRegistry()
	relayMetrics := metrics.NewRelay(reg)

	routerCfg := router.DefaultConfig()
	routerCfg.CommandBufferSize = cfg.Router.CommandBufferSize
	routerCfg.Metrics = relayMetrics

	checks := make(map[string]api.HealthCheck)

	// Presence audit is optional.
	var writer *audit.Writer
	if cfg.Audit.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		logger.Info("database connected")

		writer = audit.NewWriter(audit.WriterConfig{
			InstanceID:    cfg.Instance.ID,
			BatchSize:     cfg.Audit.BatchSize,
			FlushInterval: cfg.Audit.FlushInterval,
			BufferSize:    cfg.Audit.BufferSize,
		}, pool, relayMetrics, logger)

		if cfg.Audit.EnsureSchema {
			if err := writer.EnsureSchema(ctx); err != nil {
				return err
			}
		}
		// Long-lived components are stopped explicitly in shutdown order,
		// not by the signal context.
		if err := writer.Start(context.Background()); err != nil {
			return fmt.Errorf("start audit writer: %w", err)
		}
		routerCfg.Observer = writer
		checks["database"] = pingCheck(pool)
	}

	rt := router.NewRouter(routerCfg, logger.With("component", "router"))
	if err := rt.Start(context.Background()); err != nil {
		return fmt.Errorf("start router: %w", err)
	}

	ws := transport.NewHandler(transport.Config{
		ReadLimit:      cfg.Transport.ReadLimit,
		PingInterval:   cfg.Transport.PingInterval,
		PongWait:       cfg.Transport.PongWait,
		WriteTimeout:   cfg.Transport.WriteTimeout,
		OutboxInitial:  cfg.Transport.OutboxInitial,
		OutboxMax:      cfg.Transport.OutboxMax,
		AllowedOrigins: cfg.Transport.AllowedOrigins,
	}, rt, relayMetrics, logger.With("component", "transport"))

	srv := api.NewServer(api.ServerConfig{
		WebSocketPath: cfg.Server.WebSocketPath,
		MetricsPath:   cfg.Metrics.Path,
		HealthTimeout: cfg.Server.HealthTimeout,
	}, api.ServerDeps{
		Router:    rt,
		WebSocket: ws,
		Gatherer:  reg,
		Checks:    checks,
	}, logger.With("component", "http"))

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("relay listening",
			"addr", cfg.Server.Addr,
			"websocket_path", cfg.Server.WebSocketPath,
		)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		// Sockets close before the router stops so their releases are routed.
		if err := ws.Shutdown(shutdownCtx); err != nil {
			logger.Warn("websocket shutdown incomplete", "error", err)
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown incomplete", "error", err)
		}
		if err := rt.Stop(shutdownCtx); err != nil {
			logger.Warn("router stop incomplete", "error", err)
		}
		if writer != nil {
			if err := writer.Stop(shutdownCtx); err != nil {
				logger.Warn("audit writer stop incomplete", "error", err)
			}
		}
		return nil
	})

	return g.Wait()
}

func pingCheck(pool *pgxpool.Pool) api.HealthCheck {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}

package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceID        = "relay"
	DefaultAddr              = ":8080"
	DefaultWebSocketPath     = "/ws"
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultHealthTimeout     = 2 * time.Second
	DefaultReadLimit         = 64 << 10
	DefaultPingInterval      = 25 * time.Second
	DefaultPongWait          = 60 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultOutboxInitial     = 32
	DefaultOutboxMax         = 1024
	DefaultCommandBufferSize = 1024
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultDBApplicationName = "secure-chat-relay"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultAuditBatchSize    = 100
	DefaultAuditFlush        = 1 * time.Second
	DefaultAuditBufferSize   = 10000
	DefaultMetricsPath       = "/metrics"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

func (c *RelayConfig) applyDefaults() {
	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.WebSocketPath == "" {
		c.Server.WebSocketPath = DefaultWebSocketPath
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Server.HealthTimeout == 0 {
		c.Server.HealthTimeout = DefaultHealthTimeout
	}

	// Transport defaults
	if c.Transport.ReadLimit == 0 {
		c.Transport.ReadLimit = DefaultReadLimit
	}
	if c.Transport.PingInterval == 0 {
		c.Transport.PingInterval = DefaultPingInterval
	}
	if c.Transport.PongWait == 0 {
		c.Transport.PongWait = DefaultPongWait
	}
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = DefaultWriteTimeout
	}
	if c.Transport.OutboxInitial == 0 {
		c.Transport.OutboxInitial = DefaultOutboxInitial
	}
	if c.Transport.OutboxMax == 0 {
		c.Transport.OutboxMax = DefaultOutboxMax
	}

	if c.Router.CommandBufferSize == 0 {
		c.Router.CommandBufferSize = DefaultCommandBufferSize
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.ApplicationName == "" {
		c.Database.ApplicationName = DefaultDBApplicationName
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Audit defaults
	if c.Audit.BatchSize == 0 {
		c.Audit.BatchSize = DefaultAuditBatchSize
	}
	if c.Audit.FlushInterval == 0 {
		c.Audit.FlushInterval = DefaultAuditFlush
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = DefaultAuditBufferSize
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

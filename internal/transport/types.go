package transport

import (
	"errors"
	"time"
)

// ErrShuttingDown is reported to clients that connect during shutdown.
var ErrShuttingDown = errors.New("relay shutting down")

// Config configures the WebSocket transport.
type Config struct {
	ReadLimit      int64         // Max inbound frame size in bytes
	PingInterval   time.Duration // How often the server pings each client
	PongWait       time.Duration // Read deadline, extended by every pong
	WriteTimeout   time.Duration // Deadline for a single frame write
	OutboxInitial  int           // Initial per-connection outbox capacity
	OutboxMax      int           // Frames queued before new ones are dropped
	AllowedOrigins []string      // "*" allows any; empty means same host only
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReadLimit:     64 * 1024,
		PingInterval:  25 * time.Second,
		PongWait:      60 * time.Second,
		WriteTimeout:  10 * time.Second,
		OutboxInitial: 32,
		OutboxMax:     1024,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ReadLimit <= 0 {
		c.ReadLimit = d.ReadLimit
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.OutboxInitial <= 0 {
		c.OutboxInitial = d.OutboxInitial
	}
	if c.OutboxMax <= 0 {
		c.OutboxMax = d.OutboxMax
	}
	return c
}

// Stats contains transport statistics.
type Stats struct {
	ActiveSessions int
	TotalAccepted  int64
	TotalRejected  int64
}

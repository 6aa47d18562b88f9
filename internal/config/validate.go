package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *RelayConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if !strings.HasPrefix(c.Server.WebSocketPath, "/") {
		return fmt.Errorf("server.websocket_path must start with /, got %q", c.Server.WebSocketPath)
	}

	if c.Transport.ReadLimit < 1 {
		return errors.New("transport.read_limit must be >= 1")
	}
	if c.Transport.PingInterval >= c.Transport.PongWait {
		return fmt.Errorf("transport.ping_interval (%s) must be shorter than pong_wait (%s)",
			c.Transport.PingInterval, c.Transport.PongWait)
	}
	if c.Transport.OutboxInitial < 1 {
		return errors.New("transport.outbox_initial must be >= 1")
	}
	if c.Transport.OutboxMax < c.Transport.OutboxInitial {
		return fmt.Errorf("transport.outbox_max (%d) cannot be less than outbox_initial (%d)",
			c.Transport.OutboxMax, c.Transport.OutboxInitial)
	}

	if c.Router.CommandBufferSize < 1 {
		return errors.New("router.command_buffer_size must be >= 1")
	}

	if c.Audit.Enabled {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
		if c.Audit.BatchSize < 1 {
			return errors.New("audit.batch_size must be >= 1")
		}
		if c.Audit.BufferSize < c.Audit.BatchSize {
			return fmt.Errorf("audit.buffer_size (%d) cannot be less than batch_size (%d)",
				c.Audit.BufferSize, c.Audit.BatchSize)
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

package config

import "time"

// RelayConfig is the root configuration for a relay instance.
type RelayConfig struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	Router    RouterConfig    `yaml:"router"`
	Database  DBConfig        `yaml:"database"`
	Audit     AuditConfig     `yaml:"audit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// InstanceConfig identifies this relay in logs and audit rows.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	WebSocketPath   string        `yaml:"websocket_path"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	HealthTimeout   time.Duration `yaml:"health_timeout"`
}

// TransportConfig holds per-connection WebSocket settings.
type TransportConfig struct {
	ReadLimit      int64         `yaml:"read_limit"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PongWait       time.Duration `yaml:"pong_wait"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	OutboxInitial  int           `yaml:"outbox_initial"`
	OutboxMax      int           `yaml:"outbox_max"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// RouterConfig holds router loop settings.
type RouterConfig struct {
	CommandBufferSize int `yaml:"command_buffer_size"`
}

// DBConfig holds a single database connection. Only used when audit is enabled.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`

	// Shown in pg_stat_activity. Default: secure-chat-relay
	ApplicationName string `yaml:"application_name"`
}

// AuditConfig holds presence audit writer settings.
type AuditConfig struct {
	Enabled       bool          `yaml:"enabled"`
	EnsureSchema  bool          `yaml:"ensure_schema"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Path string `yaml:"path"` // "-" disables the endpoint
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package config

import (
	"strings"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Directory DirectoryConfig `koanf:"directory"`
	NATS      NATSConfig      `koanf:"nats"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// SecurityConfig holds authentication and authorization settings.
type SecurityConfig struct {
	JWTSecret         string        `koanf:"jwt_secret"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	Casbin            CasbinConfig  `koanf:"casbin"`
}

// CasbinConfig points at optional model and policy files.
// Empty paths use the embedded defaults.
type CasbinConfig struct {
	ModelPath  string `koanf:"model_path"`
	PolicyPath string `koanf:"policy_path"`
}

// WebSocketConfig controls the realtime hub and per-connection limits.
type WebSocketConfig struct {
	// SendBufferSize is the capacity of each connection's outbound queue.
	SendBufferSize int `koanf:"send_buffer_size"`

	// OverflowThreshold is how many consecutive full-queue events a connection
	// may hit before it is forcibly disconnected. 1 disconnects on the first overflow.
	OverflowThreshold int `koanf:"overflow_threshold"`

	// PublishBufferSize is the capacity of the hub's inbound event queue.
	PublishBufferSize int `koanf:"publish_buffer_size"`

	WriteWait      time.Duration `koanf:"write_wait"`
	PongWait       time.Duration `koanf:"pong_wait"`
	MaxMessageSize int64         `koanf:"max_message_size"`

	// MaxSubscriptions caps explicit device subscriptions per connection.
	MaxSubscriptions int `koanf:"max_subscriptions"`

	// InboundRate and InboundBurst limit client commands per connection.
	InboundRate  float64 `koanf:"inbound_rate"`
	InboundBurst int     `koanf:"inbound_burst"`

	// OrgWideDeviceEvents delivers device events to every member of the
	// organization, not only to explicit subscribers.
	OrgWideDeviceEvents bool `koanf:"org_wide_device_events"`
}

// DirectoryConfig configures the badger-backed device directory.
type DirectoryConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`

	// CacheSize bounds the device ownership cache. 0 disables it.
	CacheSize int           `koanf:"cache_size"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`
}

// NATSConfig configures the optional device event ingest bridge.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	Subject        string `koanf:"subject"`
	QueueGroup     string `koanf:"queue_group"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	EmbeddedPort   int    `koanf:"embedded_port"`

	// ReconnectWait is the pause between reconnect attempts.
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
	// MaxReconnects of 0 retries forever.
	MaxReconnects int `koanf:"max_reconnects"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, the optional config file and the environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists config file locations in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/fleetpulse/config.yaml",
	"/etc/fleetpulse/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			SessionTimeout:  24 * time.Hour,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		WebSocket: WebSocketConfig{
			SendBufferSize:      256,
			OverflowThreshold:   1,
			PublishBufferSize:   1024,
			WriteWait:           10 * time.Second,
			PongWait:            60 * time.Second,
			MaxMessageSize:      64 * 1024,
			MaxSubscriptions:    500,
			InboundRate:         20,
			InboundBurst:        40,
			OrgWideDeviceEvents: true,
		},
		Directory: DirectoryConfig{
			Path:      "/data/devices",
			CacheSize: 10000,
			CacheTTL:  time.Minute,
		},
		NATS: NATSConfig{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			Subject:       "devices.>",
			QueueGroup:    "fleetpulse",
			EmbeddedPort:  4222,
			ReconnectWait: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration with precedence ENV > file > defaults
// and validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields splits comma-separated env values for slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_port":        "server.port",
	"http_host":        "server.host",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",

	// Security
	"jwt_secret":          "security.jwt_secret",
	"session_timeout":     "security.session_timeout",
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"casbin_model_path":   "security.casbin.model_path",
	"casbin_policy_path":  "security.casbin.policy_path",

	// WebSocket hub
	"ws_send_buffer_size":       "websocket.send_buffer_size",
	"ws_overflow_threshold":     "websocket.overflow_threshold",
	"ws_publish_buffer_size":    "websocket.publish_buffer_size",
	"ws_write_wait":             "websocket.write_wait",
	"ws_pong_wait":              "websocket.pong_wait",
	"ws_max_message_size":       "websocket.max_message_size",
	"ws_max_subscriptions":      "websocket.max_subscriptions",
	"ws_inbound_rate":           "websocket.inbound_rate",
	"ws_inbound_burst":          "websocket.inbound_burst",
	"ws_org_wide_device_events": "websocket.org_wide_device_events",

	// Device directory
	"directory_path":       "directory.path",
	"directory_in_memory":  "directory.in_memory",
	"directory_cache_size": "directory.cache_size",
	"directory_cache_ttl":  "directory.cache_ttl",

	// NATS ingest bridge
	"nats_enabled":        "nats.enabled",
	"nats_url":            "nats.url",
	"nats_subject":        "nats.subject",
	"nats_queue_group":    "nats.queue_group",
	"nats_embedded":       "nats.embedded_server",
	"nats_embedded_port":  "nats.embedded_port",
	"nats_reconnect_wait": "nats.reconnect_wait",
	"nats_max_reconnects": "nats.max_reconnects",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable to its koanf path.
// Unknown variables map to "" and are skipped.
//
//	JWT_SECRET            -> security.jwt_secret
//	WS_SEND_BUFFER_SIZE   -> websocket.send_buffer_size
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

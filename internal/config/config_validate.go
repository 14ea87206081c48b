// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateSecurity,
		c.validateWebSocket,
		c.validateDirectory,
		c.validateNATS,
		c.validateLogging,
	}
	for _, validator := range validators {
		if err := validator(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

const minJWTSecretLength = 32

// Rate limit bounds
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

func (c *Config) validateSecurity() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if c.Security.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive")
	}
	if c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed when ENVIRONMENT=production; " +
			"set specific origins, e.g. CORS_ORIGINS=https://dashboard.example.com")
	}
	return c.validateRateLimits()
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS reports whether the CORS setting deserves a startup warning.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.hasWildcardCORS()
}

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// WebSocket bounds
const (
	maxSendBufferSize    = 65536
	maxPublishBufferSize = 1 << 20
	minMaxMessageSize    = 512
)

func (c *Config) validateWebSocket() error {
	ws := c.WebSocket
	switch {
	case ws.SendBufferSize < 1 || ws.SendBufferSize > maxSendBufferSize:
		return fmt.Errorf("WS_SEND_BUFFER_SIZE must be between 1 and %d", maxSendBufferSize)
	case ws.OverflowThreshold < 1:
		return fmt.Errorf("WS_OVERFLOW_THRESHOLD must be at least 1")
	case ws.PublishBufferSize < 1 || ws.PublishBufferSize > maxPublishBufferSize:
		return fmt.Errorf("WS_PUBLISH_BUFFER_SIZE must be between 1 and %d", maxPublishBufferSize)
	case ws.WriteWait <= 0:
		return fmt.Errorf("WS_WRITE_WAIT must be positive")
	case ws.PongWait <= 0:
		return fmt.Errorf("WS_PONG_WAIT must be positive")
	case ws.MaxMessageSize < minMaxMessageSize:
		return fmt.Errorf("WS_MAX_MESSAGE_SIZE must be at least %d bytes", minMaxMessageSize)
	case ws.MaxSubscriptions < 0:
		return fmt.Errorf("WS_MAX_SUBSCRIPTIONS must be non-negative (0 disables the cap)")
	case ws.InboundRate <= 0:
		return fmt.Errorf("WS_INBOUND_RATE must be positive")
	case ws.InboundBurst < 1:
		return fmt.Errorf("WS_INBOUND_BURST must be at least 1")
	}
	return nil
}

func (c *Config) validateDirectory() error {
	if !c.Directory.InMemory && c.Directory.Path == "" {
		return fmt.Errorf("DIRECTORY_PATH is required unless DIRECTORY_IN_MEMORY=true")
	}
	if c.Directory.CacheSize < 0 {
		return fmt.Errorf("DIRECTORY_CACHE_SIZE must be non-negative, got %d", c.Directory.CacheSize)
	}
	if c.Directory.CacheSize > 0 && c.Directory.CacheTTL <= 0 {
		return fmt.Errorf("DIRECTORY_CACHE_TTL must be positive when the cache is enabled")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.EmbeddedServer {
		if c.NATS.EmbeddedPort < 1 || c.NATS.EmbeddedPort > 65535 {
			return fmt.Errorf("NATS_EMBEDDED_PORT must be between 1 and 65535")
		}
	} else if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	if c.NATS.Subject == "" {
		return fmt.Errorf("NATS_SUBJECT is required when NATS_ENABLED=true")
	}
	if c.NATS.ReconnectWait <= 0 {
		return fmt.Errorf("NATS_RECONNECT_WAIT must be positive")
	}
	if c.NATS.MaxReconnects < 0 {
		return fmt.Errorf("NATS_MAX_RECONNECTS must be non-negative (0 retries forever)")
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{
	"json": true, "console": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// validateNATSURL accepts nats://, tls://, ws:// and wss:// URLs with a host.
func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsedURL.Scheme] {
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222, nats.example.com)")
	}
	return nil
}

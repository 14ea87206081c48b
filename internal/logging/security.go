// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SecurityLogger records authentication-gate decisions with sanitized fields.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a security logger on top of the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{logger: WithComponent("auth")}
}

// NewSecurityLoggerWithLogger creates a security logger with a custom zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: logger.With().Str("component", "auth").Logger()}
}

// LogHandshakeAccepted records a connection that passed the authentication gate.
func (l *SecurityLogger) LogHandshakeAccepted(userID, organizationID, role, ip string) {
	l.logger.Info().
		Str("event", "handshake_accepted").
		Str("status", "success").
		Str("user_id", SanitizeUserID(userID)).
		Str("organization_id", organizationID).
		Str("role", role).
		Str("ip", ip).
		Msg("")
}

// LogHandshakeRejected records a connection refused before registration.
func (l *SecurityLogger) LogHandshakeRejected(ip, credential, reason string) {
	e := l.logger.Warn().
		Str("event", "handshake_rejected").
		Str("status", "failed").
		Str("ip", ip).
		Str("error", SanitizeError(reason))
	if credential != "" {
		e = e.Str("token", SanitizeToken(credential))
	}
	e.Msg("")
}

// LogForbidden records an authorization denial for an authenticated subject.
func (l *SecurityLogger) LogForbidden(userID, role, object, action string) {
	l.logger.Warn().
		Str("event", "forbidden").
		Str("user_id", SanitizeUserID(userID)).
		Str("role", role).
		Str("object", object).
		Str("action", action).
		Msg("")
}

// SanitizeToken masks a token, keeping the first and last 4 characters.
//
//	"eyJhbGciOiJIUzI1NiJ9.e30.abc" -> "eyJh....abc"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeUserID masks a user id.
func SanitizeUserID(userID string) string {
	if userID == "" {
		return ""
	}
	if len(userID) <= 8 {
		return "***"
	}
	return userID[:4] + "..." + userID[len(userID)-4:]
}

// SanitizeError hides error text that mentions credential material.
func SanitizeError(err string) string {
	lower := strings.ToLower(err)
	for _, pattern := range []string{"password", "secret", "bearer", "authorization", "cookie"} {
		if strings.Contains(lower, pattern) {
			return "authentication error"
		}
	}
	return truncateString(err, 200)
}

// sensitiveKeys names fields whose values are always masked.
var sensitiveKeys = map[string]bool{
	"access_token":  true,
	"token":         true,
	"password":      true,
	"secret":        true,
	"api_key":       true,
	"authorization": true,
	"bearer":        true,
	"cookie":        true,
}

// SanitizeValue masks a value if its key is sensitive and otherwise strips
// control characters so client-supplied strings cannot forge log lines.
func SanitizeValue(key, value string) string {
	if sensitiveKeys[strings.ToLower(key)] {
		return SanitizeToken(value)
	}
	value = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, value)
	return truncateString(value, 128)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

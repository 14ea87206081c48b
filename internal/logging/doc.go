// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

// Package logging provides the zerolog-backed structured logger used across FleetPulse.
//
// A single global logger is configured once at startup from the logging section of
// the service configuration and then used through package-level helpers:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("organization_id", orgID).Msg("connection registered")
//	logging.Ctx(ctx).Warn().Err(err).Msg("handshake rejected")
//
// # Configuration
//
// Environment Variables (mapped through internal/config):
//
//	LOG_LEVEL   - trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - json, console (default: json)
//	LOG_CALLER  - include caller file:line (default: false)
//
// # Context
//
// Request and correlation ids are carried on the context by the HTTP middleware
// and added automatically by Ctx and CtxWith.
//
// # Suture Integration
//
// NewSlogLogger returns a *slog.Logger that writes through zerolog so that
// sutureslog event hooks end up in the same JSON stream.
//
// # Sanitization
//
// Credentials and client-supplied identifiers must pass through SanitizeToken
// or SanitizeValue before they are logged. The SecurityLogger applies this
// automatically to handshake events.
package logging

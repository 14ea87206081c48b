// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/fleetpulse/internal/devices"
	"github.com/tomtom215/fleetpulse/internal/logging"
	ws "github.com/tomtom215/fleetpulse/internal/websocket"
)

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, upgrader
//   - handlers_helpers.go: response and request helpers
//   - handlers_health.go: liveness, readiness and health
//   - handlers_realtime.go: WebSocket handshake and hub statistics
//   - handlers_ingest.go: device event and notification ingest
//   - handlers_devices.go: device directory management
type Handler struct {
	gateway        *ws.Gateway
	directory      devices.Directory
	allowedOrigins []string
	startTime      time.Time
	version        string
}

// HandlerConfig carries optional Handler settings.
type HandlerConfig struct {
	// AllowedOrigins is checked against the Origin header of WebSocket
	// handshakes. "*" allows any origin.
	AllowedOrigins []string

	// Version is reported by the health endpoint.
	Version string
}

// NewHandler creates the API handler.
//
// The gateway is the realtime core: it authenticates handshakes, registers
// connections and accepts published device events. The directory resolves
// device ownership for ingest and management endpoints.
func NewHandler(gateway *ws.Gateway, directory devices.Directory, cfg HandlerConfig) *Handler {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return &Handler{
		gateway:        gateway,
		directory:      directory,
		allowedOrigins: cfg.AllowedOrigins,
		startTime:      time.Now(),
		version:        version,
	}
}

func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins.
// Browsers always send Origin, so a missing header is rejected.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/fleetpulse/internal/auth"
	"github.com/tomtom215/fleetpulse/internal/logging"
	ws "github.com/tomtom215/fleetpulse/internal/websocket"
)

// WebSocket authenticates the handshake and upgrades it into a realtime
// connection. Authentication happens before the upgrade so rejected
// clients get a plain HTTP error and nothing is registered.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	hub := h.gateway.Hub()
	if !hub.Running() {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Realtime service unavailable", nil)
		return
	}

	sub, err := h.gateway.Authenticate(r.Context(), auth.CredentialFromRequest(r), r.RemoteAddr)
	if err != nil {
		respondHandshakeError(w, err)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logging.Warn().Err(err).Str("user_id", logging.SanitizeUserID(sub.UserID)).Msg("WebSocket upgrade failed")
		return
	}

	if _, err := h.gateway.Attach(sub, conn); err != nil {
		code, text := websocket.CloseInternalServerErr, "registration failed"
		if errors.Is(err, ws.ErrHubClosed) {
			code, text = websocket.CloseGoingAway, "server shutting down"
			logging.Info().Str("user_id", logging.SanitizeUserID(sub.UserID)).Msg("WebSocket refused during shutdown")
		} else {
			logging.Error().Err(err).
				Str("user_id", logging.SanitizeUserID(sub.UserID)).
				Str("organization_id", sub.OrganizationID).
				Msg("WebSocket registration failed")
		}
		msg := websocket.FormatCloseMessage(code, text)
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	}
}

func respondHandshakeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ws.ErrForbidden):
		respondError(w, http.StatusForbidden, "FORBIDDEN", "Realtime access not permitted", nil)
	case errors.Is(err, auth.ErrNoCredentials),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrExpiredCredentials),
		errors.Is(err, auth.ErrMissingOrganization):
		w.Header().Set("WWW-Authenticate", `Bearer realm="fleetpulse"`)
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error(), nil)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Handshake failed", err)
	}
}

// RealtimeStatsResponse is the body of GET /api/v1/realtime/stats. Every
// count covers the caller's organization only; process-wide totals are
// exported as Prometheus metrics.
type RealtimeStatsResponse struct {
	OrganizationID string `json:"organization_id"`
	HubRunning     bool   `json:"hub_running"`
	ws.OrgStats
}

// RealtimeStats returns realtime statistics for the caller's organization.
func (h *Handler) RealtimeStats(w http.ResponseWriter, r *http.Request) {
	sub, ok := requireSubscriber(w, r)
	if !ok {
		return
	}

	hub := h.gateway.Hub()
	respondSuccess(w, http.StatusOK, RealtimeStatsResponse{
		OrganizationID: sub.OrganizationID,
		HubRunning:     hub.Running(),
		OrgStats:       hub.Registry().OrgStats(sub.OrganizationID),
	})
}

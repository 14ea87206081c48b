// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package authz

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetpulse/internal/auth"
	"github.com/tomtom215/fleetpulse/internal/logging"
	"github.com/tomtom215/fleetpulse/internal/models"
)

// Middleware enforces role permissions on chi routes.
// It must run after auth.RequireAuth.
type Middleware struct {
	enforcer *Enforcer
	secLog   *logging.SecurityLogger
}

// NewMiddleware creates a new authorization middleware.
func NewMiddleware(enforcer *Enforcer) *Middleware {
	return &Middleware{
		enforcer: enforcer,
		secLog:   logging.NewSecurityLogger(),
	}
}

// Authorize allows the request only if the subscriber's role may perform action on object.
func (m *Middleware) Authorize(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub := auth.SubscriberFromContext(r.Context())
			if sub == nil {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "no authentication context")
				return
			}

			allowed, err := m.enforcer.Enforce(sub.Role, object, action)
			if err != nil {
				logging.Error().Err(err).Str("object", object).Str("action", action).Msg("Authorization error")
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "authorization failed")
				return
			}
			if !allowed {
				m.secLog.LogForbidden(sub.UserID, sub.Role, object, action)
				writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    &models.APIError{Code: code, Message: message},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("Failed to encode authorization error")
	}
}

// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetpulse/internal/logging"
	"github.com/tomtom215/fleetpulse/internal/models"
)

type contextKey string

// SubscriberContextKey is the context key for the authenticated subscriber.
const SubscriberContextKey contextKey = "subscriber"

// ContextWithSubscriber returns a copy of ctx carrying sub.
func ContextWithSubscriber(ctx context.Context, sub *models.Subscriber) context.Context {
	return context.WithValue(ctx, SubscriberContextKey, sub)
}

// SubscriberFromContext returns the subscriber stored by RequireAuth, or nil.
func SubscriberFromContext(ctx context.Context) *models.Subscriber {
	if sub, ok := ctx.Value(SubscriberContextKey).(*models.Subscriber); ok {
		return sub
	}
	return nil
}

// RequireAuth rejects requests whose credential does not authenticate
// and stores the subscriber in the request context otherwise.
func RequireAuth(authn Authenticator) func(http.Handler) http.Handler {
	secLog := logging.NewSecurityLogger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := CredentialFromRequest(r)
			sub, err := authn.Authenticate(r.Context(), credential)
			if err != nil {
				secLog.LogHandshakeRejected(r.RemoteAddr, credential, err.Error())
				writeUnauthorized(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithSubscriber(r.Context(), sub)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="fleetpulse"`)
	w.WriteHeader(http.StatusUnauthorized)
	resp := models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error: &models.APIError{
			Code:    "UNAUTHORIZED",
			Message: err.Error(),
		},
	}
	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		logging.Error().Err(encErr).Msg("Failed to encode unauthorized response")
	}
}

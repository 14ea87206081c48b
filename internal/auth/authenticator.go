// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tomtom215/fleetpulse/internal/models"
)

// Standard authentication errors
var (
	// ErrNoCredentials indicates no credentials were provided.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials indicates credentials were invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrExpiredCredentials indicates credentials have expired.
	ErrExpiredCredentials = errors.New("credentials expired")

	// ErrMissingOrganization indicates a credential that carries no organization.
	ErrMissingOrganization = errors.New("credential has no organization")
)

// Authenticator verifies a credential and returns the subscriber it belongs to.
type Authenticator interface {
	// Authenticate returns the verified identity or one of the errors above.
	Authenticate(ctx context.Context, credential string) (*models.Subscriber, error)
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(ctx context.Context, credential string) (*models.Subscriber, error)

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, credential string) (*models.Subscriber, error) {
	return f(ctx, credential)
}

// TokenCookieName is the cookie checked when no Authorization header is present.
const TokenCookieName = "token"

// TokenQueryParam is accepted for browser WebSocket clients, which cannot set headers.
const TokenQueryParam = "token"

// CredentialFromRequest extracts a bearer token from the Authorization header,
// the token cookie or the token query parameter, in that order.
func CredentialFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}

	if cookie, err := r.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return strings.TrimSpace(r.URL.Query().Get(TokenQueryParam))
}

// Reason maps an authentication error to a short label for metrics and logs.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoCredentials):
		return "no_credentials"
	case errors.Is(err, ErrExpiredCredentials):
		return "expired"
	case errors.Is(err, ErrMissingOrganization):
		return "missing_organization"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid"
	default:
		return "error"
	}
}

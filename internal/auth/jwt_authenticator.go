// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/fleetpulse/internal/models"
)

// JWTAuthenticator implements Authenticator with signed JWTs.
type JWTAuthenticator struct {
	manager *JWTManager
}

// NewJWTAuthenticator creates a new JWT authenticator.
func NewJWTAuthenticator(manager *JWTManager) *JWTAuthenticator {
	return &JWTAuthenticator{manager: manager}
}

// Authenticate validates the token and returns the identity it carries.
func (a *JWTAuthenticator) Authenticate(_ context.Context, credential string) (*models.Subscriber, error) {
	if credential == "" {
		return nil, ErrNoCredentials
	}

	claims, err := a.manager.ValidateToken(credential)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredCredentials
		}
		return nil, ErrInvalidCredentials
	}

	sub := claims.Subscriber()
	if sub.OrganizationID == "" {
		return nil, ErrMissingOrganization
	}
	if err := sub.Validate(); err != nil {
		return nil, ErrInvalidCredentials
	}
	if sub.Role == "" {
		sub.Role = models.RoleViewer
	}
	return sub, nil
}

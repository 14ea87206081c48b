// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package models

import (
	"errors"
	"strings"
)

// ErrInvalidIdentity is returned when a subscriber identity lacks a user or organization.
var ErrInvalidIdentity = errors.New("invalid subscriber identity")

// Roles recognized by the authorization policy.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
	RoleDevice   = "device"
)

// Subscriber is the identity bound to a connection at handshake time.
// It never changes for the lifetime of the connection.
type Subscriber struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	Role           string `json:"role"`
}

// Validate reports ErrInvalidIdentity if the user or organization is blank.
func (s Subscriber) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return errors.Join(ErrInvalidIdentity, errors.New("user id is empty"))
	}
	if strings.TrimSpace(s.OrganizationID) == "" {
		return errors.Join(ErrInvalidIdentity, errors.New("organization id is empty"))
	}
	return nil
}

// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package devices

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/fleetpulse/internal/validation"
)

var (
	// ErrDeviceNotFound is returned when no record exists for a device id.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrOrganizationMismatch is returned when a write would move a device
	// to a different organization.
	ErrOrganizationMismatch = errors.New("device belongs to another organization")

	// ErrInvalidDevice is returned for records missing an id or organization.
	ErrInvalidDevice = errors.New("invalid device record")
)

// Device is the persisted record for one device.
type Device struct {
	ID             string            `json:"id" validate:"required,identifier"`
	OrganizationID string            `json:"organization_id" validate:"required,identifier"`
	Name           string            `json:"name,omitempty" validate:"max=256"`
	Status         string            `json:"status,omitempty" validate:"max=64"`
	Labels         map[string]string `json:"labels,omitempty"`
	LastSeen       time.Time         `json:"last_seen,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Validate checks the record against its struct tags. Ids must be
// identifiers, which keeps them free of the ':' used in index keys.
func (d *Device) Validate() error {
	if verr := validation.Struct(d); verr != nil {
		return errors.Join(ErrInvalidDevice, verr)
	}
	return nil
}

// Directory looks up and records device ownership.
type Directory interface {
	// Get returns the device or ErrDeviceNotFound.
	Get(ctx context.Context, deviceID string) (*Device, error)

	// Put creates or replaces a device. Moving a device to a different
	// organization fails with ErrOrganizationMismatch.
	Put(ctx context.Context, device *Device) error

	// Delete removes a device. Deleting a missing device is not an error.
	Delete(ctx context.Context, deviceID string) error

	// ListByOrganization returns all devices of an organization ordered by id.
	ListByOrganization(ctx context.Context, organizationID string) ([]*Device, error)

	// Touch records a heartbeat or status change for a known device.
	// Unknown devices are ignored.
	Touch(ctx context.Context, deviceID, status string, at time.Time) error
}

// OwnerOf returns the owning organization of deviceID, or "" when the device is unknown.
func OwnerOf(ctx context.Context, dir Directory, deviceID string) (string, error) {
	if lookup, ok := dir.(OwnerLookup); ok {
		return lookup.Owner(ctx, deviceID)
	}
	d, err := dir.Get(ctx, deviceID)
	if errors.Is(err, ErrDeviceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return d.OrganizationID, nil
}

// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package api

import (
	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetpulse/internal/models"
)

// HeartbeatRequest is the body of POST /api/v1/devices/{deviceID}/heartbeat.
// The body may be empty.
type HeartbeatRequest struct {
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StatusChangeRequest is the body of POST /api/v1/devices/{deviceID}/status.
// OldStatus defaults to the status recorded in the directory.
type StatusChangeRequest struct {
	OldStatus string          `json:"old_status,omitempty" validate:"max=64"`
	NewStatus string          `json:"new_status" validate:"required,max=64"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// DeviceErrorRequest is the body of POST /api/v1/devices/{deviceID}/error.
type DeviceErrorRequest struct {
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// BulkUpdateRequest is the body of POST /api/v1/devices/bulk.
type BulkUpdateRequest struct {
	DeviceIDs []string        `json:"device_ids" validate:"required,min=1,max=1000,dive,identifier"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NotificationRequest is the body of POST /api/v1/notifications.
type NotificationRequest struct {
	UserID  string           `json:"user_id" validate:"required,max=256"`
	Kind    models.EventKind `json:"kind,omitempty" validate:"omitempty,eventkind"`
	Payload json.RawMessage  `json:"payload,omitempty"`
}

// DeviceRequest is the body of PUT /api/v1/devices/{deviceID}.
type DeviceRequest struct {
	Name   string            `json:"name,omitempty" validate:"max=256"`
	Status string            `json:"status,omitempty" validate:"max=64"`
	Labels map[string]string `json:"labels,omitempty" validate:"max=64"`
}

// PublishedResponse is returned by every ingest endpoint.
type PublishedResponse struct {
	EventID string           `json:"event_id"`
	Kind    models.EventKind `json:"kind"`
}

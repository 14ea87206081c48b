// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package models

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// EventKind is the topic kind of an event.
type EventKind string

// Event kinds published by the device layer.
const (
	EventHeartbeat    EventKind = "heartbeat"
	EventStatusChange EventKind = "status_change"
	EventError        EventKind = "error"
	EventBulkUpdate   EventKind = "bulk_update"
	EventCustom       EventKind = "custom"
)

// Valid reports whether k is one of the known kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventHeartbeat, EventStatusChange, EventError, EventBulkUpdate, EventCustom:
		return true
	}
	return false
}

// Event is an immutable device state transition or organization notification.
//
// OrganizationID scopes delivery. DeviceID narrows a device event to one device;
// DeviceIDs lists the devices touched by a bulk update. TargetUserID turns the
// event into a direct notification routed through the user index.
type Event struct {
	ID             string
	Kind           EventKind
	OrganizationID string
	DeviceID       string
	DeviceIDs      []string
	TargetUserID   string
	OldStatus      string
	NewStatus      string
	Payload        json.RawMessage
	Timestamp      time.Time
}

// NewEvent creates an event with a fresh id and the current UTC time.
func NewEvent(kind EventKind, organizationID, deviceID string, payload json.RawMessage) *Event {
	return &Event{
		ID:             uuid.New().String(),
		Kind:           kind,
		OrganizationID: organizationID,
		DeviceID:       deviceID,
		Payload:        payload,
		Timestamp:      time.Now().UTC(),
	}
}

// IsDirect reports whether the event targets a single user.
func (e *Event) IsDirect() bool {
	return e.TargetUserID != ""
}

// IsDeviceScoped reports whether the event concerns exactly one device.
func (e *Event) IsDeviceScoped() bool {
	return e.DeviceID != ""
}

// Envelope converts the event to the message delivered to clients.
func (e *Event) Envelope() *Envelope {
	return &Envelope{
		Type:           string(e.Kind),
		EventID:        e.ID,
		OrganizationID: e.OrganizationID,
		DeviceID:       e.DeviceID,
		DeviceIDs:      e.DeviceIDs,
		OldStatus:      e.OldStatus,
		NewStatus:      e.NewStatus,
		Payload:        e.Payload,
		Timestamp:      e.Timestamp,
	}
}

// PayloadFromMap marshals a structured payload into a raw JSON blob.
func PayloadFromMap(m map[string]interface{}) (json.RawMessage, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

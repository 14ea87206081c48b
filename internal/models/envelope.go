// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Envelope types that are not event kinds.
const (
	MessageTypeConnected   = "connected"
	MessageTypeAck         = "ack"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypeError       = "error_reply"
)

// Envelope is the JSON message written to a client connection.
// Payload is forwarded byte-for-byte from the publisher.
type Envelope struct {
	Type           string          `json:"type"`
	EventID        string          `json:"event_id,omitempty"`
	OrganizationID string          `json:"organization_id,omitempty"`
	DeviceID       string          `json:"device_id,omitempty"`
	DeviceIDs      []string        `json:"device_ids,omitempty"`
	OldStatus      string          `json:"old_status,omitempty"`
	NewStatus      string          `json:"new_status,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Data           interface{}     `json:"data,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Marshal encodes the envelope.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ClientCommand is a message sent by a connected client.
type ClientCommand struct {
	Type      string   `json:"type"`
	DeviceIDs []string `json:"device_ids,omitempty"`
}

// Ack answers a subscribe or unsubscribe command.
type Ack struct {
	Action   string   `json:"action"`
	Accepted []string `json:"accepted"`
	Rejected []string `json:"rejected,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// Welcome is sent once right after a connection is registered.
type Welcome struct {
	ConnectionID   uint64 `json:"connection_id"`
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	Role           string `json:"role"`
}

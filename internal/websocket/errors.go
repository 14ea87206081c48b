// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package websocket

import "errors"

var (
	// ErrUnknownConnection is returned for operations on a connection id that
	// is not registered. Callers may ignore it.
	ErrUnknownConnection = errors.New("unknown connection")

	// ErrAlreadyRegistered is returned when a connection is registered twice.
	ErrAlreadyRegistered = errors.New("connection already registered")

	// ErrSubscriptionLimit is returned when a connection holds the maximum
	// number of device subscriptions.
	ErrSubscriptionLimit = errors.New("subscription limit reached")

	// ErrInvalidDeviceID is returned for an empty device id.
	ErrInvalidDeviceID = errors.New("invalid device id")

	// ErrQueueOverflow marks a connection removed because its outbound queue stayed full.
	ErrQueueOverflow = errors.New("outbound queue overflow")

	// ErrHubClosed is returned once the hub has shut down.
	ErrHubClosed = errors.New("hub closed")

	// ErrPublishQueueFull is returned when the hub cannot accept another event.
	ErrPublishQueueFull = errors.New("publish queue full")

	// ErrInvalidEvent is returned for events missing required fields.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrNATSConnectionClosed is returned by NATSBridge.Serve when the client
	// gives up reconnecting, so the supervisor restarts the bridge.
	ErrNATSConnectionClosed = errors.New("NATS connection closed")

	// ErrForbidden is returned when the subscriber's role does not allow the action.
	ErrForbidden = errors.New("forbidden")
)

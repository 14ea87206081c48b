// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

// Package models defines the data types shared between the realtime core,
// the authentication gate, and the HTTP layer.
//
//   - Event: a device state transition or organization notification handed to the hub
//   - Subscriber: the authenticated identity bound to one connection
//   - Envelope: the JSON message a connected client receives
//   - ClientCommand / Ack: the messages a client sends and the replies it gets
//   - APIResponse: the HTTP response envelope
package models

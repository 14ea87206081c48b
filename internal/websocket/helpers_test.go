// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package websocket

import (
	"io"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetpulse/internal/logging"
	"github.com/tomtom215/fleetpulse/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "error",
		Format: "console",
		Output: io.Discard,
	})
}

// registerTestConn registers an in-process connection (no transport).
func registerTestConn(t *testing.T, r *Registry, userID, orgID string, bufferSize int) *Connection {
	t.Helper()
	conn := NewConnection(nil, ConnectionConfig{SendBufferSize: bufferSize})
	if _, err := r.Register(models.Subscriber{UserID: userID, OrganizationID: orgID, Role: models.RoleViewer}, conn); err != nil {
		t.Fatalf("Register(%s/%s) error = %v", orgID, userID, err)
	}
	return conn
}

// drain reads every queued message without blocking.
func drain(t *testing.T, conn *Connection) []models.Envelope {
	t.Helper()
	var out []models.Envelope
	for {
		select {
		case msg, ok := <-conn.Queue():
			if !ok {
				return out
			}
			var env models.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				t.Fatalf("queued message is not an envelope: %v", err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

// receive waits for one message on conn.
func receive(t *testing.T, conn *Connection, timeout time.Duration) models.Envelope {
	t.Helper()
	select {
	case msg, ok := <-conn.Queue():
		if !ok {
			t.Fatal("queue closed while waiting for a message")
		}
		var env models.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			t.Fatalf("queued message is not an envelope: %v", err)
		}
		return env
	case <-time.After(timeout):
		t.Fatalf("no message within %v", timeout)
	}
	return models.Envelope{}
}

func checkInvariants(t *testing.T, r *Registry) {
	t.Helper()
	if err := r.CheckInvariants(); err != nil {
		t.Fatalf("CheckInvariants() = %v", err)
	}
}

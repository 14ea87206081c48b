// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package websocket

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/tomtom215/fleetpulse/internal/models"
)

func TestRegistry_RegisterIndexes(t *testing.T) {
	r := NewRegistry(0)
	a := registerTestConn(t, r, "alice", "techcorp", 8)
	b := registerTestConn(t, r, "alice", "techcorp", 8)
	c := registerTestConn(t, r, "bob", "innovatelab", 8)

	if a.ID() != 1 || b.ID() != 2 || c.ID() != 3 {
		t.Errorf("ids = %d,%d,%d, want 1,2,3", a.ID(), b.ID(), c.ID())
	}

	tests := []struct {
		name string
		got  []ConnectionID
		want []ConnectionID
	}{
		{"techcorp", r.ConnectionsForOrganization("techcorp"), []ConnectionID{1, 2}},
		{"innovatelab", r.ConnectionsForOrganization("innovatelab"), []ConnectionID{3}},
		{"unknown org", r.ConnectionsForOrganization("nobody"), []ConnectionID{}},
		{"alice", r.ConnectionsForUser("alice"), []ConnectionID{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if fmt.Sprint(tt.got) != fmt.Sprint(tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
	checkInvariants(t, r)
}

func TestRegistry_RegisterRejectsInvalidIdentity(t *testing.T) {
	r := NewRegistry(0)
	tests := []struct {
		name string
		sub  models.Subscriber
	}{
		{"missing user", models.Subscriber{OrganizationID: "techcorp"}},
		{"missing org", models.Subscriber{UserID: "alice"}},
		{"blank org", models.Subscriber{UserID: "alice", OrganizationID: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Register(tt.sub, NewConnection(nil, ConnectionConfig{}))
			if !errors.Is(err, models.ErrInvalidIdentity) {
				t.Errorf("Register() error = %v, want ErrInvalidIdentity", err)
			}
		})
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d after rejected registrations", r.Count())
	}
}

func TestRegistry_RegisterTwice(t *testing.T) {
	r := NewRegistry(0)
	conn := registerTestConn(t, r, "alice", "techcorp", 8)
	if _, err := r.Register(models.Subscriber{UserID: "alice", OrganizationID: "techcorp"}, conn); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("second Register() error = %v, want ErrAlreadyRegistered", err)
	}
}

func TestRegistry_UnregisterIdempotent(t *testing.T) {
	r := NewRegistry(0)
	conn := registerTestConn(t, r, "alice", "techcorp", 8)
	if err := r.Subscribe(conn.ID(), "sensor-1"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if !r.Unregister(conn.ID()) {
		t.Error("first Unregister() = false, want true")
	}
	if r.Unregister(conn.ID()) {
		t.Error("second Unregister() = true, want false")
	}

	if ids := r.ConnectionsForOrganization("techcorp"); len(ids) != 0 {
		t.Errorf("organization index = %v after Unregister", ids)
	}
	if ids := r.ConnectionsForDevice("sensor-1"); len(ids) != 0 {
		t.Errorf("device index = %v after Unregister", ids)
	}
	if ids := r.ConnectionsForUser("alice"); len(ids) != 0 {
		t.Errorf("user index = %v after Unregister", ids)
	}
	if conn.Live() {
		t.Error("connection still live after Unregister")
	}
	if _, ok := <-conn.Queue(); ok {
		t.Error("queue not closed after Unregister")
	}
	if got := r.Stats().Subscriptions; got != 0 {
		t.Errorf("Stats().Subscriptions = %d, want 0", got)
	}
	checkInvariants(t, r)
}

func TestRegistry_SubscribeUnsubscribe(t *testing.T) {
	r := NewRegistry(2)
	conn := registerTestConn(t, r, "alice", "techcorp", 8)
	id := conn.ID()

	tests := []struct {
		name    string
		op      func() error
		wantErr error
	}{
		{"subscribe", func() error { return r.Subscribe(id, "x") }, nil},
		{"subscribe again is no-op", func() error { return r.Subscribe(id, "x") }, nil},
		{"second device", func() error { return r.Subscribe(id, "y") }, nil},
		{"over limit", func() error { return r.Subscribe(id, "z") }, ErrSubscriptionLimit},
		{"empty device", func() error { return r.Subscribe(id, "") }, ErrInvalidDeviceID},
		{"unknown connection", func() error { return r.Subscribe(999, "x") }, ErrUnknownConnection},
		{"unsubscribe", func() error { return r.Unsubscribe(id, "x") }, nil},
		{"unsubscribe absent", func() error { return r.Unsubscribe(id, "x") }, nil},
		{"unsubscribe unknown connection", func() error { return r.Unsubscribe(999, "x") }, ErrUnknownConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.op(); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			checkInvariants(t, r)
		})
	}

	devices, err := r.Subscriptions(id)
	if err != nil {
		t.Fatalf("Subscriptions() error = %v", err)
	}
	if fmt.Sprint(devices) != "[y]" {
		t.Errorf("Subscriptions() = %v, want [y]", devices)
	}
	if got := r.ConnectionsForDevice("x"); len(got) != 0 {
		t.Errorf("ConnectionsForDevice(x) = %v, want empty", got)
	}
}

func TestRegistry_Stats(t *testing.T) {
	r := NewRegistry(0)
	a := registerTestConn(t, r, "alice", "techcorp", 8)
	registerTestConn(t, r, "bob", "techcorp", 8)
	registerTestConn(t, r, "carol", "innovatelab", 8)
	_ = r.Subscribe(a.ID(), "x")
	_ = r.Subscribe(a.ID(), "y")

	s := r.Stats()
	if s.Connections != 3 || s.Users != 3 || s.Devices != 2 || s.Subscriptions != 2 {
		t.Errorf("Stats() = %+v", s)
	}
	if s.Organizations["techcorp"] != 2 || s.Organizations["innovatelab"] != 1 {
		t.Errorf("Stats().Organizations = %v", s.Organizations)
	}
}

func TestRegistry_ConcurrentChurn(t *testing.T) {
	r := NewRegistry(0)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			org := fmt.Sprintf("org-%d", i%3)
			for j := 0; j < 50; j++ {
				conn := NewConnection(nil, ConnectionConfig{SendBufferSize: 1})
				id, err := r.Register(models.Subscriber{UserID: fmt.Sprintf("u%d", i), OrganizationID: org}, conn)
				if err != nil {
					t.Errorf("Register() error = %v", err)
					return
				}
				_ = r.Subscribe(id, fmt.Sprintf("dev-%d", j%5))
				_ = r.ConnectionsForOrganization(org)
				if j%2 == 0 {
					r.Unregister(id)
					r.Unregister(id)
				}
			}
		}(i)
	}
	wg.Wait()

	if got := r.Count(); got != 20*25 {
		t.Errorf("Count() = %d, want %d", got, 20*25)
	}
	checkInvariants(t, r)

	if closed := r.closeAll("shutdown"); closed != 20*25 {
		t.Errorf("closeAll() = %d, want %d", closed, 20*25)
	}
	checkInvariants(t, r)
	if s := r.Stats(); s.Connections != 0 || s.Subscriptions != 0 || len(s.Organizations) != 0 {
		t.Errorf("Stats() after closeAll = %+v", s)
	}
}

func TestRegistry_OrgStats(t *testing.T) {
	r := NewRegistry(0)
	a1 := registerTestConn(t, r, "alice", "techcorp", 8)
	a2 := registerTestConn(t, r, "alice", "techcorp", 8)
	registerTestConn(t, r, "olivia", "techcorp", 8)
	c := registerTestConn(t, r, "carol", "innovatelab", 8)
	registerTestConn(t, r, "dave", "innovatelab", 8)
	_ = r.Subscribe(a1.ID(), "x")
	_ = r.Subscribe(a2.ID(), "x")
	_ = r.Subscribe(a2.ID(), "y")
	_ = r.Subscribe(c.ID(), "z")

	tests := []struct {
		org  string
		want OrgStats
	}{
		{"techcorp", OrgStats{Connections: 3, Users: 2, Devices: 2, Subscriptions: 3}},
		{"innovatelab", OrgStats{Connections: 2, Users: 2, Devices: 1, Subscriptions: 1}},
		{"nobody", OrgStats{}},
	}
	for _, tt := range tests {
		t.Run(tt.org, func(t *testing.T) {
			if got := r.OrgStats(tt.org); got != tt.want {
				t.Errorf("OrgStats(%q) = %+v, want %+v", tt.org, got, tt.want)
			}
		})
	}
}

func TestRegistry_RegisterAfterClose(t *testing.T) {
	r := NewRegistry(0)
	registerTestConn(t, r, "alice", "techcorp", 8)
	if closed := r.closeAll("shutdown"); closed != 1 {
		t.Fatalf("closeAll() = %d, want 1", closed)
	}

	conn := NewConnection(nil, ConnectionConfig{SendBufferSize: 1})
	sub := models.Subscriber{UserID: "bob", OrganizationID: "techcorp", Role: models.RoleViewer}
	if _, err := r.Register(sub, conn); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("Register() after closeAll error = %v, want ErrHubClosed", err)
	}
	if r.Count() != 0 || conn.ID() != 0 {
		t.Errorf("closed registry accepted connection: count=%d id=%d", r.Count(), conn.ID())
	}

	r.reopen()
	if _, err := r.Register(sub, conn); err != nil {
		t.Fatalf("Register() after reopen error = %v", err)
	}
	checkInvariants(t, r)
}

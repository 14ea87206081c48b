// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package websocket

import (
	"fmt"
	"testing"

	"github.com/tomtom215/fleetpulse/internal/models"
)

func routedIDs(conns []*Connection) string {
	ids := make([]ConnectionID, 0, len(conns))
	for _, c := range conns {
		ids = append(ids, c.ID())
	}
	return fmt.Sprint(ids)
}

func TestRouter_Route(t *testing.T) {
	r := NewRegistry(0)
	a := registerTestConn(t, r, "alice", "techcorp", 8)    // 1
	b := registerTestConn(t, r, "bob", "techcorp", 8)      // 2
	c := registerTestConn(t, r, "carol", "innovatelab", 8) // 3
	_ = b

	// a watches x; c watches x from another organization.
	if err := r.Subscribe(a.ID(), "x"); err != nil {
		t.Fatal(err)
	}
	if err := r.Subscribe(c.ID(), "x"); err != nil {
		t.Fatal(err)
	}

	device := func(org, dev string) *models.Event {
		return models.NewEvent(models.EventStatusChange, org, dev, nil)
	}
	direct := func(org, user string) *models.Event {
		e := models.NewEvent(models.EventCustom, org, "", nil)
		e.TargetUserID = user
		return e
	}

	tests := []struct {
		name    string
		orgWide bool
		event   *models.Event
		want    string
	}{
		{"org-wide device event reaches members once", true, device("techcorp", "x"), "[1 2]"},
		{"org boundary dominates subscription", true, device("innovatelab", "x"), "[3]"},
		{"subscribers only", false, device("techcorp", "x"), "[1]"},
		{"subscribers only, unwatched device", false, device("techcorp", "y"), "[]"},
		{"organization event ignores toggle", false, models.NewEvent(models.EventBulkUpdate, "techcorp", "", nil), "[1 2]"},
		{"missing organization", true, device("", "x"), "[]"},
		{"unknown organization", true, device("ghost", "x"), "[]"},
		{"direct notification", true, direct("techcorp", "bob"), "[2]"},
		{"direct notification across orgs", true, direct("innovatelab", "bob"), "[]"},
		{"nil event", true, nil, "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewRouter(r, tt.orgWide).Route(tt.event)
			if routedIDs(got) != tt.want {
				t.Errorf("Route() = %s, want %s", routedIDs(got), tt.want)
			}
		})
	}
}

func TestRouter_NeverCrossesOrganizations(t *testing.T) {
	r := NewRegistry(0)
	for i := 0; i < 30; i++ {
		org := fmt.Sprintf("org-%d", i%3)
		conn := registerTestConn(t, r, fmt.Sprintf("u%d", i), org, 4)
		// Everyone watches every device, whichever organization owns it.
		for d := 0; d < 3; d++ {
			_ = r.Subscribe(conn.ID(), fmt.Sprintf("dev-%d", d))
		}
	}

	for _, orgWide := range []bool{true, false} {
		router := NewRouter(r, orgWide)
		for o := 0; o < 3; o++ {
			org := fmt.Sprintf("org-%d", o)
			for d := 0; d < 3; d++ {
				e := models.NewEvent(models.EventHeartbeat, org, fmt.Sprintf("dev-%d", d), nil)
				targets := router.Route(e)
				if len(targets) != 10 {
					t.Errorf("orgWide=%v %s: %d targets, want 10", orgWide, org, len(targets))
				}
				for _, c := range targets {
					if c.Identity().OrganizationID != org {
						t.Errorf("event for %s routed to connection of %s", org, c.Identity().OrganizationID)
					}
				}
			}
		}
	}
}

// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package authz

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/fleetpulse/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

func newTestEnforcer(t *testing.T, cfg *EnforcerConfig) *Enforcer {
	t.Helper()
	e, err := NewEnforcer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestEnforcer_EmbeddedPolicy(t *testing.T) {
	e := newTestEnforcer(t, DefaultEnforcerConfig())

	tests := []struct {
		role, object, action string
		want                 bool
	}{
		{"viewer", ObjectRealtime, ActionConnect, true},
		{"viewer", ObjectRealtime, ActionSubscribe, true},
		{"viewer", ObjectDevices, ActionRead, true},
		{"viewer", ObjectDevices, ActionWrite, false},
		{"viewer", ObjectEvents, ActionPublish, false},
		{"viewer", ObjectStats, ActionRead, false},

		{"operator", ObjectRealtime, ActionConnect, true},
		{"operator", ObjectDevices, ActionWrite, true},
		{"operator", ObjectEvents, ActionPublish, true},
		{"operator", ObjectDevices, ActionDelete, false},
		{"operator", ObjectNotifications, ActionPublish, false},

		{"admin", ObjectRealtime, ActionConnect, true},
		{"admin", ObjectEvents, ActionPublish, true},
		{"admin", ObjectDevices, ActionDelete, true},
		{"admin", ObjectNotifications, ActionPublish, true},
		{"admin", ObjectStats, ActionRead, true},

		{"device", ObjectEvents, ActionPublish, true},
		{"device", ObjectRealtime, ActionConnect, false},

		{"stranger", ObjectRealtime, ActionConnect, false},

		// Empty role falls back to the default role
		{"", ObjectRealtime, ActionConnect, true},
		{"", ObjectEvents, ActionPublish, false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.object+"/"+tt.action, func(t *testing.T) {
			got, err := e.Enforce(tt.role, tt.object, tt.action)
			if err != nil {
				t.Fatalf("Enforce() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Enforce(%q, %q, %q) = %v, want %v", tt.role, tt.object, tt.action, got, tt.want)
			}
		})
	}
}

func TestEnforcer_CachesDecisions(t *testing.T) {
	e := newTestEnforcer(t, &EnforcerConfig{CacheEnabled: true, CacheTTL: time.Minute})

	for i := 0; i < 2; i++ {
		if allowed, _ := e.Enforce("viewer", ObjectStats, ActionRead); allowed {
			t.Fatal("viewer should not read stats by default")
		}
	}
	if n := e.cache.len(); n != 1 {
		t.Errorf("cached decisions = %d, want 1", n)
	}
}

func TestEnforcer_PolicyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.csv")
	policy := "p, viewer, realtime, connect\np, auditor, stats, *\n"
	if err := os.WriteFile(path, []byte(policy), 0o600); err != nil {
		t.Fatal(err)
	}

	e := newTestEnforcer(t, &EnforcerConfig{PolicyPath: path})

	if allowed, _ := e.Enforce("auditor", ObjectStats, ActionRead); !allowed {
		t.Error("auditor should read stats through the wildcard action")
	}
	if allowed, _ := e.Enforce("admin", ObjectStats, ActionRead); allowed {
		t.Error("admin has no rules in the file policy")
	}
}

func TestEnforcementCache_Expiry(t *testing.T) {
	c := newEnforcementCache(time.Minute)
	defer c.stop()

	c.set("viewer", "devices", "read", true)
	if allowed, ok := c.get("viewer", "devices", "read"); !ok || !allowed {
		t.Fatalf("get() = %v, %v; want true, true", allowed, ok)
	}

	c.mu.Lock()
	k := decisionKey{"viewer", "devices", "read"}
	d := c.items[k]
	d.expiresAt = time.Now().Add(-time.Second)
	c.items[k] = d
	c.mu.Unlock()

	if _, ok := c.get("viewer", "devices", "read"); ok {
		t.Error("expired decision should miss")
	}

	c.stop()
	c.stop() // idempotent
}

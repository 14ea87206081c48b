// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package devices

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/tomtom215/fleetpulse/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

func newTestDirectory(t *testing.T) *BadgerDirectory {
	t.Helper()
	d, err := OpenBadger(Options{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestBadgerDirectory_PutGet(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)

	if err := d.Put(ctx, &Device{ID: "dev-1", OrganizationID: "techcorp", Name: "Pump 1"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := d.Get(ctx, "dev-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.OrganizationID != "techcorp" || got.Name != "Pump 1" {
		t.Errorf("Get() = %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}

	if _, err := d.Get(ctx, "missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestBadgerDirectory_PutValidation(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)

	tests := []struct {
		name    string
		device  *Device
		wantErr error
	}{
		{"missing id", &Device{OrganizationID: "techcorp"}, ErrInvalidDevice},
		{"missing org", &Device{ID: "dev-1"}, ErrInvalidDevice},
		{"colon in org", &Device{ID: "dev-1", OrganizationID: "a:b"}, ErrInvalidDevice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := d.Put(ctx, tt.device); !errors.Is(err, tt.wantErr) {
				t.Errorf("Put() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBadgerDirectory_OrganizationMismatch(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)

	if err := d.Put(ctx, &Device{ID: "dev-1", OrganizationID: "techcorp"}); err != nil {
		t.Fatal(err)
	}
	err := d.Put(ctx, &Device{ID: "dev-1", OrganizationID: "innovatelab"})
	if !errors.Is(err, ErrOrganizationMismatch) {
		t.Errorf("Put() error = %v, want ErrOrganizationMismatch", err)
	}

	owner, err := OwnerOf(ctx, d, "dev-1")
	if err != nil || owner != "techcorp" {
		t.Errorf("OwnerOf() = %q, %v; want techcorp", owner, err)
	}
	owner, err = OwnerOf(ctx, d, "unknown")
	if err != nil || owner != "" {
		t.Errorf("OwnerOf(unknown) = %q, %v; want empty", owner, err)
	}
}

func TestBadgerDirectory_ListByOrganization(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)

	devices := []*Device{
		{ID: "a", OrganizationID: "tech"},
		{ID: "b", OrganizationID: "tech"},
		{ID: "c", OrganizationID: "techcorp"},
		{ID: "d", OrganizationID: "innovatelab"},
	}
	for _, dev := range devices {
		if err := d.Put(ctx, dev); err != nil {
			t.Fatal(err)
		}
	}

	got, err := d.ListByOrganization(ctx, "tech")
	if err != nil {
		t.Fatalf("ListByOrganization() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		ids := make([]string, len(got))
		for i, dev := range got {
			ids[i] = dev.ID
		}
		t.Errorf("ListByOrganization(tech) = %v, want [a b]", ids)
	}

	if err := d.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := d.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() twice error = %v", err)
	}
	got, _ = d.ListByOrganization(ctx, "tech")
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("after delete got %d devices", len(got))
	}
}

func TestBadgerDirectory_Touch(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)

	if err := d.Put(ctx, &Device{ID: "dev-1", OrganizationID: "techcorp", Status: "offline"}); err != nil {
		t.Fatal(err)
	}

	seen := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	if err := d.Touch(ctx, "dev-1", "online", seen); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	// Older timestamps never move LastSeen backwards
	if err := d.Touch(ctx, "dev-1", "", seen.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	got, err := d.Get(ctx, "dev-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "online" {
		t.Errorf("Status = %q, want online", got.Status)
	}
	if !got.LastSeen.Equal(seen) {
		t.Errorf("LastSeen = %v, want %v", got.LastSeen, seen)
	}

	// Unknown devices are ignored
	if err := d.Touch(ctx, "ghost", "online", seen); err != nil {
		t.Errorf("Touch(unknown) error = %v", err)
	}
	if _, err := d.Get(ctx, "ghost"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Touch must not create devices, Get() error = %v", err)
	}
}

// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package devices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetpulse/internal/logging"
	"github.com/tomtom215/fleetpulse/internal/metrics"
)

// Key prefixes for BadgerDB storage
const (
	deviceKeyPrefix    = "device:"
	orgDeviceKeyPrefix = "org_device:"
)

// BadgerDirectory implements Directory on BadgerDB.
type BadgerDirectory struct {
	db     *badger.DB
	ownsDB bool
	now    func() time.Time
}

// Options configures OpenBadger.
type Options struct {
	Path     string
	InMemory bool
}

// OpenBadger opens a BadgerDB at opts.Path, or in memory, and wraps it.
// Close releases the database.
func OpenBadger(opts Options) (*BadgerDirectory, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts = bopts.WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open device directory: %w", err)
	}
	d := NewBadgerDirectory(db)
	d.ownsDB = true

	logging.Info().
		Str("path", opts.Path).
		Bool("in_memory", opts.InMemory).
		Msg("Device directory opened")
	return d, nil
}

// NewBadgerDirectory wraps an already-open database.
func NewBadgerDirectory(db *badger.DB) *BadgerDirectory {
	return &BadgerDirectory{db: db, now: time.Now}
}

// Close closes the database if OpenBadger opened it.
func (s *BadgerDirectory) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

func deviceKey(id string) []byte {
	return []byte(deviceKeyPrefix + id)
}

func orgDeviceKey(orgID, id string) []byte {
	return []byte(orgDeviceKeyPrefix + orgID + ":" + id)
}

func getDevice(txn *badger.Txn, id string) (*Device, error) {
	item, err := txn.Get(deviceKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}

	var d Device
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &d)
	}); err != nil {
		return nil, fmt.Errorf("decode device: %w", err)
	}
	return &d, nil
}

func putDevice(txn *badger.Txn, d *Device) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal device: %w", err)
	}
	if err := txn.Set(deviceKey(d.ID), data); err != nil {
		return fmt.Errorf("set device: %w", err)
	}
	if err := txn.Set(orgDeviceKey(d.OrganizationID, d.ID), []byte(d.ID)); err != nil {
		return fmt.Errorf("set organization mapping: %w", err)
	}
	return nil
}

// Get returns a device by id.
func (s *BadgerDirectory) Get(_ context.Context, deviceID string) (*Device, error) {
	var d *Device
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		d, err = getDevice(txn, deviceID)
		return err
	})
	metrics.RecordDirectoryOperation("get", ignoreNotFound(err))
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Put creates or replaces a device.
func (s *BadgerDirectory) Put(_ context.Context, device *Device) error {
	if err := device.Validate(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		now := s.now().UTC()
		existing, err := getDevice(txn, device.ID)
		switch {
		case errors.Is(err, ErrDeviceNotFound):
			device.CreatedAt = now
		case err != nil:
			return err
		case existing.OrganizationID != device.OrganizationID:
			return ErrOrganizationMismatch
		default:
			device.CreatedAt = existing.CreatedAt
			if device.LastSeen.IsZero() {
				device.LastSeen = existing.LastSeen
			}
		}
		device.UpdatedAt = now
		return putDevice(txn, device)
	})
	metrics.RecordDirectoryOperation("put", err)
	return err
}

// Delete removes a device and its organization mapping.
func (s *BadgerDirectory) Delete(_ context.Context, deviceID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := getDevice(txn, deviceID)
		if errors.Is(err, ErrDeviceNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(deviceKey(deviceID)); err != nil {
			return fmt.Errorf("delete device: %w", err)
		}
		if err := txn.Delete(orgDeviceKey(existing.OrganizationID, deviceID)); err != nil {
			return fmt.Errorf("delete organization mapping: %w", err)
		}
		return nil
	})
	metrics.RecordDirectoryOperation("delete", err)
	return err
}

// ListByOrganization scans the organization prefix.
func (s *BadgerDirectory) ListByOrganization(_ context.Context, organizationID string) ([]*Device, error) {
	var result []*Device
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(orgDeviceKeyPrefix + organizationID + ":")
		var ids []string
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			}); err != nil {
				return err
			}
		}

		result = make([]*Device, 0, len(ids))
		for _, id := range ids {
			d, err := getDevice(txn, id)
			if errors.Is(err, ErrDeviceNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			result = append(result, d)
		}
		return nil
	})
	metrics.RecordDirectoryOperation("list", err)
	if err != nil {
		return nil, fmt.Errorf("list organization devices: %w", err)
	}
	return result, nil
}

// Touch updates LastSeen and, when non-empty, Status of a known device.
func (s *BadgerDirectory) Touch(_ context.Context, deviceID, status string, at time.Time) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		d, err := getDevice(txn, deviceID)
		if errors.Is(err, ErrDeviceNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if at.After(d.LastSeen) {
			d.LastSeen = at.UTC()
		}
		if status != "" {
			d.Status = status
		}
		d.UpdatedAt = s.now().UTC()
		return putDevice(txn, d)
	})
	metrics.RecordDirectoryOperation("touch", err)
	return err
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrDeviceNotFound) {
		return nil
	}
	return err
}

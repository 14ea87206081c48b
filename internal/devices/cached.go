// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package devices

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/fleetpulse/internal/cache"
	"github.com/tomtom215/fleetpulse/internal/metrics"
)

// OwnerLookup is implemented by directories that answer ownership queries
// without loading the full record. OwnerOf prefers it when available.
type OwnerLookup interface {
	Owner(ctx context.Context, deviceID string) (string, error)
}

// CachedDirectory fronts a Directory with an LRU of device ownership.
// Subscribe and bulk-update checks resolve the owner of many devices per
// request; records themselves are always read from the underlying store.
//
// Unknown devices are not cached, so a device registered after a failed
// lookup is visible immediately. Put and Delete invalidate the entry.
//
// gen counts writes. It is bumped before and after every Put and Delete, and
// a lookup caches its result only if gen did not move while it read the
// store, so a write racing a miss cannot leave a stale owner behind.
type CachedDirectory struct {
	Directory
	owners *cache.LRU[string]

	mu  sync.Mutex
	gen uint64
}

// NewCachedDirectory wraps dir with an ownership cache of the given size and TTL.
func NewCachedDirectory(dir Directory, size int, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{
		Directory: dir,
		owners:    cache.New[string](size, ttl),
	}
}

// Owner returns the owning organization of deviceID, or "" when unknown.
func (c *CachedDirectory) Owner(ctx context.Context, deviceID string) (string, error) {
	if org, ok := c.owners.Get(deviceID); ok {
		metrics.RecordDirectoryCacheLookup(true)
		return org, nil
	}
	metrics.RecordDirectoryCacheLookup(false)

	gen := c.generation()
	d, err := c.Directory.Get(ctx, deviceID)
	if errors.Is(err, ErrDeviceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.gen == gen {
		c.owners.Add(deviceID, d.OrganizationID)
	}
	c.mu.Unlock()
	return d.OrganizationID, nil
}

// Put writes through and drops the cached owner.
func (c *CachedDirectory) Put(ctx context.Context, device *Device) error {
	c.bump("")
	err := c.Directory.Put(ctx, device)
	c.bump(device.ID)
	return err
}

// Delete writes through and drops the cached owner.
func (c *CachedDirectory) Delete(ctx context.Context, deviceID string) error {
	c.bump("")
	err := c.Directory.Delete(ctx, deviceID)
	c.bump(deviceID)
	return err
}

func (c *CachedDirectory) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// bump advances gen and, when deviceID is set, evicts it in the same
// critical section as the check in Owner.
func (c *CachedDirectory) bump(deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if deviceID != "" {
		c.owners.Remove(deviceID)
	}
}

// CleanupExpired drops expired owners and returns how many were removed.
func (c *CachedDirectory) CleanupExpired() int {
	return c.owners.CleanupExpired()
}

// Stats reports cache hits, misses and size.
func (c *CachedDirectory) Stats() (hits, misses int64, size int) {
	return c.owners.Stats()
}

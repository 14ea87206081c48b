// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package services

import (
	"context"
	"time"

	"github.com/tomtom215/fleetpulse/internal/logging"
)

// ExpiringCache is satisfied by *devices.CachedDirectory.
type ExpiringCache interface {
	CleanupExpired() int
}

// CacheJanitor sweeps expired entries from a TTL cache on a fixed interval.
// Expired entries are otherwise only dropped when looked up again, so a
// cache of devices that are never queried twice would hold them until
// evicted by size.
type CacheJanitor struct {
	cache    ExpiringCache
	interval time.Duration
	name     string
}

// NewCacheJanitor creates the wrapper. A non-positive interval defaults to one minute.
func NewCacheJanitor(name string, cache ExpiringCache, interval time.Duration) *CacheJanitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &CacheJanitor{
		cache:    cache,
		interval: interval,
		name:     name + "-janitor",
	}
}

// Serve implements suture.Service.
func (s *CacheJanitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log := logging.WithComponent(s.name)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := s.cache.CleanupExpired(); removed > 0 {
				log.Debug().Int("removed", removed).Msg("expired cache entries swept")
			}
		}
	}
}

// String implements fmt.Stringer.
func (s *CacheJanitor) String() string {
	return s.name
}

// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

// Package devices stores device ownership and last-known status.
//
// The directory answers one question for the realtime layer: which
// organization owns a device. Subscribe requests for a device registered to
// another organization are rejected; unknown devices are allowed so that
// fleets work without pre-registration.
//
// BadgerDirectory keeps records under two key families:
//
//	device:<device_id>            -> JSON Device
//	org_device:<org_id>:<device>  -> device_id
//
// The second family makes ListByOrganization a prefix scan.
//
// CachedDirectory wraps any Directory with an LRU of known owners, which
// OwnerOf consults before touching the store.
package devices

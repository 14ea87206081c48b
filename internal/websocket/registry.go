// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package websocket

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/fleetpulse/internal/logging"
	"github.com/tomtom215/fleetpulse/internal/metrics"
	"github.com/tomtom215/fleetpulse/internal/models"
)

type connSet map[ConnectionID]*Connection

// Registry is the authoritative store of live connections.
//
// All four indices (by id, organization, user and device subscription) are
// mutated together under one lock, so a reader never observes a connection
// that is half added or half removed. Publishes vastly outnumber
// subscription churn, so reads take the shared side of an RWMutex.
type Registry struct {
	mu       sync.RWMutex
	byID     connSet
	byOrg    map[string]connSet
	byUser   map[string]connSet
	byDevice map[string]connSet

	nextID           ConnectionID
	subscriptions    int
	maxSubscriptions int

	log zerolog.Logger

	// closed is set by closeAll and cleared by reopen. Register fails while set.
	closed bool
}

// NewRegistry creates an empty registry. maxSubscriptions caps device
// subscriptions per connection; zero or less means unlimited.
func NewRegistry(maxSubscriptions int) *Registry {
	return &Registry{
		byID:             make(connSet),
		byOrg:            make(map[string]connSet),
		byUser:           make(map[string]connSet),
		byDevice:         make(map[string]connSet),
		maxSubscriptions: maxSubscriptions,
		log:              logging.WithComponent("websocket-registry"),
	}
}

// Register binds identity to conn, allocates a connection id and inserts the
// connection into the organization and user indices. It never authenticates;
// callers must do that first. ErrHubClosed is returned once the hub has
// shut down.
func (r *Registry) Register(identity models.Subscriber, conn *Connection) (ConnectionID, error) {
	return r.register(identity, conn, nil)
}

// register is Register with an admit hook. admit runs under the write lock
// after the id is assigned and before the connection is indexed, so nothing
// routed to the connection can be enqueued ahead of what admit enqueues.
func (r *Registry) register(identity models.Subscriber, conn *Connection, admit func(*Connection)) (ConnectionID, error) {
	if err := identity.Validate(); err != nil {
		return 0, err
	}
	if conn == nil {
		return 0, fmt.Errorf("register: nil connection")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, ErrHubClosed
	}
	if conn.id != 0 {
		r.mu.Unlock()
		return 0, ErrAlreadyRegistered
	}
	r.nextID++
	conn.id = r.nextID
	conn.identity = identity
	if admit != nil {
		admit(conn)
	}
	r.byID[conn.id] = conn
	addTo(r.byOrg, identity.OrganizationID, conn)
	addTo(r.byUser, identity.UserID, conn)
	total := len(r.byID)
	r.mu.Unlock()

	metrics.RecordConnectionOpened(identity.Role)
	r.log.Debug().
		Uint64("connection_id", uint64(conn.id)).
		Str("organization_id", identity.OrganizationID).
		Str("user_id", logging.SanitizeUserID(identity.UserID)).
		Int("total_connections", total).
		Msg("connection registered")
	return conn.id, nil
}

// Unregister removes the connection from every index and closes its
// outbound queue. It is idempotent and reports whether this call removed it.
func (r *Registry) Unregister(id ConnectionID) bool {
	return r.unregister(id, metrics.DisconnectClient)
}

func (r *Registry) unregister(id ConnectionID, reason string) bool {
	r.mu.Lock()
	conn, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.byID, id)
	removeFrom(r.byOrg, conn.identity.OrganizationID, id)
	removeFrom(r.byUser, conn.identity.UserID, id)
	for device := range conn.devices {
		removeFrom(r.byDevice, device, id)
	}
	r.subscriptions -= len(conn.devices)
	conn.devices = make(map[string]struct{})
	subs := r.subscriptions
	total := len(r.byID)
	r.mu.Unlock()

	conn.closeQueue()
	metrics.RecordDisconnect(reason)
	metrics.UpdateSubscriptions(subs)
	r.log.Debug().
		Uint64("connection_id", uint64(id)).
		Str("organization_id", conn.identity.OrganizationID).
		Str("reason", reason).
		Int("total_connections", total).
		Msg("connection unregistered")
	return true
}

// Subscribe records interest of connection id in deviceID. Subscribing twice
// is a no-op. ErrUnknownConnection is returned for a vanished connection.
func (r *Registry) Subscribe(id ConnectionID, deviceID string) error {
	if deviceID == "" {
		return ErrInvalidDeviceID
	}
	r.mu.Lock()
	conn, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownConnection
	}
	if _, exists := conn.devices[deviceID]; exists {
		r.mu.Unlock()
		return nil
	}
	if r.maxSubscriptions > 0 && len(conn.devices) >= r.maxSubscriptions {
		r.mu.Unlock()
		return ErrSubscriptionLimit
	}
	conn.devices[deviceID] = struct{}{}
	addTo(r.byDevice, deviceID, conn)
	r.subscriptions++
	subs := r.subscriptions
	r.mu.Unlock()

	metrics.UpdateSubscriptions(subs)
	return nil
}

// Unsubscribe removes the (id, deviceID) entry. A missing entry is a no-op;
// ErrUnknownConnection is returned for a vanished connection.
func (r *Registry) Unsubscribe(id ConnectionID, deviceID string) error {
	r.mu.Lock()
	conn, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownConnection
	}
	if _, exists := conn.devices[deviceID]; !exists {
		r.mu.Unlock()
		return nil
	}
	delete(conn.devices, deviceID)
	removeFrom(r.byDevice, deviceID, id)
	r.subscriptions--
	subs := r.subscriptions
	r.mu.Unlock()

	metrics.UpdateSubscriptions(subs)
	return nil
}

// ConnectionsForOrganization returns the ids of every live connection in
// orgID, sorted ascending.
func (r *Registry) ConnectionsForOrganization(orgID string) []ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedIDs(r.byOrg[orgID])
}

// ConnectionsForDevice returns the ids of every connection subscribed to
// deviceID, sorted ascending.
func (r *Registry) ConnectionsForDevice(deviceID string) []ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedIDs(r.byDevice[deviceID])
}

// ConnectionsForUser returns the ids of every connection opened by userID.
func (r *Registry) ConnectionsForUser(userID string) []ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedIDs(r.byUser[userID])
}

// Get returns the live connection with the given id.
func (r *Registry) Get(id ConnectionID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byID[id]
	return conn, ok
}

// Subscriptions returns the device ids connection id is subscribed to, sorted.
func (r *Registry) Subscriptions(id ConnectionID) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byID[id]
	if !ok {
		return nil, ErrUnknownConnection
	}
	devices := make([]string, 0, len(conn.devices))
	for d := range conn.devices {
		devices = append(devices, d)
	}
	sort.Strings(devices)
	return devices, nil
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// RegistryStats is a point-in-time view of the registry.
type RegistryStats struct {
	Connections   int            `json:"connections"`
	Organizations map[string]int `json:"organizations"`
	Users         int            `json:"users"`
	Devices       int            `json:"watched_devices"`
	Subscriptions int            `json:"subscriptions"`
}

// Stats returns connection and subscription counts.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	orgs := make(map[string]int, len(r.byOrg))
	for org, set := range r.byOrg {
		orgs[org] = len(set)
	}
	return RegistryStats{
		Connections:   len(r.byID),
		Organizations: orgs,
		Users:         len(r.byUser),
		Devices:       len(r.byDevice),
		Subscriptions: r.subscriptions,
	}
}

// OrgStats is the part of the registry visible to one organization.
type OrgStats struct {
	Connections   int `json:"connections"`
	Users         int `json:"users"`
	Devices       int `json:"watched_devices"`
	Subscriptions int `json:"subscriptions"`
}

// OrgStats counts only connections belonging to orgID.
func (r *Registry) OrgStats(orgID string) OrgStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byOrg[orgID]
	users := make(map[string]struct{})
	devices := make(map[string]struct{})
	stats := OrgStats{Connections: len(conns)}
	for _, conn := range conns {
		users[conn.identity.UserID] = struct{}{}
		for d := range conn.devices {
			devices[d] = struct{}{}
		}
		stats.Subscriptions += len(conn.devices)
	}
	stats.Users = len(users)
	stats.Devices = len(devices)
	return stats
}

// CheckInvariants verifies that every index agrees with the connection table
// and returns the first inconsistency found.
func (r *Registry) CheckInvariants() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := 0
	for id, conn := range r.byID {
		if conn.id != id {
			return fmt.Errorf("connection %d stored under id %d", conn.id, id)
		}
		if _, ok := r.byOrg[conn.identity.OrganizationID][id]; !ok {
			return fmt.Errorf("connection %d missing from organization index %q", id, conn.identity.OrganizationID)
		}
		if _, ok := r.byUser[conn.identity.UserID][id]; !ok {
			return fmt.Errorf("connection %d missing from user index %q", id, conn.identity.UserID)
		}
		for device := range conn.devices {
			if _, ok := r.byDevice[device][id]; !ok {
				return fmt.Errorf("connection %d missing from device index %q", id, device)
			}
		}
		subs += len(conn.devices)
	}
	if subs != r.subscriptions {
		return fmt.Errorf("subscription count %d, indexed %d", r.subscriptions, subs)
	}

	check := func(name string, index map[string]connSet, member func(*Connection, string) bool) error {
		for key, set := range index {
			if len(set) == 0 {
				return fmt.Errorf("empty %s index entry %q", name, key)
			}
			for id, conn := range set {
				if live, ok := r.byID[id]; !ok || live != conn {
					return fmt.Errorf("%s index %q holds dead connection %d", name, key, id)
				}
				if !member(conn, key) {
					return fmt.Errorf("%s index %q holds foreign connection %d", name, key, id)
				}
			}
		}
		return nil
	}
	if err := check("organization", r.byOrg, func(c *Connection, k string) bool { return c.identity.OrganizationID == k }); err != nil {
		return err
	}
	if err := check("user", r.byUser, func(c *Connection, k string) bool { return c.identity.UserID == k }); err != nil {
		return err
	}
	return check("device", r.byDevice, func(c *Connection, k string) bool {
		_, ok := c.devices[k]
		return ok
	})
}

// closeAll refuses further registrations and unregisters every connection
// in id order. Marking the registry closed and taking the snapshot happen
// under one lock, so no registration can slip in between.
func (r *Registry) closeAll(reason string) int {
	r.mu.Lock()
	r.closed = true
	ids := sortedIDs(r.byID)
	r.mu.Unlock()

	closed := 0
	for _, id := range ids {
		if r.unregister(id, reason) {
			closed++
		}
	}
	return closed
}

// reopen accepts registrations again after closeAll.
func (r *Registry) reopen() {
	r.mu.Lock()
	r.closed = false
	r.mu.Unlock()
}

func addTo(index map[string]connSet, key string, conn *Connection) {
	set, ok := index[key]
	if !ok {
		set = make(connSet)
		index[key] = set
	}
	set[conn.id] = conn
}

func removeFrom(index map[string]connSet, key string, id ConnectionID) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(index, key)
	}
}

func sortedIDs(set connSet) []ConnectionID {
	ids := make([]ConnectionID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

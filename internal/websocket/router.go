// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package websocket

import (
	"sort"

	"github.com/tomtom215/fleetpulse/internal/models"
)

// Router resolves the connections an event must reach. It performs no I/O
// and never mutates the registry.
type Router struct {
	registry *Registry

	// orgWideDeviceEvents sends device-scoped events to every organization
	// member, not only explicit subscribers.
	orgWideDeviceEvents bool
}

// NewRouter creates a router over registry.
func NewRouter(registry *Registry, orgWideDeviceEvents bool) *Router {
	return &Router{registry: registry, orgWideDeviceEvents: orgWideDeviceEvents}
}

// Route returns the target connections for e, deduplicated and sorted by id.
//
// The organization is the security boundary: a connection outside
// e.OrganizationID is never returned, whatever it subscribed to. An event
// without an organization, or for an organization with no members, routes
// nowhere.
func (rt *Router) Route(e *models.Event) []*Connection {
	if e == nil || e.OrganizationID == "" {
		return nil
	}

	r := rt.registry
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.byOrg[e.OrganizationID]
	if len(members) == 0 {
		return nil
	}

	if e.IsDirect() {
		var out []*Connection
		for id, conn := range r.byUser[e.TargetUserID] {
			if _, ok := members[id]; ok {
				out = append(out, conn)
			}
		}
		return sortConns(out)
	}

	targets := make(connSet)
	if rt.orgWideDeviceEvents || !e.IsDeviceScoped() {
		for id, conn := range members {
			targets[id] = conn
		}
	}
	if e.IsDeviceScoped() {
		for id, conn := range r.byDevice[e.DeviceID] {
			if conn.identity.OrganizationID == e.OrganizationID {
				targets[id] = conn
			}
		}
	}

	out := make([]*Connection, 0, len(targets))
	for _, conn := range targets {
		out = append(out, conn)
	}
	return sortConns(out)
}

func sortConns(conns []*Connection) []*Connection {
	sort.Slice(conns, func(i, j int) bool { return conns[i].id < conns[j].id })
	return conns
}

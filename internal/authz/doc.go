// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

/*
Package authz provides role-based authorization using Casbin.

Subjects are the role carried by an authenticated subscriber. The embedded
model uses keyMatch2 for objects and allows a "*" action wildcard. Roles
inherit through grouping rules:

	admin -> operator -> viewer

Default permissions:

	viewer    realtime:connect, realtime:subscribe, devices:read
	operator  devices:write, events:publish
	device    events:publish
	admin     devices:delete, notifications:publish, stats:read

Organization isolation is not a policy concern: the realtime router and the
HTTP handlers scope everything by the subscriber's organization before any
role check runs.

Usage:

	enforcer, err := authz.NewEnforcer(ctx, &authz.EnforcerConfig{CacheEnabled: true})
	allowed, err := enforcer.Enforce(sub.Role, authz.ObjectEvents, authz.ActionPublish)

	r.With(authz.NewMiddleware(enforcer).Authorize(authz.ObjectStats, authz.ActionRead)).
	    Get("/realtime/stats", h.RealtimeStats)
*/
package authz

// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

/*
Package services adapts FleetPulse components to suture.Service.

Each wrapper translates a component's lifecycle into Serve(ctx) error:

  - HTTPServerService: ListenAndServe plus Shutdown with a drain timeout
  - HubService: the hub's RunWithContext dispatch loop
  - EmbeddedBrokerService: an already started embedded NATS server, shut
    down when the tree stops
  - CacheJanitor: periodic CleanupExpired on a TTL cache

websocket.NATSBridge implements suture.Service itself and needs no wrapper.

Every wrapper implements fmt.Stringer so supervisor events name the service.
*/
package services

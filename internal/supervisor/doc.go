// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

/*
Package supervisor runs FleetPulse's long-lived services under a suture v4 tree.

The tree has three layers so a failing service restarts without taking the
others down:

	fleetpulse
	├── broker-layer
	│   └── EmbeddedBrokerService (NATS_EMBEDDED_SERVER)
	├── messaging-layer
	│   ├── HubService (broadcast engine dispatch loop)
	│   └── websocket.NATSBridge (NATS_ENABLED)
	└── api-layer
	    └── HTTPServerService

Supervisor events (restarts, backoff, stop timeouts) are logged through
sutureslog using the slog adapter from the logging package.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	err = tree.Serve(ctx)

Canceling ctx stops the tree. The hub closes every client connection on
the way down and the HTTP server drains within ShutdownTimeout.
*/
package supervisor

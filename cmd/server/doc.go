// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

/*
Package main is the entry point for the FleetPulse server.

FleetPulse pushes device events (heartbeats, status changes, errors and bulk
updates) to browser dashboards over WebSocket. Connections are scoped to the
organization of their authenticated user, and each connection has a bounded
outbound queue; a subscriber that cannot keep up is disconnected rather than
allowed to slow down everyone else.

# Application Architecture

Long-running components run under a Suture v4 supervisor tree:

	RootSupervisor ("fleetpulse")
	├── BrokerSupervisor ("broker-layer")
	│   └── Embedded NATS server (optional, NATS_EMBEDDED=true)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket hub (broadcast engine)
	│   ├── Device owner cache janitor (when DIRECTORY_CACHE_SIZE > 0)
	│   └── NATS ingest bridge (optional, NATS_ENABLED=true)
	└── APISupervisor ("api-layer")
	    └── HTTP server

Component initialization order:

 1. Configuration: Koanf v2 with defaults, optional YAML file and environment
 2. Logging: zerolog, bridged to slog for the supervisor event hook
 3. Device directory: BadgerDB (on disk or in memory)
 4. Authorization: Casbin enforcer with embedded model and policy
 5. Authentication: JWT validator used by both HTTP and the WebSocket handshake
 6. Realtime: connection registry, hub and gateway
 7. NATS: optional embedded broker and ingest bridge
 8. HTTP: Chi router with CORS, rate limiting and Prometheus metrics

# Graceful Shutdown

SIGINT or SIGTERM cancels the root context. Suture stops each layer within
SHUTDOWN_TIMEOUT; the hub closes every open connection before the device
directory is closed.

# Configuration

Common environment variables:

	HTTP_PORT                  listen port (default 8080)
	JWT_SECRET                 HMAC secret, at least 32 characters
	CORS_ORIGINS               comma-separated allowed origins
	WS_SEND_BUFFER_SIZE        per-connection outbound queue (default 256)
	WS_OVERFLOW_THRESHOLD      full-queue hits before disconnect (default 1)
	DIRECTORY_PATH             BadgerDB directory (default /data/devices)
	NATS_ENABLED               enable the NATS ingest bridge
	NATS_MAX_RECONNECTS        reconnect attempts before restart (default 0, forever)
	LOG_LEVEL                  trace, debug, info, warn, error

See internal/config for the full list.
*/
package main

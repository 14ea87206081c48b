// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

/*
Package metrics exposes Prometheus instrumentation for FleetPulse.

All collectors are registered on the default registry through promauto and
served by the /metrics endpoint.

# Metric Families

Realtime hub:
  - fleetpulse_ws_connections: currently registered connections
  - fleetpulse_ws_connections_total: connections accepted, by role
  - fleetpulse_ws_disconnects_total: disconnects, by reason
  - fleetpulse_ws_subscriptions: explicit device subscriptions held
  - fleetpulse_events_published_total: events accepted by the hub, by kind
  - fleetpulse_events_dropped_total: events refused because the hub queue was full
  - fleetpulse_deliveries_total: per-connection enqueues, by kind
  - fleetpulse_queue_overflows_total: enqueues refused by a full connection queue
  - fleetpulse_dispatch_duration_seconds: time to route and enqueue one event
  - fleetpulse_ws_messages_received_total: client commands, by type

Ingest:
  - fleetpulse_nats_messages_total: bridge messages, by outcome
  - fleetpulse_directory_operations_total: device directory calls, by operation and outcome

HTTP:
  - api_requests_total / api_request_duration_seconds / api_active_requests

# Usage

	metrics.RecordEventPublished("heartbeat")
	metrics.RecordDispatch("heartbeat", delivered, time.Since(start))
	metrics.RecordDisconnect("overflow")
*/
package metrics

// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

/*
Package websocket implements real-time fan-out of device state to connected
clients.

# Components

  - Registry: live connections indexed by organization, user and device
    subscription, all under one lock.
  - Router: resolves the connections an event must reach. The organization
    is the security boundary; device subscriptions only refine delivery.
  - Hub: the broadcast engine. Publish never blocks; a dispatch loop
    enqueues each event onto every target's bounded queue and disconnects
    connections whose queue stays full.
  - Connection: one client, with a reader goroutine for commands and a
    writer goroutine that drains the outbound queue.
  - Gateway: device-layer entry points (OnDeviceHeartbeat, OnBulkUpdate...)
    and connection lifecycle (OnConnectionOpen, subscribe requests).
  - NATSBridge: optional ingest of device events from a NATS subject.

# Client Protocol

After the handshake the server sends a "connected" envelope. Clients may
then send:

	{"type":"subscribe","device_ids":["sensor-1"]}
	{"type":"unsubscribe","device_ids":["sensor-1"]}
	{"type":"ping"}

Subscribe and unsubscribe are answered with an "ack" envelope, ping with
"pong". Events arrive as:

	{"type":"status_change","event_id":"...","organization_id":"acme",
	 "device_id":"sensor-1","old_status":"online","new_status":"offline",
	 "payload":{...},"timestamp":"..."}

# Backpressure

Each connection has a bounded queue. A full queue counts a strike; at the
configured threshold (default 1) the connection is unregistered and its
transport closed with CloseTryAgainLater. Other connections are never
stalled by a slow one, and the publisher never blocks.

# Thread Safety

All exported methods are safe for concurrent use. Unregister may race a
dispatch to the same connection; the enqueue then fails silently.
*/
package websocket

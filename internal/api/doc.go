// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

/*
Package api exposes the realtime core over HTTP using the chi router.

Routes:

	GET    /api/v1/health, /health/live, /health/ready
	GET    /metrics
	GET    /api/v1/realtime/ws                       WebSocket handshake
	GET    /api/v1/realtime/stats                    stats:read
	GET    /api/v1/devices, /devices/{deviceID}      devices:read
	PUT    /api/v1/devices/{deviceID}                devices:write
	DELETE /api/v1/devices/{deviceID}                devices:delete
	POST   /api/v1/devices/{deviceID}/heartbeat      events:publish
	POST   /api/v1/devices/{deviceID}/status         events:publish
	POST   /api/v1/devices/{deviceID}/error          events:publish
	POST   /api/v1/devices/bulk                      events:publish
	POST   /api/v1/notifications                     notifications:publish

REST endpoints authenticate with auth.RequireAuth and authorize with the
casbin middleware. The WebSocket handshake authenticates through
websocket.Gateway before upgrading, so rejected clients receive a JSON
401 or 403 and are never registered. Browser clients may pass the token
in the token query parameter.

The organization of every request comes from the caller's credential.
Devices owned by another organization are reported as not found.

Responses use models.APIResponse:

	{"status":"success","data":{...},"metadata":{"timestamp":"..."}}
	{"status":"error","data":null,"metadata":{...},"error":{"code":"...","message":"..."}}

Ingest endpoints answer 202 Accepted with the event id once the event is
queued for dispatch, and 503 with Retry-After when the hub's publish
queue is full.
*/
package api

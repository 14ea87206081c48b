// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

/*
Package middleware provides HTTP middleware shared by the API router.

Key Components:

  - RequestID: UUID request ids propagated to logs and the X-Request-ID header
  - PrometheusMetrics: request count, latency and in-flight gauge labelled by
    chi route pattern
  - Compression: gzip for JSON responses; WebSocket upgrades are skipped

All middleware use the func(http.HandlerFunc) http.HandlerFunc shape; the api
package adapts them to chi with chiMiddleware.

PrometheusMetrics wraps the ResponseWriter but forwards Hijack, so the
realtime endpoint can upgrade to a WebSocket behind it.
*/
package middleware

// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/fleetpulse/internal/auth"
	"github.com/tomtom215/fleetpulse/internal/authz"
	"github.com/tomtom215/fleetpulse/internal/middleware"
)

// Router sets up HTTP routes using the chi router.
type Router struct {
	handler       *Handler
	authn         auth.Authenticator
	authz         *authz.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. authn guards the REST endpoints; the
// WebSocket handshake authenticates through the gateway itself.
func NewRouter(handler *Handler, authn auth.Authenticator, authzMiddleware *authz.Middleware, chiMw *ChiMiddleware) *Router {
	if chiMw == nil {
		chiMw = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		authn:         authn,
		authz:         authzMiddleware,
		chiMiddleware: chiMw,
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to chi's func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
		r.Get("/", router.handler.Health)
	})

	r.Handle("/metrics", promhttp.Handler())

	// The handshake must not be gzip-wrapped or the Hijacker is lost.
	r.Route("/api/v1/realtime", func(r chi.Router) {
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.With(router.chiMiddleware.RateLimitWebSocket()).Get("/ws", router.handler.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Use(APISecurityHeaders())
			r.Use(auth.RequireAuth(router.authn))
			r.With(router.authz.Authorize(authz.ObjectStats, authz.ActionRead)).Get("/stats", router.handler.RealtimeStats)
		})
	})

	r.Route("/api/v1/devices", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(middleware.Compression))
		r.Use(auth.RequireAuth(router.authn))

		// Directory reads and management.
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.With(router.authz.Authorize(authz.ObjectDevices, authz.ActionRead)).Get("/", router.handler.ListDevices)
			r.With(router.authz.Authorize(authz.ObjectDevices, authz.ActionRead)).Get("/{deviceID}", router.handler.GetDevice)
		})
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitWrite())
			r.With(router.authz.Authorize(authz.ObjectDevices, authz.ActionWrite)).Put("/{deviceID}", router.handler.PutDevice)
			r.With(router.authz.Authorize(authz.ObjectDevices, authz.ActionDelete)).Delete("/{deviceID}", router.handler.DeleteDevice)
		})

		// Event ingest from the device layer.
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitIngest())
			r.Use(router.authz.Authorize(authz.ObjectEvents, authz.ActionPublish))
			r.Post("/bulk", router.handler.BulkUpdate)
			r.Post("/{deviceID}/heartbeat", router.handler.DeviceHeartbeat)
			r.Post("/{deviceID}/status", router.handler.DeviceStatusChange)
			r.Post("/{deviceID}/error", router.handler.DeviceError)
		})
	})

	r.Route("/api/v1/notifications", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(auth.RequireAuth(router.authn))
		r.Use(router.authz.Authorize(authz.ObjectNotifications, authz.ActionPublish))
		r.Post("/", router.handler.Notify)
	})

	return r
}

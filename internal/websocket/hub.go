// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package websocket

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/fleetpulse/internal/logging"
	"github.com/tomtom215/fleetpulse/internal/metrics"
	"github.com/tomtom215/fleetpulse/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful path (e.g. SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// HubConfig configures the broadcast engine.
type HubConfig struct {
	// PublishBufferSize bounds events accepted but not yet dispatched.
	PublishBufferSize int

	// OverflowThreshold is the number of consecutive full-queue enqueues
	// after which a connection is forcibly disconnected.
	OverflowThreshold int

	// OrgWideDeviceEvents sends device events to the whole organization.
	OrgWideDeviceEvents bool
}

// DefaultHubConfig returns the production defaults.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		PublishBufferSize:   1024,
		OverflowThreshold:   1,
		OrgWideDeviceEvents: true,
	}
}

// Hub is the broadcast engine. Producers hand events to Publish, which never
// blocks; a single dispatch loop resolves targets and enqueues onto every
// target's bounded queue, so events from one producer keep their call order
// on every connection.
type Hub struct {
	registry          *Registry
	router            *Router
	events            chan *models.Event
	overflowThreshold int32
	log               zerolog.Logger

	running   atomic.Bool
	stopped   atomic.Bool
	published atomic.Uint64
	dropped   atomic.Uint64
	delivered atomic.Uint64
	overflows atomic.Uint64
}

// NewHub creates a hub delivering to connections in registry.
func NewHub(registry *Registry, cfg HubConfig) *Hub {
	if cfg.PublishBufferSize <= 0 {
		cfg.PublishBufferSize = DefaultHubConfig().PublishBufferSize
	}
	if cfg.OverflowThreshold <= 0 {
		cfg.OverflowThreshold = 1
	}
	return &Hub{
		registry:          registry,
		router:            NewRouter(registry, cfg.OrgWideDeviceEvents),
		events:            make(chan *models.Event, cfg.PublishBufferSize),
		overflowThreshold: int32(cfg.OverflowThreshold),
		log:               logging.WithComponent("websocket-hub"),
	}
}

// Running reports whether the dispatch loop is active.
func (h *Hub) Running() bool {
	return h.running.Load()
}

// Registry returns the registry the hub delivers to.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Router returns the hub's topic router.
func (h *Hub) Router() *Router {
	return h.router
}

// TryPublish hands e to the dispatch loop without blocking.
func (h *Hub) TryPublish(e *models.Event) error {
	if err := validateEvent(e); err != nil {
		return err
	}
	if h.stopped.Load() {
		return ErrHubClosed
	}
	select {
	case h.events <- e:
		h.published.Add(1)
		metrics.RecordEventPublished(string(e.Kind))
		metrics.UpdateHubQueueDepth(len(h.events))
		return nil
	default:
		h.dropped.Add(1)
		metrics.RecordEventDropped()
		h.log.Warn().
			Str("kind", string(e.Kind)).
			Str("organization_id", e.OrganizationID).
			Msg("publish queue full, dropping event")
		return ErrPublishQueueFull
	}
}

// Publish is TryPublish for fire-and-forget callers.
func (h *Hub) Publish(e *models.Event) bool {
	return h.TryPublish(e) == nil
}

func validateEvent(e *models.Event) error {
	if e == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	return nil
}

// RunWithContext runs the dispatch loop until ctx is done, then closes every
// connection. It is meant to run under a supervisor.
//
// Cancellation is checked before each event so shutdown is not delayed by a
// deep publish queue.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.stopped.Store(false)
	h.registry.reopen()
	h.running.Store(true)
	defer h.running.Store(false)
	for {
		// Priority 1: shutdown
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: events, or wait for either
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case e := <-h.events:
			metrics.UpdateHubQueueDepth(len(h.events))
			h.Dispatch(e)
		}
	}
}

// Dispatch routes e and enqueues it on every target synchronously, returning
// the number of connections it was enqueued on. Targets whose queue is full
// accrue a strike and are disconnected at the overflow threshold; delivery
// to the remaining targets is unaffected.
func (h *Hub) Dispatch(e *models.Event) int {
	if e == nil {
		return 0
	}
	start := time.Now()
	targets := h.router.Route(e)
	if len(targets) == 0 {
		metrics.RecordDispatch(string(e.Kind), 0, time.Since(start))
		return 0
	}

	msg, err := e.Envelope().Marshal()
	if err != nil {
		h.log.Error().Err(err).Str("event_id", e.ID).Msg("failed to marshal event")
		return 0
	}

	delivered := 0
	for _, conn := range targets {
		switch conn.enqueue(msg) {
		case enqueued:
			conn.strikes.Store(0)
			delivered++
		case queueFull:
			h.strike(conn)
		case queueClosed:
			// Unregistered mid-dispatch.
		}
	}

	h.delivered.Add(uint64(delivered))
	metrics.RecordDispatch(string(e.Kind), delivered, time.Since(start))
	return delivered
}

func (h *Hub) strike(conn *Connection) {
	metrics.RecordQueueOverflow()
	if conn.strikes.Add(1) < h.overflowThreshold {
		return
	}
	if !h.registry.unregister(conn.id, metrics.DisconnectOverflow) {
		return
	}
	h.overflows.Add(1)
	h.log.Warn().
		Err(ErrQueueOverflow).
		Uint64("connection_id", uint64(conn.id)).
		Str("organization_id", conn.identity.OrganizationID).
		Str("user_id", logging.SanitizeUserID(conn.identity.UserID)).
		Int("queue_len", conn.QueueLen()).
		Msg("disconnecting slow client")
	go conn.terminate(websocket.CloseTryAgainLater, "outbound queue overflow")
}

func (h *Hub) shutdown(ctx context.Context) {
	h.stopped.Store(true)
	closed := h.registry.closeAll(metrics.DisconnectShutdown)
	stats := h.Stats()
	h.log.Info().
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", closed).
		Int("events_pending", stats.QueueDepth).
		Uint64("events_published", stats.Published).
		Uint64("events_dropped", stats.Dropped).
		Uint64("overflow_disconnects", stats.Overflows).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// HubStats combines registry counts with delivery counters.
type HubStats struct {
	RegistryStats
	Published  uint64 `json:"events_published"`
	Dropped    uint64 `json:"events_dropped"`
	Delivered  uint64 `json:"deliveries"`
	Overflows  uint64 `json:"overflow_disconnects"`
	QueueDepth int    `json:"publish_queue_depth"`
}

// Stats returns a point-in-time snapshot.
func (h *Hub) Stats() HubStats {
	return HubStats{
		RegistryStats: h.registry.Stats(),
		Published:     h.published.Load(),
		Dropped:       h.dropped.Load(),
		Delivered:     h.delivered.Load(),
		Overflows:     h.overflows.Load(),
		QueueDepth:    len(h.events),
	}
}

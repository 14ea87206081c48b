// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Disconnect reasons used as label values.
const (
	DisconnectClient   = "client"
	DisconnectOverflow = "overflow"
	DisconnectWrite    = "write_error"
	DisconnectShutdown = "shutdown"
)

var (
	// Realtime hub metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetpulse_ws_connections",
			Help: "Current number of registered realtime connections",
		},
	)

	WSConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpulse_ws_connections_total",
			Help: "Total number of accepted realtime connections",
		},
		[]string{"role"},
	)

	WSDisconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpulse_ws_disconnects_total",
			Help: "Total number of realtime disconnects",
		},
		[]string{"reason"},
	)

	WSSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetpulse_ws_subscriptions",
			Help: "Current number of explicit device subscriptions",
		},
	)

	WSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpulse_ws_messages_received_total",
			Help: "Total number of client commands received",
		},
		[]string{"type"},
	)

	WSHandshakeRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpulse_ws_handshake_rejected_total",
			Help: "Total number of rejected realtime handshakes",
		},
		[]string{"reason"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpulse_events_published_total",
			Help: "Total number of events accepted by the hub",
		},
		[]string{"kind"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetpulse_events_dropped_total",
			Help: "Total number of events dropped because the hub queue was full",
		},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpulse_deliveries_total",
			Help: "Total number of events enqueued to connections",
		},
		[]string{"kind"},
	)

	QueueOverflows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetpulse_queue_overflows_total",
			Help: "Total number of enqueues refused by a full connection queue",
		},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetpulse_dispatch_duration_seconds",
			Help:    "Time to route and enqueue a single event",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	HubQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetpulse_hub_queue_depth",
			Help: "Events waiting in the hub publish queue",
		},
	)

	// Ingest metrics
	NATSMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpulse_nats_messages_total",
			Help: "Total number of NATS bridge messages",
		},
		[]string{"outcome"}, // "published", "dropped", "invalid"
	)

	DirectoryOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpulse_directory_operations_total",
			Help: "Total number of device directory operations",
		},
		[]string{"operation", "outcome"},
	)

	DirectoryCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpulse_directory_cache_lookups_total",
			Help: "Total number of device ownership cache lookups",
		},
		[]string{"result"}, // "hit", "miss"
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetpulse_info",
			Help: "Build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordConnectionOpened records an accepted connection.
func RecordConnectionOpened(role string) {
	WSConnections.Inc()
	WSConnectionsTotal.WithLabelValues(role).Inc()
}

// RecordDisconnect records a connection leaving the registry.
func RecordDisconnect(reason string) {
	WSConnections.Dec()
	WSDisconnects.WithLabelValues(reason).Inc()
}

// RecordHandshakeRejected records a refused handshake.
func RecordHandshakeRejected(reason string) {
	WSHandshakeRejected.WithLabelValues(reason).Inc()
}

// RecordClientMessage records an inbound client command.
func RecordClientMessage(msgType string) {
	WSMessagesReceived.WithLabelValues(msgType).Inc()
}

// UpdateSubscriptions sets the subscription gauge.
func UpdateSubscriptions(count int) {
	WSSubscriptions.Set(float64(count))
}

// RecordEventPublished records an event accepted by the hub.
func RecordEventPublished(kind string) {
	EventsPublished.WithLabelValues(kind).Inc()
}

// RecordEventDropped records an event refused by a full hub queue.
func RecordEventDropped() {
	EventsDropped.Inc()
}

// RecordDispatch records one routed event.
func RecordDispatch(kind string, delivered int, duration time.Duration) {
	DispatchDuration.Observe(duration.Seconds())
	if delivered > 0 {
		Deliveries.WithLabelValues(kind).Add(float64(delivered))
	}
}

// RecordQueueOverflow records a refused enqueue.
func RecordQueueOverflow() {
	QueueOverflows.Inc()
}

// UpdateHubQueueDepth sets the publish queue depth gauge.
func UpdateHubQueueDepth(depth int) {
	HubQueueDepth.Set(float64(depth))
}

// RecordNATSMessage records a bridge message outcome.
func RecordNATSMessage(outcome string) {
	NATSMessages.WithLabelValues(outcome).Inc()
}

// RecordDirectoryOperation records a directory call.
func RecordDirectoryOperation(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	DirectoryOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordDirectoryCacheLookup records an ownership cache hit or miss.
func RecordDirectoryCacheLookup(hit bool) {
	if hit {
		DirectoryCacheLookups.WithLabelValues("hit").Inc()
		return
	}
	DirectoryCacheLookups.WithLabelValues("miss").Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// SetAppInfo publishes build information.
func SetAppInfo(version, goVersion string) {
	AppInfo.WithLabelValues(version, goVersion).Set(1)
}

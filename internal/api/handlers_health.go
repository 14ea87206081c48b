// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/fleetpulse/internal/devices"
	"github.com/tomtom215/fleetpulse/internal/models"
)

// healthProbeDeviceID is looked up to prove the directory answers reads.
const healthProbeDeviceID = "health-probe"

// Health reports hub and directory status. It always answers 200 so
// dashboards can render a degraded state.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	hubRunning := h.gateway.Hub().Running()
	directoryOK := h.directoryReachable(r.Context())

	status := "healthy"
	if !hubRunning || !directoryOK {
		status = "degraded"
	}

	respondSuccess(w, http.StatusOK, models.HealthStatus{
		Status:             status,
		Version:            h.version,
		HubRunning:         hubRunning,
		DirectoryReachable: directoryOK,
		Connections:        h.gateway.Hub().Registry().Count(),
		Uptime:             time.Since(h.startTime).Seconds(),
	})
}

// HealthLive is the Kubernetes liveness probe. The process answering is enough.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady is the Kubernetes readiness probe. The pod is ready once the
// hub's dispatch loop runs and the directory answers.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	hubRunning := h.gateway.Hub().Running()
	directoryOK := h.directoryReachable(r.Context())

	if !hubRunning || !directoryOK {
		respondJSON(w, http.StatusServiceUnavailable, &models.APIResponse{
			Status: "error",
			Data: map[string]interface{}{
				"ready":               false,
				"hub_running":         hubRunning,
				"directory_reachable": directoryOK,
			},
			Metadata: models.Metadata{Timestamp: time.Now().UTC()},
			Error:    &models.APIError{Code: "NOT_READY", Message: "Service not ready"},
		})
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"ready": true,
	})
}

func (h *Handler) directoryReachable(ctx context.Context) bool {
	if h.directory == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := h.directory.Get(ctx, healthProbeDeviceID)
	return err == nil || errors.Is(err, devices.ErrDeviceNotFound)
}

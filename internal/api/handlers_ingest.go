// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/fleetpulse/internal/devices"
	"github.com/tomtom215/fleetpulse/internal/logging"
	"github.com/tomtom215/fleetpulse/internal/models"
	ws "github.com/tomtom215/fleetpulse/internal/websocket"
)

// The ingest endpoints are the device layer's entry into the realtime core.
// The organization always comes from the publisher's credential, never
// from the body, and the device must belong to that organization.

// DeviceHeartbeat publishes a heartbeat and records the device as seen.
func (h *Handler) DeviceHeartbeat(w http.ResponseWriter, r *http.Request) {
	sub, device, ok := h.ingestTarget(w, r)
	if !ok {
		return
	}
	var req HeartbeatRequest
	if !decodeAndValidate(w, r, &req, true) {
		return
	}

	id, err := h.gateway.OnDeviceHeartbeat(device.ID, sub.OrganizationID, req.Payload)
	if err == nil {
		h.touch(r, device.ID, "")
	}
	respondPublished(w, models.EventHeartbeat, id, err)
}

// DeviceStatusChange publishes a status transition and stores the new status.
func (h *Handler) DeviceStatusChange(w http.ResponseWriter, r *http.Request) {
	sub, device, ok := h.ingestTarget(w, r)
	if !ok {
		return
	}
	var req StatusChangeRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}
	oldStatus := req.OldStatus
	if oldStatus == "" {
		oldStatus = device.Status
	}

	id, err := h.gateway.OnDeviceStatusChange(device.ID, sub.OrganizationID, oldStatus, req.NewStatus, req.Payload)
	if err == nil {
		h.touch(r, device.ID, req.NewStatus)
	}
	respondPublished(w, models.EventStatusChange, id, err)
}

// DeviceError publishes a device error report.
func (h *Handler) DeviceError(w http.ResponseWriter, r *http.Request) {
	sub, device, ok := h.ingestTarget(w, r)
	if !ok {
		return
	}
	var req DeviceErrorRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	id, err := h.gateway.OnDeviceError(device.ID, sub.OrganizationID, req.Payload)
	respondPublished(w, models.EventError, id, err)
}

// BulkUpdate publishes one organization-wide event covering many devices.
// Every listed device must belong to the publisher's organization.
func (h *Handler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	sub, ok := requireSubscriber(w, r)
	if !ok {
		return
	}
	var req BulkUpdateRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	ids := uniqueStrings(req.DeviceIDs)
	var missing []string
	for _, deviceID := range ids {
		owner, err := devices.OwnerOf(r.Context(), h.directory, deviceID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "DIRECTORY_ERROR", "Device lookup failed", err)
			return
		}
		if owner != sub.OrganizationID {
			missing = append(missing, deviceID)
		}
	}
	if len(missing) > 0 {
		respondJSON(w, http.StatusNotFound, &models.APIResponse{
			Status:   "error",
			Metadata: models.Metadata{Timestamp: time.Now().UTC()},
			Error: &models.APIError{
				Code:    "DEVICE_NOT_FOUND",
				Message: "Unknown devices in bulk update",
				Details: map[string]interface{}{"device_ids": missing},
			},
		})
		return
	}

	id, err := h.gateway.OnBulkUpdate(sub.OrganizationID, ids, req.Payload)
	respondPublished(w, models.EventBulkUpdate, id, err)
}

// Notify sends a direct notification to one user of the caller's organization.
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	sub, ok := requireSubscriber(w, r)
	if !ok {
		return
	}
	var req NotificationRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}
	kind := req.Kind
	if kind == "" {
		kind = models.EventCustom
	}

	id, err := h.gateway.NotifyUser(sub.OrganizationID, req.UserID, kind, req.Payload)
	respondPublished(w, kind, id, err)
}

// ingestTarget resolves the authenticated publisher and the {deviceID} it
// publishes for. Devices of other organizations are reported as not found.
func (h *Handler) ingestTarget(w http.ResponseWriter, r *http.Request) (*models.Subscriber, *devices.Device, bool) {
	sub, ok := requireSubscriber(w, r)
	if !ok {
		return nil, nil, false
	}
	deviceID, ok := deviceIDParam(w, r)
	if !ok {
		return nil, nil, false
	}
	device, ok := h.ownedDevice(w, r, sub, deviceID)
	if !ok {
		return nil, nil, false
	}
	return sub, device, true
}

// ownedDevice loads deviceID and checks that it belongs to sub's organization.
func (h *Handler) ownedDevice(w http.ResponseWriter, r *http.Request, sub *models.Subscriber, deviceID string) (*devices.Device, bool) {
	device, err := h.directory.Get(r.Context(), deviceID)
	switch {
	case errors.Is(err, devices.ErrDeviceNotFound):
		respondError(w, http.StatusNotFound, "DEVICE_NOT_FOUND", "Device not found", nil)
		return nil, false
	case err != nil:
		respondError(w, http.StatusInternalServerError, "DIRECTORY_ERROR", "Device lookup failed", err)
		return nil, false
	case device.OrganizationID != sub.OrganizationID:
		respondError(w, http.StatusNotFound, "DEVICE_NOT_FOUND", "Device not found", nil)
		return nil, false
	}
	return device, true
}

// touch records activity for a device. Failure is logged; the event is already published.
func (h *Handler) touch(r *http.Request, deviceID, status string) {
	if err := h.directory.Touch(r.Context(), deviceID, status, time.Now()); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("device_id", deviceID).Msg("Failed to record device activity")
	}
}

func respondPublished(w http.ResponseWriter, kind models.EventKind, eventID string, err error) {
	switch {
	case err == nil:
		respondSuccess(w, http.StatusAccepted, PublishedResponse{EventID: eventID, Kind: kind})
	case errors.Is(err, ws.ErrPublishQueueFull):
		w.Header().Set("Retry-After", "1")
		respondError(w, http.StatusServiceUnavailable, "PUBLISH_QUEUE_FULL", "Event queue is full, retry later", nil)
	case errors.Is(err, ws.ErrHubClosed):
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Realtime service is shutting down", nil)
	case errors.Is(err, ws.ErrInvalidEvent):
		respondError(w, http.StatusBadRequest, "INVALID_EVENT", err.Error(), nil)
	default:
		respondError(w, http.StatusInternalServerError, "PUBLISH_FAILED", "Failed to publish event", err)
	}
}

// uniqueStrings drops duplicates and keeps first-seen order.
func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

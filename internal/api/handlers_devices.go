// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/fleetpulse/internal/devices"
)

// ListDevices returns the caller's organization's devices ordered by id.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	sub, ok := requireSubscriber(w, r)
	if !ok {
		return
	}
	list, err := h.directory.ListByOrganization(r.Context(), sub.OrganizationID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DIRECTORY_ERROR", "Failed to list devices", err)
		return
	}
	if list == nil {
		list = []*devices.Device{}
	}
	respondSuccess(w, http.StatusOK, list)
}

// GetDevice returns one device of the caller's organization.
func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	sub, ok := requireSubscriber(w, r)
	if !ok {
		return
	}
	deviceID, ok := deviceIDParam(w, r)
	if !ok {
		return
	}
	device, ok := h.ownedDevice(w, r, sub, deviceID)
	if !ok {
		return
	}
	respondSuccess(w, http.StatusOK, device)
}

// PutDevice creates or replaces a device in the caller's organization.
// Device ids are global, so an id owned by another organization conflicts.
func (h *Handler) PutDevice(w http.ResponseWriter, r *http.Request) {
	sub, ok := requireSubscriber(w, r)
	if !ok {
		return
	}
	deviceID, ok := deviceIDParam(w, r)
	if !ok {
		return
	}
	var req DeviceRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	device := &devices.Device{
		ID:             deviceID,
		OrganizationID: sub.OrganizationID,
		Name:           req.Name,
		Status:         req.Status,
		Labels:         req.Labels,
	}
	err := h.directory.Put(r.Context(), device)
	switch {
	case errors.Is(err, devices.ErrOrganizationMismatch):
		respondError(w, http.StatusConflict, "DEVICE_ID_TAKEN", "Device id is registered to another organization", nil)
		return
	case errors.Is(err, devices.ErrInvalidDevice):
		respondError(w, http.StatusBadRequest, "INVALID_DEVICE", err.Error(), nil)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "DIRECTORY_ERROR", "Failed to store device", err)
		return
	}
	respondSuccess(w, http.StatusOK, device)
}

// DeleteDevice removes a device of the caller's organization.
func (h *Handler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	sub, ok := requireSubscriber(w, r)
	if !ok {
		return
	}
	deviceID, ok := deviceIDParam(w, r)
	if !ok {
		return
	}
	if _, ok := h.ownedDevice(w, r, sub, deviceID); !ok {
		return
	}
	if err := h.directory.Delete(r.Context(), deviceID); err != nil {
		respondError(w, http.StatusInternalServerError, "DIRECTORY_ERROR", "Failed to delete device", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

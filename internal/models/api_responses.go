// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package models

import (
	"time"
)

// APIResponse is the envelope returned by every HTTP endpoint.
//
// Status is "success" with Data populated, or "error" with Error populated:
//
//	{
//	  "status": "error",
//	  "error": {"code": "FORBIDDEN", "message": "device belongs to another organization"},
//	  "metadata": {"timestamp": "2026-10-19T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	// Delivered is the number of connections an ingest call reached, when known.
	Delivered *int `json:"delivered,omitempty"`
}

// APIError is a machine-readable error code plus a human message.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	Status             string  `json:"status"` // healthy, degraded
	Version            string  `json:"version"`
	HubRunning         bool    `json:"hub_running"`
	DirectoryReachable bool    `json:"directory_reachable"`
	Connections        int     `json:"connections"`
	Uptime             float64 `json:"uptime_seconds"`
}

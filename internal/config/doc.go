// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

// Package config loads FleetPulse configuration with Koanf v2.
//
// Sources are layered, highest priority last:
//
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH, ./config.yaml, /etc/fleetpulse/config.yaml)
//  3. Environment variables mapped through envTransformFunc
//
// Unmapped environment variables are ignored. Comma-separated values are
// split for the slice fields listed in sliceConfigPaths.
//
// # Example config.yaml
//
//	server:
//	  port: 8080
//	security:
//	  jwt_secret: "change-me-to-a-32-character-secret!!"
//	  cors_origins: ["https://dashboard.example.com"]
//	websocket:
//	  send_buffer_size: 256
//	  overflow_threshold: 1
//	  org_wide_device_events: true
//	directory:
//	  path: /data/devices
//	nats:
//	  enabled: false
//	  reconnect_wait: 2s
//	  max_reconnects: 0
//
// Validate is called by Load and returns the first problem found.
package config

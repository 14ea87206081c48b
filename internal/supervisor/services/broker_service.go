// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package services

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrBrokerStopped is returned when the broker stops while the tree runs.
var ErrBrokerStopped = errors.New("embedded broker stopped unexpectedly")

// EmbeddedBroker is satisfied by *websocket.EmbeddedNATS.
type EmbeddedBroker interface {
	ClientURL() string
	IsRunning() bool
	Shutdown(ctx context.Context) error
}

// EmbeddedBrokerService ties an embedded NATS server to the tree's lifetime.
//
// The broker is started before the tree so the bridge has a URL to dial.
// The service watches it and shuts it down when the tree stops. A broker
// that dies on its own is reported as a failure; it is not restarted here.
type EmbeddedBrokerService struct {
	broker          EmbeddedBroker
	pollInterval    time.Duration
	shutdownTimeout time.Duration
	name            string
}

// NewEmbeddedBrokerService creates the wrapper.
func NewEmbeddedBrokerService(broker EmbeddedBroker, shutdownTimeout time.Duration) *EmbeddedBrokerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &EmbeddedBrokerService{
		broker:          broker,
		pollInterval:    time.Second,
		shutdownTimeout: shutdownTimeout,
		name:            "embedded-nats",
	}
}

// Serve implements suture.Service.
func (s *EmbeddedBrokerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.broker.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("embedded broker shutdown failed: %w", err)
			}
			return ctx.Err()
		case <-ticker.C:
			if !s.broker.IsRunning() {
				return fmt.Errorf("%w: %s", ErrBrokerStopped, s.broker.ClientURL())
			}
		}
	}
}

// String implements fmt.Stringer.
func (s *EmbeddedBrokerService) String() string {
	return s.name
}

// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package websocket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/fleetpulse/internal/logging"
	"github.com/tomtom215/fleetpulse/internal/metrics"
	"github.com/tomtom215/fleetpulse/internal/models"
)

// Outcomes recorded for bridged NATS messages.
const (
	natsOutcomePublished = "published"
	natsOutcomeDropped   = "dropped"
	natsOutcomeInvalid   = "invalid"
)

// bulkDeviceToken stands in for the device segment of organization-wide subjects.
const bulkDeviceToken = "_"

// EventSink accepts events from the bridge. *Gateway satisfies it.
type EventSink interface {
	PublishEvent(e *models.Event) (string, error)
}

// NATSBridgeConfig configures the NATS ingest bridge.
type NATSBridgeConfig struct {
	URL        string
	Subject    string
	QueueGroup string

	// ReconnectWait is the pause between reconnect attempts. Default 1s.
	ReconnectWait time.Duration

	// MaxReconnects bounds consecutive reconnect attempts before the
	// connection is closed and Serve returns. Zero or less retries forever.
	MaxReconnects int
}

// DeviceMessage is the JSON body of a bridged NATS message. Organization,
// device and kind come from the subject: <prefix>.<org>.<device>.<kind>.
type DeviceMessage struct {
	OldStatus    string          `json:"old_status,omitempty"`
	NewStatus    string          `json:"new_status,omitempty"`
	DeviceIDs    []string        `json:"device_ids,omitempty"`
	TargetUserID string          `json:"target_user_id,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// NATSBridge ingests device events published by other processes on NATS
// and forwards them to an EventSink. It implements suture.Service.
type NATSBridge struct {
	cfg  NATSBridgeConfig
	sink EventSink
	log  zerolog.Logger
}

// NewNATSBridge creates a bridge forwarding to sink.
func NewNATSBridge(cfg NATSBridgeConfig, sink EventSink) *NATSBridge {
	if cfg.Subject == "" {
		cfg.Subject = "devices.>"
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = time.Second
	}
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = -1
	}
	return &NATSBridge{cfg: cfg, sink: sink, log: logging.WithComponent("nats-bridge")}
}

// Serve connects, subscribes and forwards messages until ctx is canceled.
// The client reconnects and resubscribes on its own across broker restarts.
// If it ever gives up, Serve returns ErrNATSConnectionClosed so the
// supervisor starts a fresh connection.
func (b *NATSBridge) Serve(ctx context.Context) error {
	closed := make(chan struct{})
	nc, err := nats.Connect(b.cfg.URL,
		nats.Name("fleetpulse-bridge"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(b.cfg.MaxReconnects),
		nats.ReconnectWait(b.cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			b.log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			close(closed)
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	var sub *nats.Subscription
	if b.cfg.QueueGroup != "" {
		sub, err = nc.QueueSubscribe(b.cfg.Subject, b.cfg.QueueGroup, b.handle)
	} else {
		sub, err = nc.Subscribe(b.cfg.Subject, b.handle)
	}
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.cfg.Subject, err)
	}

	b.log.Info().
		Str("subject", b.cfg.Subject).
		Str("queue_group", b.cfg.QueueGroup).
		Msg("NATS bridge started")

	select {
	case <-ctx.Done():
	case <-closed:
		last := nc.LastError()
		b.log.Error().Err(last).Msg("NATS connection closed, bridge will restart")
		if last != nil {
			return fmt.Errorf("%w: %v", ErrNATSConnectionClosed, last)
		}
		return ErrNATSConnectionClosed
	}

	if err := sub.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		b.log.Warn().Err(err).Msg("failed to drain subscription")
	}
	b.log.Info().Msg("NATS bridge stopped")
	return ctx.Err()
}

// String names the service in supervisor logs.
func (b *NATSBridge) String() string {
	return "nats-bridge"
}

func (b *NATSBridge) handle(msg *nats.Msg) {
	e, err := ParseDeviceMessage(msg.Subject, msg.Data)
	if err != nil {
		metrics.RecordNATSMessage(natsOutcomeInvalid)
		b.log.Warn().Err(err).Str("subject", msg.Subject).Msg("invalid NATS device message")
		return
	}
	if _, err := b.sink.PublishEvent(e); err != nil {
		metrics.RecordNATSMessage(natsOutcomeDropped)
		b.log.Warn().Err(err).Str("subject", msg.Subject).Msg("failed to publish bridged event")
		return
	}
	metrics.RecordNATSMessage(natsOutcomePublished)
}

// ParseDeviceMessage builds an event from a subject of the form
// <prefix>.<org>.<device>.<kind> and its JSON body. The device token "_"
// marks an organization-wide event.
func ParseDeviceMessage(subject string, data []byte) (*models.Event, error) {
	tokens := strings.Split(subject, ".")
	if len(tokens) < 4 {
		return nil, fmt.Errorf("%w: subject %q", ErrInvalidEvent, subject)
	}
	n := len(tokens)
	org, device, kind := tokens[n-3], tokens[n-2], models.EventKind(tokens[n-1])
	if org == "" || !kind.Valid() {
		return nil, fmt.Errorf("%w: subject %q", ErrInvalidEvent, subject)
	}
	if device == bulkDeviceToken {
		device = ""
	}

	var body DeviceMessage
	if len(data) > 0 {
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
	}

	switch kind {
	case models.EventHeartbeat, models.EventStatusChange, models.EventError:
		if device == "" {
			return nil, fmt.Errorf("%w: %s without device id", ErrInvalidEvent, kind)
		}
	case models.EventBulkUpdate:
		device = ""
	}

	e := models.NewEvent(kind, org, device, body.Payload)
	e.OldStatus = body.OldStatus
	e.NewStatus = body.NewStatus
	e.DeviceIDs = body.DeviceIDs
	e.TargetUserID = body.TargetUserID
	return e, nil
}

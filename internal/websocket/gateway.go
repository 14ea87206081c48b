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

	"github.com/tomtom215/fleetpulse/internal/auth"
	"github.com/tomtom215/fleetpulse/internal/authz"
	"github.com/tomtom215/fleetpulse/internal/devices"
	"github.com/tomtom215/fleetpulse/internal/logging"
	"github.com/tomtom215/fleetpulse/internal/metrics"
	"github.com/tomtom215/fleetpulse/internal/models"
)

// Authorizer decides whether a role may perform action on object.
// *authz.Enforcer satisfies it.
type Authorizer interface {
	Enforce(role, object, action string) (bool, error)
}

// GatewayConfig wires the gateway's collaborators.
type GatewayConfig struct {
	Connection ConnectionConfig

	// Directory, when set, rejects subscriptions to devices owned by
	// another organization.
	Directory devices.Directory

	// Authorizer, when set, gates connect and subscribe.
	Authorizer Authorizer
}

// Gateway is the entry point for the device layer and for connection
// lifecycle. Every device call turns into an Event handed to the Hub.
type Gateway struct {
	hub    *Hub
	authn  auth.Authenticator
	cfg    GatewayConfig
	secLog *logging.SecurityLogger
}

// NewGateway creates a gateway publishing through hub and authenticating
// connections with authn.
func NewGateway(hub *Hub, authn auth.Authenticator, cfg GatewayConfig) *Gateway {
	cfg.Connection = cfg.Connection.withDefaults()
	return &Gateway{
		hub:    hub,
		authn:  authn,
		cfg:    cfg,
		secLog: logging.NewSecurityLogger(),
	}
}

// Hub returns the gateway's hub.
func (g *Gateway) Hub() *Hub {
	return g.hub
}

// Authenticate runs the authentication gate and the connect permission
// check. Nothing is registered on failure.
func (g *Gateway) Authenticate(ctx context.Context, credential, remoteAddr string) (*models.Subscriber, error) {
	if credential == "" {
		g.reject(remoteAddr, credential, auth.ErrNoCredentials)
		return nil, auth.ErrNoCredentials
	}
	sub, err := g.authn.Authenticate(ctx, credential)
	if err != nil {
		g.reject(remoteAddr, credential, err)
		return nil, err
	}
	if err := g.authorize(sub, authz.ObjectRealtime, authz.ActionConnect); err != nil {
		metrics.RecordHandshakeRejected("forbidden")
		return nil, err
	}
	g.secLog.LogHandshakeAccepted(sub.UserID, sub.OrganizationID, sub.Role, remoteAddr)
	return sub, nil
}

func (g *Gateway) reject(remoteAddr, credential string, err error) {
	reason := auth.Reason(err)
	metrics.RecordHandshakeRejected(reason)
	g.secLog.LogHandshakeRejected(remoteAddr, credential, reason)
}

func (g *Gateway) authorize(sub *models.Subscriber, object, action string) error {
	if g.cfg.Authorizer == nil {
		return nil
	}
	ok, err := g.cfg.Authorizer.Enforce(sub.Role, object, action)
	if err != nil {
		return fmt.Errorf("authorize %s:%s: %w", object, action, err)
	}
	if !ok {
		g.secLog.LogForbidden(sub.UserID, sub.Role, object, action)
		return ErrForbidden
	}
	return nil
}

// Attach registers an authenticated subscriber on transport and starts the
// connection's pumps. The welcome message is queued before the connection
// becomes routable, so it is always the first message the client reads.
// ErrHubClosed is returned once the hub has shut down.
func (g *Gateway) Attach(sub *models.Subscriber, transport Transport) (*Connection, error) {
	if sub == nil {
		return nil, models.ErrInvalidIdentity
	}
	conn := NewConnection(transport, g.cfg.Connection)
	_, err := g.hub.registry.register(*sub, conn, func(c *Connection) {
		c.reply(models.MessageTypeConnected, models.Welcome{
			ConnectionID:   uint64(c.id),
			UserID:         sub.UserID,
			OrganizationID: sub.OrganizationID,
			Role:           sub.Role,
		})
	})
	if err != nil {
		return nil, err
	}
	if transport != nil {
		conn.start(g)
	}
	return conn, nil
}

// OnConnectionOpen authenticates credential and registers the connection.
func (g *Gateway) OnConnectionOpen(ctx context.Context, credential string, transport Transport) (*Connection, error) {
	sub, err := g.Authenticate(ctx, credential, "")
	if err != nil {
		return nil, err
	}
	return g.Attach(sub, transport)
}

// OnConnectionClose unregisters the connection. It is safe to call more than once.
func (g *Gateway) OnConnectionClose(id ConnectionID) {
	g.hub.registry.unregister(id, metrics.DisconnectClient)
}

func (g *Gateway) closeConnection(c *Connection, reason string) {
	g.hub.registry.unregister(c.id, reason)
}

// OnClientSubscribeRequest subscribes connection id to deviceIDs. Blank and
// foreign devices are rejected individually; the rest are accepted up to the
// per-connection cap.
func (g *Gateway) OnClientSubscribeRequest(ctx context.Context, id ConnectionID, deviceIDs []string) (*models.Ack, error) {
	conn, ok := g.hub.registry.Get(id)
	if !ok {
		return nil, ErrUnknownConnection
	}
	identity := conn.Identity()
	if err := g.authorize(&identity, authz.ObjectRealtime, authz.ActionSubscribe); err != nil {
		return nil, err
	}

	ack := &models.Ack{Action: models.MessageTypeSubscribe, Accepted: []string{}}
	rejectOne := func(device, reason string) {
		ack.Rejected = append(ack.Rejected, device)
		if ack.Reason == "" {
			ack.Reason = reason
		}
	}

	for _, device := range dedupe(deviceIDs) {
		if device == "" {
			rejectOne(device, ErrInvalidDeviceID.Error())
			continue
		}
		if g.cfg.Directory != nil {
			owner, err := devices.OwnerOf(ctx, g.cfg.Directory, device)
			if err != nil {
				logging.Error().Err(err).Str("device_id", device).Msg("device ownership lookup failed")
				rejectOne(device, "device lookup failed")
				continue
			}
			if owner != "" && owner != identity.OrganizationID {
				rejectOne(device, devices.ErrOrganizationMismatch.Error())
				continue
			}
		}
		switch err := g.hub.registry.Subscribe(id, device); {
		case err == nil:
			ack.Accepted = append(ack.Accepted, device)
		case errors.Is(err, ErrUnknownConnection):
			return nil, err
		default:
			rejectOne(device, err.Error())
		}
	}
	return ack, nil
}

// OnClientUnsubscribeRequest removes subscriptions. Devices that were not
// subscribed are accepted as no-ops.
func (g *Gateway) OnClientUnsubscribeRequest(_ context.Context, id ConnectionID, deviceIDs []string) (*models.Ack, error) {
	ack := &models.Ack{Action: models.MessageTypeUnsubscribe, Accepted: []string{}}
	for _, device := range dedupe(deviceIDs) {
		if err := g.hub.registry.Unsubscribe(id, device); err != nil {
			return nil, err
		}
		ack.Accepted = append(ack.Accepted, device)
	}
	return ack, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// handleCommand answers a client command on the connection's own queue.
func (g *Gateway) handleCommand(c *Connection, cmd *models.ClientCommand) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		ack *models.Ack
		err error
	)
	switch cmd.Type {
	case models.MessageTypePing:
		c.reply(models.MessageTypePong, nil)
		return
	case models.MessageTypeSubscribe:
		ack, err = g.OnClientSubscribeRequest(ctx, c.id, cmd.DeviceIDs)
	case models.MessageTypeUnsubscribe:
		ack, err = g.OnClientUnsubscribeRequest(ctx, c.id, cmd.DeviceIDs)
	default:
		c.reply(models.MessageTypeError, map[string]string{"error": "unknown command type"})
		return
	}
	if err != nil {
		c.reply(models.MessageTypeError, map[string]string{"error": err.Error()})
		return
	}
	c.reply(models.MessageTypeAck, ack)
}

// OnDeviceHeartbeat publishes a heartbeat for deviceID.
func (g *Gateway) OnDeviceHeartbeat(deviceID, organizationID string, payload json.RawMessage) (string, error) {
	return g.publishDevice(models.EventHeartbeat, deviceID, organizationID, payload, nil)
}

// OnDeviceStatusChange publishes a status transition for deviceID.
func (g *Gateway) OnDeviceStatusChange(deviceID, organizationID, oldStatus, newStatus string, payload json.RawMessage) (string, error) {
	return g.publishDevice(models.EventStatusChange, deviceID, organizationID, payload, func(e *models.Event) {
		e.OldStatus = oldStatus
		e.NewStatus = newStatus
	})
}

// OnDeviceError publishes a device error report.
func (g *Gateway) OnDeviceError(deviceID, organizationID string, payload json.RawMessage) (string, error) {
	return g.publishDevice(models.EventError, deviceID, organizationID, payload, nil)
}

func (g *Gateway) publishDevice(kind models.EventKind, deviceID, organizationID string, payload json.RawMessage, mutate func(*models.Event)) (string, error) {
	if deviceID == "" {
		return "", fmt.Errorf("%w: %s without device id", ErrInvalidEvent, kind)
	}
	e := models.NewEvent(kind, organizationID, deviceID, payload)
	if mutate != nil {
		mutate(e)
	}
	return g.PublishEvent(e)
}

// OnBulkUpdate publishes one organization-wide event covering deviceIDs.
func (g *Gateway) OnBulkUpdate(organizationID string, deviceIDs []string, payload json.RawMessage) (string, error) {
	e := models.NewEvent(models.EventBulkUpdate, organizationID, "", payload)
	e.DeviceIDs = append([]string(nil), deviceIDs...)
	return g.PublishEvent(e)
}

// NotifyUser sends a direct notification to every connection of userID
// inside organizationID.
func (g *Gateway) NotifyUser(organizationID, userID string, kind models.EventKind, payload json.RawMessage) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: notification without user id", ErrInvalidEvent)
	}
	if kind == "" {
		kind = models.EventCustom
	}
	e := models.NewEvent(kind, organizationID, "", payload)
	e.TargetUserID = userID
	return g.PublishEvent(e)
}

// PublishEvent hands e to the hub and returns its id.
func (g *Gateway) PublishEvent(e *models.Event) (string, error) {
	if err := g.hub.TryPublish(e); err != nil {
		return "", err
	}
	return e.ID, nil
}

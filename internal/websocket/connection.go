// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/fleetpulse/internal/logging"
	"github.com/tomtom215/fleetpulse/internal/metrics"
	"github.com/tomtom215/fleetpulse/internal/models"
)

// ConnectionID identifies a connection for the lifetime of the process.
// Ids are allocated in increasing order starting at 1.
type ConnectionID uint64

// Transport is the network side of a connection. *websocket.Conn satisfies it.
type Transport interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// ConnectionConfig bounds a single connection.
type ConnectionConfig struct {
	SendBufferSize int
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	InboundRate    float64
	InboundBurst   int
}

// DefaultConnectionConfig returns the defaults used when a field is zero.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		SendBufferSize: 256,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 64 * 1024,
		InboundRate:    20,
		InboundBurst:   40,
	}
}

func (c ConnectionConfig) withDefaults() ConnectionConfig {
	d := DefaultConnectionConfig()
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = d.SendBufferSize
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.InboundRate <= 0 {
		c.InboundRate = d.InboundRate
	}
	if c.InboundBurst <= 0 {
		c.InboundBurst = d.InboundBurst
	}
	return c
}

type enqueueResult int

const (
	enqueued enqueueResult = iota
	queueFull
	queueClosed
)

// Connection is one live client. The Registry owns it from Register until
// Unregister; the writer goroutine only drains its queue.
type Connection struct {
	// Set once by Registry.Register before the connection is indexed.
	id       ConnectionID
	identity models.Subscriber

	createdAt time.Time
	transport Transport
	cfg       ConnectionConfig
	limiter   *rate.Limiter

	// qmu guards send against a close racing an enqueue.
	qmu    sync.RWMutex
	send   chan []byte
	closed bool

	// strikes counts consecutive full-queue enqueues.
	strikes atomic.Int32

	// devices is guarded by the Registry lock.
	devices map[string]struct{}
}

// NewConnection creates an unregistered connection. transport may be nil
// for connections that are only drained in-process.
func NewConnection(transport Transport, cfg ConnectionConfig) *Connection {
	cfg = cfg.withDefaults()
	return &Connection{
		createdAt: time.Now().UTC(),
		transport: transport,
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Limit(cfg.InboundRate), cfg.InboundBurst),
		send:      make(chan []byte, cfg.SendBufferSize),
		devices:   make(map[string]struct{}),
	}
}

// ID returns the id assigned at registration, or 0 before that.
func (c *Connection) ID() ConnectionID {
	return c.id
}

// Identity returns the subscriber bound at registration.
func (c *Connection) Identity() models.Subscriber {
	return c.identity
}

// CreatedAt returns when the connection was created.
func (c *Connection) CreatedAt() time.Time {
	return c.createdAt
}

// Live reports whether the outbound queue is still open.
func (c *Connection) Live() bool {
	c.qmu.RLock()
	defer c.qmu.RUnlock()
	return !c.closed
}

// Queue exposes the outbound queue for in-process consumers.
func (c *Connection) Queue() <-chan []byte {
	return c.send
}

// QueueLen returns the number of messages waiting to be written.
func (c *Connection) QueueLen() int {
	return len(c.send)
}

// enqueue never blocks.
func (c *Connection) enqueue(msg []byte) enqueueResult {
	c.qmu.RLock()
	defer c.qmu.RUnlock()
	if c.closed {
		return queueClosed
	}
	select {
	case c.send <- msg:
		return enqueued
	default:
		return queueFull
	}
}

// closeQueue closes the outbound queue once. The writer then sends a close
// frame and exits.
func (c *Connection) closeQueue() {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// terminate closes the transport without waiting for the queue to drain.
func (c *Connection) terminate(code int, text string) {
	if c.transport == nil {
		return
	}
	deadline := time.Now().Add(time.Second)
	_ = c.transport.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
	_ = c.transport.Close()
}

// reply enqueues a control envelope. A full queue drops it.
func (c *Connection) reply(msgType string, data interface{}) {
	env := &models.Envelope{Type: msgType, Data: data, Timestamp: time.Now().UTC()}
	msg, err := env.Marshal()
	if err != nil {
		logging.Error().Err(err).Str("type", msgType).Msg("failed to marshal reply")
		return
	}
	c.enqueue(msg)
}

// commandHandler receives decoded client commands and connection teardown.
type commandHandler interface {
	handleCommand(c *Connection, cmd *models.ClientCommand)
	closeConnection(c *Connection, reason string)
}

// readPump reads client commands until the transport fails.
func (c *Connection) readPump(h commandHandler) {
	defer func() {
		h.closeConnection(c, metrics.DisconnectClient)
		_ = c.transport.Close()
	}()

	c.transport.SetReadLimit(c.cfg.MaxMessageSize)
	if err := c.transport.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		logging.Error().Err(err).Uint64("connection_id", uint64(c.id)).Msg("failed to set read deadline")
		return
	}
	c.transport.SetPongHandler(func(string) error {
		return c.transport.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.transport.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Uint64("connection_id", uint64(c.id)).Msg("unexpected websocket close error")
			}
			return
		}

		if !c.limiter.Allow() {
			metrics.RecordClientMessage("rate_limited")
			c.reply(models.MessageTypeError, map[string]string{"error": "rate limit exceeded"})
			continue
		}

		var cmd models.ClientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			metrics.RecordClientMessage("invalid")
			c.reply(models.MessageTypeError, map[string]string{"error": "malformed command"})
			continue
		}
		metrics.RecordClientMessage(cmd.Type)
		h.handleCommand(c, &cmd)
	}
}

// writePump drains the outbound queue to the transport and keeps the
// connection alive with pings.
func (c *Connection) writePump(h commandHandler) {
	ticker := time.NewTicker(c.cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.transport.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.transport.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				h.closeConnection(c, metrics.DisconnectWrite)
				return
			}
			if !ok {
				// Unregistered: say goodbye.
				_ = c.transport.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.transport.WriteMessage(websocket.TextMessage, message); err != nil {
				logging.Debug().Err(err).Uint64("connection_id", uint64(c.id)).Msg("websocket write failed")
				h.closeConnection(c, metrics.DisconnectWrite)
				return
			}

		case <-ticker.C:
			if err := c.transport.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				h.closeConnection(c, metrics.DisconnectWrite)
				return
			}
			if err := c.transport.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.closeConnection(c, metrics.DisconnectWrite)
				return
			}
		}
	}
}

// start launches the reader and writer goroutines.
func (c *Connection) start(h commandHandler) {
	go c.writePump(h)
	go c.readPump(h)
}

// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xrss/brahma/internal/logging"
	"github.com/xrss/brahma/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // 64 KB; a full pose message is well under 2 KB
)

// clientIDCounter generates unique, monotonically increasing IDs for clients.
// DETERMINISM: ensures clients can be sorted consistently for broadcast
// operations, eliminating non-deterministic map iteration order.
var clientIDCounter atomic.Uint64

// MessageHandler receives the discrete per-connection events: one call per
// inbound frame, one call when the channel closes. Satisfied by *Dispatcher.
type MessageHandler interface {
	HandleMessage(c *Client, data []byte)
	HandleClose(c *Client)
}

// Client is the middleman between one websocket connection and the hub. Its
// Send method satisfies session.Channel, so the registry can hold a binding
// to the connection without ever seeing gorilla types.
type Client struct {
	// id orders clients deterministically; assigned from an atomic counter.
	id uint64

	// connID correlates log lines for one connection's lifetime.
	connID string

	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	handler MessageHandler
}

// NewClient creates a new Client for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, handler MessageHandler) *Client {
	return &Client{
		id:      clientIDCounter.Add(1),
		connID:  uuid.New().String(),
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		handler: handler,
	}
}

// ID returns the client's unique identifier for deterministic ordering.
func (c *Client) ID() uint64 {
	return c.id
}

// Send enqueues a payload for delivery, without blocking. Returns false when
// the buffer is full or the channel already closed; the caller treats that as
// a skipped best-effort delivery.
func (c *Client) Send(p []byte) bool {
	defer func() {
		// Send may race with the hub closing c.send on unregister;
		// a send on a closed channel panics, and this client is being
		// torn down anyway.
		_ = recover()
	}()
	select {
	case c.send <- p:
		return true
	default:
		metrics.DroppedSends.Inc()
		return false
	}
}

// readPump pumps frames from the websocket connection to the handler. Each
// frame becomes one HandleMessage call; connection close becomes HandleClose
// followed by unregistration, so the registry entry is gone before the next
// broadcast tick observes it.
func (c *Client) readPump() {
	defer func() {
		c.handler.HandleClose(c)
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Str("conn_id", c.connID).Msg("unexpected websocket close error")
			}
			break
		}
		c.handler.HandleMessage(c, data)
	}
}

// writePump pumps payloads from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Error().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logging.Error().Err(err).Str("conn_id", c.connID).Msg("failed to write payload")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

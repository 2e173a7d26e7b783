// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/xrss/brahma/internal/logging"
	"github.com/xrss/brahma/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// outbound is one broadcast unit: a pre-serialized payload plus an optional
// client to skip. Exclusion implements the sender-exclusion rule for callout
// packets; the triggering participant already holds the authoritative local
// state and must not receive an echo.
type outbound struct {
	payload []byte
	exclude *Client
}

// Hub maintains the set of open channels and fans broadcast payloads out to
// them. Payloads are serialized by the caller; the hub never blocks on a
// slow client. A full send buffer drops that client, and the next roster
// tick's full snapshot makes the loss self-healing.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan outbound, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext starts the hub with context support for graceful shutdown.
// Designed for suture supervision: on cancellation all connected clients are
// closed and ctx.Err() is returned.
//
// DETERMINISM: Uses priority-based selection so behavior is predictable when
// multiple channels are ready simultaneously:
// - Priority 1: Context cancellation (shutdown)
// - Priority 2: Client lifecycle events (Register/Unregister)
// - Priority 3: Broadcast payloads
// Lifecycle-first ordering keeps client state consistent before any payload
// is fanned out.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: Check for shutdown (highest priority, non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: Handle client lifecycle events (non-blocking check)
		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		// Priority 3: Handle broadcasts or wait for any event (blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.addClient(client)

		case client := <-h.Unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.broadcastToClients(msg)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.ActiveChannels.Set(float64(total))
	logging.Info().
		Str("conn_id", client.connID).
		Int("total_channels", total).
		Msg("secure client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.ActiveChannels.Set(float64(total))
	logging.Info().
		Str("conn_id", client.connID).
		Int("total_channels", total).
		Msg("client channel closed")
}

// logGracefulShutdown closes all clients and logs structured shutdown info.
// ctx.Err() is deliberately not logged as an error; cancellation is the
// expected shutdown path and error-level noise would mislead operators.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

// getShutdownReason determines the shutdown reason from the context error.
func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// broadcastToClients sends one payload to every connected client except the
// excluded one, in deterministic ID order. A client whose buffer is full is
// dropped rather than awaited, so one slow consumer cannot delay the rest of
// the roster or stall a timer tick.
func (h *Hub) broadcastToClients(msg outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		if client == msg.exclude {
			continue
		}
		select {
		case client.send <- msg.payload:
		default:
			// Buffer full or closed; drop the client, the roster
			// self-heals on the next tick.
			metrics.DroppedSends.Inc()
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
}

// closeAllClients gracefully closes all connected clients, in ID order for
// consistent shutdown behavior.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	logging.Info().Msg("closed all websocket clients during shutdown")
}

// BroadcastAll enqueues a payload for every connected client.
func (h *Hub) BroadcastAll(payload []byte) {
	select {
	case h.broadcast <- outbound{payload: payload}:
	default:
		logging.Warn().Msg("broadcast channel full, dropping roster packet")
	}
}

// BroadcastExcept enqueues a payload for every connected client except the
// given one. A nil exclude behaves like BroadcastAll.
func (h *Hub) BroadcastExcept(payload []byte, exclude *Client) {
	select {
	case h.broadcast <- outbound{payload: payload, exclude: exclude}:
	default:
		logging.Warn().Msg("broadcast channel full, dropping callout packet")
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

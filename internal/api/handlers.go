// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

// Package api provides the HTTP surface of the relay: identity allocation,
// the active-participant listing, the WebSocket upgrade endpoint, health
// probes, and prometheus metrics.
package api

import (
	"net/http"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/xrss/brahma/internal/config"
	"github.com/xrss/brahma/internal/identity"
	"github.com/xrss/brahma/internal/logging"
	"github.com/xrss/brahma/internal/models"
	"github.com/xrss/brahma/internal/session"
	ws "github.com/xrss/brahma/internal/websocket"
)

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	config    *config.Config
	registry  *session.Registry
	allocator *identity.Allocator
	hub       *ws.Hub
	handler   ws.MessageHandler
	startTime time.Time
}

// NewHandler creates the HTTP handler set.
func NewHandler(cfg *config.Config, registry *session.Registry, allocator *identity.Allocator, hub *ws.Hub, msgHandler ws.MessageHandler) *Handler {
	return &Handler{
		config:    cfg,
		registry:  registry,
		allocator: allocator,
		hub:       hub,
		handler:   msgHandler,
		startTime: time.Now(),
	}
}

// UniqueIdentity allocates a display name and pastel color not currently in
// use by any active participant. The identity is not reserved; it becomes
// bound only when the client identifies over its channel.
func (h *Handler) UniqueIdentity(w http.ResponseWriter, r *http.Request) {
	username, color := h.allocator.Allocate()
	respondJSON(w, http.StatusOK, models.IdentityResponse{
		Username: username,
		Color:    color,
	})
}

// ActiveInterlocutors returns the current participant set keyed by name,
// including each participant's last known pose and join time.
func (h *Handler) ActiveInterlocutors(w http.ResponseWriter, r *http.Request) {
	snapshot := h.registry.Snapshot()
	out := make(map[string]models.InterlocutorInfo, len(snapshot))
	for i := range snapshot {
		out[snapshot[i].Name] = models.InterlocutorInfoFrom(&snapshot[i])
	}
	respondJSON(w, http.StatusOK, out)
}

// WebSocket upgrades the connection and hands it to the hub. The client
// owns the connection from here on; its read pump delivers frames to the
// dispatcher until the channel closes.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		http.Error(w, "WebSocket service unavailable", http.StatusServiceUnavailable)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.hub, conn, h.handler)
	h.hub.Register <- client
	client.Start()
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout against slow clients.
func (h *Handler) getUpgrader() gws.Upgrader {
	return gws.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins. Headset
// runtimes and native clients connect without an Origin header; those are
// allowed. Browser connections must match the configured CORS origins.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if h.config == nil {
		return true
	}

	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", origin).Msg("WebSocket connection rejected: origin not allowed")
	return false
}

// HealthLive is the liveness probe. It returns 200 whenever the process is
// up; the relay holds all state in memory, so a live process is a usable one.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady is the readiness probe, reporting uptime and the current
// participant and channel counts.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ready",
		"uptime_seconds": time.Since(h.startTime).Seconds(),
		"participants":   h.registry.Count(),
		"channels":       h.hub.GetClientCount(),
	})
}

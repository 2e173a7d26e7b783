// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

package websocket

import (
	"github.com/goccy/go-json"

	"github.com/xrss/brahma/internal/callout"
	"github.com/xrss/brahma/internal/logging"
	"github.com/xrss/brahma/internal/metrics"
	"github.com/xrss/brahma/internal/models"
	"github.com/xrss/brahma/internal/session"
	"github.com/xrss/brahma/internal/validation"
)

// malformedReply is echoed verbatim to a channel that sent an unparseable
// frame. The connection stays open and no other participant is affected.
const malformedReply = "Error: Invalid message format"

// Dispatcher routes each connection's inbound frames to the session registry
// and callout coordinator, and turns callout updates into sender-excluded
// broadcasts. One dispatcher serves all connections; the registry and
// coordinator serialize their own state.
type Dispatcher struct {
	registry *session.Registry
	callout  *callout.Coordinator
	hub      *Hub
}

// NewDispatcher creates a dispatcher over the given shared state.
func NewDispatcher(registry *session.Registry, coordinator *callout.Coordinator, hub *Hub) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		callout:  coordinator,
		hub:      hub,
	}
}

// HandleMessage implements MessageHandler for one inbound frame.
func (d *Dispatcher) HandleMessage(c *Client, data []byte) {
	in, err := models.DecodeInbound(data)
	if err != nil {
		metrics.RecordInbound(metrics.MessageEmbodiment, metrics.OutcomeMalformed)
		logging.Warn().Err(err).Str("conn_id", c.connID).Msg("error processing message from client")
		c.Send([]byte(malformedReply))
		return
	}

	if in.Callout != nil {
		d.handleCallout(in.Callout)
		return
	}
	d.handleEmbodiment(c, in.Embodiment)
}

// handleEmbodiment applies an identify-or-pose message. Messages missing
// either identity field are logged and dropped; a pose arriving before any
// identify has no participant to attach to and is silently ignored.
func (d *Dispatcher) handleEmbodiment(c *Client, msg *models.EmbodimentMessage) {
	if !msg.Identifies() {
		metrics.RecordInbound(metrics.MessageEmbodiment, metrics.OutcomeIgnored)
		logging.Warn().Msg("invalid message: missing name or color")
		return
	}

	d.registry.Identify(c, msg.Name, msg.Color)

	if msg.HasPose() {
		d.registry.UpdatePose(msg.Name, *msg.HMDPosition, *msg.LController, *msg.RController)
	}
	metrics.RecordInbound(metrics.MessageEmbodiment, metrics.OutcomeApplied)
}

// handleCallout applies a shared-annotation update and broadcasts the new
// record to every channel except the one bound to the triggering name.
func (d *Dispatcher) handleCallout(update *models.CalloutUpdate) {
	if err := validation.ValidateStruct(update); err != nil {
		metrics.RecordInbound(metrics.MessageCallout, metrics.OutcomeIgnored)
		logging.Warn().Err(err).Msg("callout update failed validation")
		return
	}

	state := d.callout.Update(update)

	payload, err := json.Marshal(state.Broadcast())
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal callout broadcast")
		return
	}

	// The triggering participant is excluded: it already has the
	// authoritative local state and an echo would cause UI flicker.
	var exclude *Client
	if ch, ok := d.registry.Channel(update.Name); ok {
		if cl, ok := ch.(*Client); ok {
			exclude = cl
		}
	}
	d.hub.BroadcastExcept(payload, exclude)

	metrics.RecordInbound(metrics.MessageCallout, metrics.OutcomeApplied)
	metrics.CalloutBroadcasts.Inc()
	logging.Info().Str("name", update.Name).Msg("callout updated")
}

// HandleClose implements MessageHandler for channel closure. Removal is a
// no-op when a reconnect already rebound the name to a newer connection.
func (d *Dispatcher) HandleClose(c *Client) {
	name, sessionDuration, removed := d.registry.RemoveChannel(c)
	if !removed {
		return
	}

	logging.Info().
		Str("name", name).
		Dur("session_duration", sessionDuration).
		Int("active_participants", d.registry.Count()).
		Msg("client disconnected")
}

// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

package websocket

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/xrss/brahma/internal/logging"
	"github.com/xrss/brahma/internal/metrics"
	"github.com/xrss/brahma/internal/models"
	"github.com/xrss/brahma/internal/session"
)

// Broadcaster periodically fans the full participant roster out to every
// connected channel as an untagged JSON array. The array is sent to all
// channels, including each participant's own, so every client renders the
// same frame of the shared scene.
type Broadcaster struct {
	registry *session.Registry
	hub      *Hub
	interval time.Duration
}

// NewBroadcaster creates a roster broadcaster ticking at the given interval.
func NewBroadcaster(registry *session.Registry, hub *Hub, interval time.Duration) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		hub:      hub,
		interval: interval,
	}
}

// Serve implements suture.Service. It ticks until the context is cancelled;
// an empty roster still produces a broadcast so clients can clear departed
// avatars promptly.
func (b *Broadcaster) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", b.interval).Msg("roster broadcaster started")

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("roster broadcaster stopping")
			return ctx.Err()
		case <-ticker.C:
			b.broadcast()
		}
	}
}

func (b *Broadcaster) broadcast() {
	start := time.Now()

	participants := b.registry.Snapshot()
	roster := make([]models.RosterEntry, 0, len(participants))
	for i := range participants {
		roster = append(roster, models.RosterEntryFrom(&participants[i]))
	}

	payload, err := json.Marshal(roster)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal roster")
		return
	}

	b.hub.BroadcastAll(payload)

	metrics.RosterBroadcastDuration.Observe(time.Since(start).Seconds())
	metrics.RosterBroadcastFanout.Add(float64(b.hub.GetClientCount()))
}

// String implements fmt.Stringer for supervisor logging.
func (b *Broadcaster) String() string {
	return "roster-broadcaster"
}

// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

// Package session owns the authoritative in-memory roster of connected
// participants. All mutation happens under one lock; readers get copied-out
// snapshots so no caller ever holds the lock across a network send.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/xrss/brahma/internal/logging"
	"github.com/xrss/brahma/internal/metrics"
	"github.com/xrss/brahma/internal/models"
)

// Channel is the outbound side of one participant connection. Send is a
// best-effort enqueue: it returns false when the connection's buffer is full
// or closed, and must never block.
type Channel interface {
	Send(p []byte) bool
}

// participant is one registry entry. The channel stays private to this
// package; snapshots expose only the public state.
type participant struct {
	state   models.ParticipantState
	channel Channel
}

// Registry is the authoritative map of active participants keyed by name.
// At most one live entry exists per name: a new connection identifying with
// an existing name rebinds that entry's channel (reconnect semantics) rather
// than creating a duplicate.
type Registry struct {
	mu           sync.RWMutex
	participants map[string]*participant
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		participants: make(map[string]*participant),
	}
}

// Identify creates a participant for name, or rebinds the stored channel when
// the name already exists. JoinedAt is preserved across rebinds so session
// length survives reconnects. Returns true when a new entry was created.
func (r *Registry) Identify(ch Channel, name, color string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.participants[name]; ok {
		p.channel = ch
		p.state.Color = color
		return false
	}

	r.participants[name] = &participant{
		state: models.ParticipantState{
			Name:     name,
			Color:    color,
			JoinedAt: time.Now(),
		},
		channel: ch,
	}
	metrics.ActiveParticipants.Set(float64(len(r.participants)))

	logging.Info().Str("name", name).Str("color", color).Msg("new interlocutor created")
	return true
}

// UpdatePose sets the participant's embodiment and refreshes LastUpdated.
// Unknown names are ignored (a pose that raced ahead of its identify);
// returns whether the update was applied.
func (r *Registry) UpdatePose(name string, hmd, lc, rc models.Mat4) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[name]
	if !ok {
		return false
	}

	p.state.Embodiment = &models.Embodiment{
		HMD:             hmd,
		LeftController:  lc,
		RightController: rc,
	}
	p.state.LastUpdated = time.Now()
	return true
}

// RemoveChannel deletes the participant currently bound to ch. When none is
// found the channel was already replaced by a reconnect and removal is a
// no-op. Returns the removed name and its session duration.
func (r *Registry) RemoveChannel(ch Channel) (string, time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, p := range r.participants {
		if p.channel == ch {
			duration := time.Since(p.state.JoinedAt)
			delete(r.participants, name)
			metrics.ActiveParticipants.Set(float64(len(r.participants)))
			return name, duration, true
		}
	}
	return "", 0, false
}

// Channel returns the connection currently bound to name.
func (r *Registry) Channel(name string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.participants[name]
	if !ok {
		return nil, false
	}
	return p.channel, true
}

// Snapshot returns a deep copy of every participant's public state, sorted by
// name so broadcast packets are deterministic. The returned slice shares no
// memory with the registry and never exposes channels.
func (r *Registry) Snapshot() []models.ParticipantState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]models.ParticipantState, 0, len(r.participants))
	for _, p := range r.participants {
		state := p.state
		if p.state.Embodiment != nil {
			embodiment := *p.state.Embodiment
			state.Embodiment = &embodiment
		}
		snapshot = append(snapshot, state)
	}

	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].Name < snapshot[j].Name
	})
	return snapshot
}

// Has reports whether name is present in the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.participants[name]
	return ok
}

// Count returns the number of active participants.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

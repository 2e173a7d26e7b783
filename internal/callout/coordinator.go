// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

// Package callout coordinates the single shared point-of-interest annotation.
// Updates are applied unconditionally in arrival order (last writer wins);
// the record is created once at startup and only ever overwritten.
package callout

import (
	"sync"
	"time"

	"github.com/xrss/brahma/internal/models"
)

// State is the shared annotation record. TriggeredBy names the participant
// who last wrote it; LastUpdated exists for observability only and is never
// consulted when applying writes.
type State struct {
	Visible     bool
	Position    *models.Position
	SealPath    string
	PointIndex  *int
	TriggeredBy string
	LastUpdated time.Time
}

// Coordinator owns the annotation record and serializes writes to it.
type Coordinator struct {
	mu    sync.RWMutex
	state State
}

// NewCoordinator creates the coordinator with a hidden annotation.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Update overwrites the record with the fields of u. There is no comparison
// against the previous LastUpdated; whichever update arrives last wins.
func (c *Coordinator) Update(u *models.CalloutUpdate) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = State{
		Visible:     u.Visible,
		Position:    copyPosition(u.Position),
		SealPath:    u.SealPath,
		PointIndex:  copyInt(u.PointIndex),
		TriggeredBy: u.Name,
		LastUpdated: time.Now(),
	}
	return c.snapshotLocked()
}

// Snapshot returns a deep copy of the current record.
func (c *Coordinator) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() State {
	s := c.state
	s.Position = copyPosition(c.state.Position)
	s.PointIndex = copyInt(c.state.PointIndex)
	return s
}

// Broadcast builds the outbound callout packet from a state snapshot.
func (s State) Broadcast() models.CalloutBroadcast {
	return models.CalloutBroadcast{
		Type:        models.MessageTypeCallout,
		Visible:     s.Visible,
		Position:    s.Position,
		SealPath:    s.SealPath,
		PointIndex:  s.PointIndex,
		TriggeredBy: s.TriggeredBy,
		LastUpdated: s.LastUpdated.UnixMilli(),
	}
}

func copyPosition(p *models.Position) *models.Position {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func copyInt(i *int) *int {
	if i == nil {
		return nil
	}
	ci := *i
	return &ci
}

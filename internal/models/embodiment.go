// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

// Package models defines the wire protocol and shared domain types for the
// relay: avatar embodiment data, the inbound message union, and the roster
// and callout broadcast shapes.
package models

import "time"

// Mat4 is a 4x4 transform matrix, 16 components in row-major order.
type Mat4 [16]float64

// Embodiment carries the three transforms that render a participant's avatar:
// head-mounted display plus left and right controllers. Desktop clients send
// their camera transform for all three.
type Embodiment struct {
	HMD             Mat4
	LeftController  Mat4
	RightController Mat4
}

// ParticipantState is the public view of one connected participant as held by
// the session registry. It never carries the connection handle.
type ParticipantState struct {
	Name        string
	Color       string
	Embodiment  *Embodiment
	JoinedAt    time.Time
	LastUpdated time.Time
}

// HasPose reports whether at least one pose update has been applied.
func (p *ParticipantState) HasPose() bool {
	return p.Embodiment != nil
}

// RosterEntry is one element of the periodic roster broadcast. Pose fields are
// omitted for participants that have identified but not yet embodied; clients
// distinguish roster packets from callout packets by the array shape, so there
// is no type tag.
type RosterEntry struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	HMDPosition *Mat4  `json:"HMDPosition,omitempty"`
	LController *Mat4  `json:"LController,omitempty"`
	RController *Mat4  `json:"RController,omitempty"`
}

// RosterEntryFrom builds a broadcastable entry from a registry snapshot state.
func RosterEntryFrom(p *ParticipantState) RosterEntry {
	e := RosterEntry{Name: p.Name, Color: p.Color}
	if p.Embodiment != nil {
		hmd, lc, rc := p.Embodiment.HMD, p.Embodiment.LeftController, p.Embodiment.RightController
		e.HMDPosition = &hmd
		e.LController = &lc
		e.RController = &rc
	}
	return e
}

// InterlocutorInfo is the per-participant shape of the roster query endpoint.
// Timestamps are millisecond epochs to match the browser clients.
type InterlocutorInfo struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	HMDPosition *Mat4  `json:"HMDPosition,omitempty"`
	LController *Mat4  `json:"LController,omitempty"`
	RController *Mat4  `json:"RController,omitempty"`
	TimeJoined  int64  `json:"timeJoined"`
	LastUpdated int64  `json:"lastUpdated,omitempty"`
}

// InterlocutorInfoFrom builds the roster query shape from a snapshot state.
func InterlocutorInfoFrom(p *ParticipantState) InterlocutorInfo {
	info := InterlocutorInfo{
		Name:       p.Name,
		Color:      p.Color,
		TimeJoined: p.JoinedAt.UnixMilli(),
	}
	if !p.LastUpdated.IsZero() {
		info.LastUpdated = p.LastUpdated.UnixMilli()
	}
	if p.Embodiment != nil {
		hmd, lc, rc := p.Embodiment.HMD, p.Embodiment.LeftController, p.Embodiment.RightController
		info.HMDPosition = &hmd
		info.LController = &lc
		info.RController = &rc
	}
	return info
}

// IdentityResponse is the reply of the identity allocation endpoint.
type IdentityResponse struct {
	Username string `json:"username"`
	Color    string `json:"color"`
}

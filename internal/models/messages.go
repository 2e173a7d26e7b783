// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Inbound message type tags. Embodiment messages carry no tag; they are the
// untagged default and are recognized by shape.
const (
	MessageTypeCalloutUpdate = "calloutUpdate"
	MessageTypeCallout       = "callout"
)

// EmbodimentMessage is the identify-or-pose message a client sends over its
// channel. Name and color alone identify; when all three matrices are present
// the message is additionally a pose update. A message with only some
// matrices set identifies but does not update the pose.
type EmbodimentMessage struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	HMDPosition *Mat4  `json:"HMDPosition,omitempty"`
	LController *Mat4  `json:"LController,omitempty"`
	RController *Mat4  `json:"RController,omitempty"`
}

// Identifies reports whether the message carries both identity fields.
func (m *EmbodimentMessage) Identifies() bool {
	return m.Name != "" && m.Color != ""
}

// HasPose reports whether all three transforms are present.
func (m *EmbodimentMessage) HasPose() bool {
	return m.HMDPosition != nil && m.LController != nil && m.RController != nil
}

// Position is a point in scene space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// CalloutUpdate is the inbound shared-annotation update. Position and
// PointIndex are null when the callout is being hidden.
type CalloutUpdate struct {
	Type       string    `json:"type" validate:"required,eq=calloutUpdate"`
	Visible    bool      `json:"visible"`
	Position   *Position `json:"position"`
	SealPath   string    `json:"sealPath"`
	PointIndex *int      `json:"pointIndex"`
	Name       string    `json:"name" validate:"required"`
}

// CalloutBroadcast is the outbound shared-annotation packet, sent to every
// channel except the one bound to TriggeredBy. LastUpdated is a millisecond
// epoch to match the browser clients.
type CalloutBroadcast struct {
	Type        string    `json:"type"`
	Visible     bool      `json:"visible"`
	Position    *Position `json:"position"`
	SealPath    string    `json:"sealPath"`
	PointIndex  *int      `json:"pointIndex"`
	TriggeredBy string    `json:"triggeredBy"`
	LastUpdated int64     `json:"lastUpdated"`
}

// Inbound is the decoded tagged union of client-to-server messages. Exactly
// one field is non-nil after a successful decode.
type Inbound struct {
	Embodiment *EmbodimentMessage
	Callout    *CalloutUpdate
}

// DecodeInbound parses a raw client frame into the message union. A frame
// that is not valid JSON, or not a JSON object, is an error; the caller
// replies with a textual error notice and keeps the connection open.
// Semantic problems inside an otherwise well-formed message (missing name,
// unknown participant) are not decode errors and are left to the dispatcher.
func DecodeInbound(data []byte) (Inbound, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Inbound{}, fmt.Errorf("unparseable message: %w", err)
	}

	if probe.Type == MessageTypeCalloutUpdate {
		var cu CalloutUpdate
		if err := json.Unmarshal(data, &cu); err != nil {
			return Inbound{}, fmt.Errorf("malformed callout update: %w", err)
		}
		return Inbound{Callout: &cu}, nil
	}

	var em EmbodimentMessage
	if err := json.Unmarshal(data, &em); err != nil {
		return Inbound{}, fmt.Errorf("malformed embodiment message: %w", err)
	}
	return Inbound{Embodiment: &em}, nil
}

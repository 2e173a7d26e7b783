// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

package models

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func testMat4() Mat4 {
	var m Mat4
	for i := range m {
		m[i] = float64(i)
	}
	return m
}

func TestDecodeInbound_Embodiment(t *testing.T) {
	raw := []byte(`{"name":"User-A1","color":"0xffc0cb"}`)

	in, err := DecodeInbound(raw)
	if err != nil {
		t.Fatalf("DecodeInbound returned error: %v", err)
	}
	if in.Callout != nil {
		t.Fatal("expected embodiment message, got callout")
	}
	if in.Embodiment == nil {
		t.Fatal("expected embodiment message, got nil")
	}
	if !in.Embodiment.Identifies() {
		t.Error("message with name and color should identify")
	}
	if in.Embodiment.HasPose() {
		t.Error("message without matrices should not have a pose")
	}
}

func TestDecodeInbound_EmbodimentWithPose(t *testing.T) {
	msg := EmbodimentMessage{Name: "User-B2", Color: "0x80ff80"}
	m := testMat4()
	msg.HMDPosition, msg.LController, msg.RController = &m, &m, &m

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	in, err := DecodeInbound(raw)
	if err != nil {
		t.Fatalf("DecodeInbound returned error: %v", err)
	}
	if !in.Embodiment.HasPose() {
		t.Error("expected full pose")
	}
	if got := in.Embodiment.HMDPosition[15]; got != 15 {
		t.Errorf("HMDPosition[15] = %v, want 15", got)
	}
}

func TestDecodeInbound_PartialPose(t *testing.T) {
	m := testMat4()
	msg := EmbodimentMessage{Name: "User-C3", Color: "0x80ff80", HMDPosition: &m}

	raw, _ := json.Marshal(msg)
	in, err := DecodeInbound(raw)
	if err != nil {
		t.Fatalf("DecodeInbound returned error: %v", err)
	}
	if in.Embodiment.HasPose() {
		t.Error("partial matrices must not count as a pose")
	}
	if !in.Embodiment.Identifies() {
		t.Error("partial pose message should still identify")
	}
}

func TestDecodeInbound_CalloutUpdate(t *testing.T) {
	raw := []byte(`{"type":"calloutUpdate","visible":true,` +
		`"position":{"x":1,"y":2,"z":3},"sealPath":"FatiguedFiona-A","pointIndex":42,"name":"B"}`)

	in, err := DecodeInbound(raw)
	if err != nil {
		t.Fatalf("DecodeInbound returned error: %v", err)
	}
	if in.Embodiment != nil {
		t.Fatal("expected callout, got embodiment")
	}
	cu := in.Callout
	if cu == nil {
		t.Fatal("expected callout, got nil")
	}
	if !cu.Visible || cu.SealPath != "FatiguedFiona-A" || cu.Name != "B" {
		t.Errorf("unexpected callout fields: %+v", cu)
	}
	if cu.PointIndex == nil || *cu.PointIndex != 42 {
		t.Errorf("pointIndex = %v, want 42", cu.PointIndex)
	}
	if cu.Position == nil || cu.Position.Z != 3 {
		t.Errorf("position = %+v, want z=3", cu.Position)
	}
}

func TestDecodeInbound_CalloutHide(t *testing.T) {
	raw := []byte(`{"type":"calloutUpdate","visible":false,"position":null,` +
		`"sealPath":"","pointIndex":null,"name":"A"}`)

	in, err := DecodeInbound(raw)
	if err != nil {
		t.Fatalf("DecodeInbound returned error: %v", err)
	}
	if in.Callout.Visible {
		t.Error("expected hidden callout")
	}
	if in.Callout.Position != nil || in.Callout.PointIndex != nil {
		t.Error("expected null position and pointIndex")
	}
}

func TestDecodeInbound_Malformed(t *testing.T) {
	for _, raw := range []string{"not json", "{truncated", `"a bare string"`, "[1,2,3]"} {
		if _, err := DecodeInbound([]byte(raw)); err == nil {
			t.Errorf("DecodeInbound(%q) should have failed", raw)
		}
	}
}

func TestRosterEntryFrom(t *testing.T) {
	identified := &ParticipantState{Name: "User-D4", Color: "0xaabbcc", JoinedAt: time.Now()}
	entry := RosterEntryFrom(identified)
	if entry.HMDPosition != nil || entry.LController != nil || entry.RController != nil {
		t.Error("entry for unposed participant must omit matrices")
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "HMDPosition") {
		t.Errorf("unposed entry leaked pose fields: %s", raw)
	}

	m := testMat4()
	embodied := &ParticipantState{
		Name: "User-E5", Color: "0xddeeff",
		Embodiment: &Embodiment{HMD: m, LeftController: m, RightController: m},
	}
	entry = RosterEntryFrom(embodied)
	if entry.HMDPosition == nil || entry.HMDPosition[3] != 3 {
		t.Errorf("expected pose in entry, got %+v", entry.HMDPosition)
	}
}

func TestInterlocutorInfoFrom(t *testing.T) {
	joined := time.Now().Add(-time.Minute)
	p := &ParticipantState{Name: "User-F6", Color: "0x808080", JoinedAt: joined}

	info := InterlocutorInfoFrom(p)
	if info.TimeJoined != joined.UnixMilli() {
		t.Errorf("TimeJoined = %d, want %d", info.TimeJoined, joined.UnixMilli())
	}
	if info.LastUpdated != 0 {
		t.Errorf("LastUpdated should be zero before any pose, got %d", info.LastUpdated)
	}
}

// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

package websocket

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/xrss/brahma/internal/callout"
	"github.com/xrss/brahma/internal/models"
	"github.com/xrss/brahma/internal/session"
)

// setupDispatcher wires a dispatcher over a running hub and fresh shared state.
func setupDispatcher(t *testing.T) (*Dispatcher, *session.Registry, *callout.Coordinator, *Hub) {
	t.Helper()
	hub := setupHub(t)
	registry := session.NewRegistry()
	coordinator := callout.NewCoordinator()
	return NewDispatcher(registry, coordinator, hub), registry, coordinator, hub
}

func identifyPayload(name, color string) []byte {
	return []byte(`{"name":"` + name + `","color":"` + color + `"}`)
}

func posePayload(name, color string) []byte {
	m := make([]string, 16)
	for i := range m {
		m[i] = "1"
	}
	mat := "[" + strings.Join(m, ",") + "]"
	return []byte(`{"name":"` + name + `","color":"` + color + `",` +
		`"HMDPosition":` + mat + `,"LController":` + mat + `,"RController":` + mat + `}`)
}

func TestDispatcher_MalformedMessage(t *testing.T) {
	dispatcher, registry, _, hub := setupDispatcher(t)

	client := createTestClient(hub)
	dispatcher.HandleMessage(client, []byte("not json at all"))

	select {
	case got := <-client.send:
		if string(got) != "Error: Invalid message format" {
			t.Errorf("got reply %q, want invalid-format notice", got)
		}
	default:
		t.Error("Expected an error reply on the sending channel")
	}

	if registry.Count() != 0 {
		t.Error("Malformed message must not create a participant")
	}
}

func TestDispatcher_IdentifyCreatesParticipant(t *testing.T) {
	dispatcher, registry, _, hub := setupDispatcher(t)

	client := createTestClient(hub)
	dispatcher.HandleMessage(client, identifyPayload("User-a1", "0xffc0cb"))

	if !registry.Has("User-a1") {
		t.Fatal("Expected participant to be registered")
	}

	snap := registry.Snapshot()
	if len(snap) != 1 || snap[0].Color != "0xffc0cb" {
		t.Errorf("Unexpected snapshot: %+v", snap)
	}
	if snap[0].Embodiment != nil {
		t.Error("Identify without matrices must not record a pose")
	}
}

func TestDispatcher_PoseUpdate(t *testing.T) {
	dispatcher, registry, _, hub := setupDispatcher(t)

	client := createTestClient(hub)
	dispatcher.HandleMessage(client, posePayload("User-b2", "0xc0ffee"))

	snap := registry.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("Expected 1 participant, got %d", len(snap))
	}
	if snap[0].Embodiment == nil {
		t.Fatal("Expected pose to be recorded")
	}
	if snap[0].Embodiment.HMD[0] != 1 {
		t.Errorf("Unexpected HMD matrix: %v", snap[0].Embodiment.HMD)
	}
}

func TestDispatcher_MissingIdentityIgnored(t *testing.T) {
	dispatcher, registry, _, hub := setupDispatcher(t)

	client := createTestClient(hub)
	dispatcher.HandleMessage(client, []byte(`{"name":"User-c3"}`))

	if registry.Count() != 0 {
		t.Error("Message without a color must be ignored")
	}

	select {
	case got := <-client.send:
		t.Errorf("Ignored message must not produce a reply, got %q", got)
	default:
	}
}

func TestDispatcher_CalloutExcludesSender(t *testing.T) {
	dispatcher, _, coordinator, hub := setupDispatcher(t)

	sender := createTestClient(hub)
	observer := createTestClient(hub)
	registerClient(hub, sender)
	registerClient(hub, observer)

	dispatcher.HandleMessage(sender, identifyPayload("User-d4", "0xffc0cb"))
	dispatcher.HandleMessage(observer, identifyPayload("User-e5", "0xc0ffee"))

	update := []byte(`{"type":"calloutUpdate","visible":true,` +
		`"position":{"x":1,"y":2,"z":3},"sealPath":"seals/hooded/07.json",` +
		`"pointIndex":42,"name":"User-d4"}`)
	dispatcher.HandleMessage(sender, update)
	time.Sleep(20 * time.Millisecond)

	state := coordinator.Snapshot()
	if !state.Visible || state.TriggeredBy != "User-d4" {
		t.Errorf("Coordinator state not applied: %+v", state)
	}
	if state.SealPath != "seals/hooded/07.json" {
		t.Errorf("Unexpected seal path %q", state.SealPath)
	}

	select {
	case got := <-sender.send:
		t.Errorf("Sender must not receive its own callout, got %q", got)
	default:
	}

	select {
	case got := <-observer.send:
		var b models.CalloutBroadcast
		if err := json.Unmarshal(got, &b); err != nil {
			t.Fatalf("Broadcast not valid JSON: %v", err)
		}
		if b.Type != models.MessageTypeCallout {
			t.Errorf("got type %q, want %q", b.Type, models.MessageTypeCallout)
		}
		if b.TriggeredBy != "User-d4" || !b.Visible {
			t.Errorf("Unexpected broadcast: %+v", b)
		}
		if b.PointIndex == nil || *b.PointIndex != 42 {
			t.Errorf("Unexpected point index: %v", b.PointIndex)
		}
	default:
		t.Error("Observer did not receive the callout broadcast")
	}
}

func TestDispatcher_CalloutHide(t *testing.T) {
	dispatcher, _, coordinator, hub := setupDispatcher(t)

	observer := createTestClient(hub)
	registerClient(hub, observer)

	dispatcher.HandleMessage(createTestClient(hub),
		[]byte(`{"type":"calloutUpdate","visible":false,"position":null,`+
			`"sealPath":"","pointIndex":null,"name":"User-f6"}`))
	time.Sleep(20 * time.Millisecond)

	state := coordinator.Snapshot()
	if state.Visible {
		t.Error("Expected callout to be hidden")
	}
	if state.Position != nil || state.PointIndex != nil {
		t.Errorf("Hide must clear position fields: %+v", state)
	}

	select {
	case got := <-observer.send:
		var b models.CalloutBroadcast
		if err := json.Unmarshal(got, &b); err != nil {
			t.Fatalf("Broadcast not valid JSON: %v", err)
		}
		if b.Visible {
			t.Error("Broadcast should carry the hidden state")
		}
	default:
		t.Error("Hide update should still be broadcast")
	}
}

func TestDispatcher_CalloutMissingNameIgnored(t *testing.T) {
	dispatcher, _, coordinator, hub := setupDispatcher(t)

	observer := createTestClient(hub)
	registerClient(hub, observer)

	dispatcher.HandleMessage(createTestClient(hub),
		[]byte(`{"type":"calloutUpdate","visible":true}`))
	time.Sleep(20 * time.Millisecond)

	if coordinator.Snapshot().Visible {
		t.Error("Invalid callout update must not change state")
	}
	select {
	case <-observer.send:
		t.Error("Invalid callout update must not be broadcast")
	default:
	}
}

func TestDispatcher_HandleClose(t *testing.T) {
	dispatcher, registry, _, hub := setupDispatcher(t)

	client := createTestClient(hub)
	dispatcher.HandleMessage(client, identifyPayload("User-g7", "0xffc0cb"))
	if registry.Count() != 1 {
		t.Fatal("Expected participant before close")
	}

	dispatcher.HandleClose(client)
	if registry.Count() != 0 {
		t.Error("Expected participant removed on close")
	}

	// Closing an already-removed channel is a no-op
	dispatcher.HandleClose(client)
}

func TestDispatcher_HandleCloseAfterRebind(t *testing.T) {
	dispatcher, registry, _, hub := setupDispatcher(t)

	old := createTestClient(hub)
	dispatcher.HandleMessage(old, identifyPayload("User-h8", "0xffc0cb"))

	// A reconnect rebinds the name to a fresh channel
	fresh := createTestClient(hub)
	dispatcher.HandleMessage(fresh, identifyPayload("User-h8", "0xffc0cb"))

	// The stale channel's close must not evict the rebound participant
	dispatcher.HandleClose(old)
	if !registry.Has("User-h8") {
		t.Error("Stale channel close evicted the rebound participant")
	}
}

// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gws "github.com/gorilla/websocket"

	"github.com/xrss/brahma/internal/callout"
	"github.com/xrss/brahma/internal/config"
	"github.com/xrss/brahma/internal/identity"
	"github.com/xrss/brahma/internal/logging"
	"github.com/xrss/brahma/internal/models"
	"github.com/xrss/brahma/internal/session"
	ws "github.com/xrss/brahma/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// setupHandler wires a handler over fresh state with a running hub.
func setupHandler(t *testing.T) (*Handler, *session.Registry) {
	t.Helper()

	cfg := config.Default()
	registry := session.NewRegistry()
	allocator := identity.NewAllocator(registry, cfg.Session.NamePrefix, cfg.Session.NameSuffixLength)
	hub := ws.NewHub()
	dispatcher := ws.NewDispatcher(registry, callout.NewCoordinator(), hub)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.RunWithContext(ctx) }()

	return NewHandler(cfg, registry, allocator, hub, dispatcher), registry
}

// fakeChannel satisfies session.Channel for seeding the registry in tests.
type fakeChannel struct{}

func (fakeChannel) Send(p []byte) bool { return true }

func TestUniqueIdentity(t *testing.T) {
	handler, _ := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/uniqueUsernameAndColor", nil)
	rec := httptest.NewRecorder()
	handler.UniqueIdentity(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}

	var resp models.IdentityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}

	if !strings.HasPrefix(resp.Username, "User-") {
		t.Errorf("expected User- prefix, got %q", resp.Username)
	}
	if len(resp.Username) != len("User-")+2 {
		t.Errorf("expected 2-char suffix, got %q", resp.Username)
	}
	if !strings.HasPrefix(resp.Color, "0x") || len(resp.Color) != 8 {
		t.Errorf("expected 0xRRGGBB color, got %q", resp.Color)
	}
}

func TestUniqueIdentity_AvoidsActiveNames(t *testing.T) {
	handler, registry := setupHandler(t)

	// Allocation must never collide with a live participant. With a 2-char
	// suffix the space is small enough to probe a few times.
	registry.Identify(fakeChannel{}, "User-aa", "0xffc0cb")

	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		handler.UniqueIdentity(rec, httptest.NewRequest(http.MethodGet, "/uniqueUsernameAndColor", nil))

		var resp models.IdentityResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid JSON response: %v", err)
		}
		if resp.Username == "User-aa" {
			t.Fatal("allocated a name already in use")
		}
	}
}

func TestActiveInterlocutors(t *testing.T) {
	handler, registry := setupHandler(t)

	rec := httptest.NewRecorder()
	handler.ActiveInterlocutors(rec, httptest.NewRequest(http.MethodGet, "/activeInterlocutors", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "{}" {
		t.Errorf("expected empty object, got %q", body)
	}

	registry.Identify(fakeChannel{}, "User-b1", "0xc0ffee")

	rec = httptest.NewRecorder()
	handler.ActiveInterlocutors(rec, httptest.NewRequest(http.MethodGet, "/activeInterlocutors", nil))

	var out map[string]models.InterlocutorInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	info, ok := out["User-b1"]
	if !ok {
		t.Fatalf("expected User-b1 in response, got %v", out)
	}
	if info.Color != "0xc0ffee" {
		t.Errorf("expected color 0xc0ffee, got %q", info.Color)
	}
	if info.TimeJoined == 0 {
		t.Error("expected timeJoined to be set")
	}
}

func TestWebSocket_EndToEnd(t *testing.T) {
	handler, registry := setupHandler(t)
	router := NewRouter(handler)

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := gws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	// Identify over the channel, then expect a roster to eventually be
	// observable through the registry.
	msg := []byte(`{"name":"User-c2","color":"0xffc0cb"}`)
	if err := conn.WriteMessage(gws.TextMessage, msg); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for !registry.Has("User-c2") {
		if time.Now().After(deadline) {
			t.Fatal("participant was not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// A malformed frame gets the error notice back on the same channel
	if err := conn.WriteMessage(gws.TextMessage, []byte("garbage{")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	_, reply, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(reply) != "Error: Invalid message format" {
		t.Errorf("got reply %q", reply)
	}
}

func TestWebSocket_OriginRejected(t *testing.T) {
	handler, _ := setupHandler(t)
	handler.config.Security.CORSOrigins = []string{"https://viz.example.org"}

	router := NewRouter(handler)
	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"https://evil.example.net"}}
	conn, resp, err := gws.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		conn.Close()
		t.Fatal("expected dial to fail for disallowed origin")
	}
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected 403, got %d", resp.StatusCode)
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	handler, _ := setupHandler(t)
	router := NewRouter(handler)

	for _, path := range []string{"/healthz/live", "/healthz/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/ready", nil))
	var ready map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &ready); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if ready["status"] != "ready" {
		t.Errorf("unexpected readiness payload: %v", ready)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler, _ := setupHandler(t)
	router := NewRouter(handler)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_") {
		t.Error("expected prometheus exposition output")
	}
}

func TestRouter_RequestIDHeader(t *testing.T) {
	handler, _ := setupHandler(t)
	router := NewRouter(handler)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/live", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

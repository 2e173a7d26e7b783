// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

package identity

import (
	"strconv"
	"strings"
	"testing"
)

// mapRoster is a Roster backed by a plain set.
type mapRoster map[string]bool

func (m mapRoster) Has(name string) bool { return m[name] }

func TestAllocateName_Format(t *testing.T) {
	a := NewAllocator(mapRoster{}, "User-", 2)

	for i := 0; i < 50; i++ {
		name := a.AllocateName()
		if !strings.HasPrefix(name, "User-") {
			t.Fatalf("name %q missing prefix", name)
		}
		suffix := strings.TrimPrefix(name, "User-")
		if len(suffix) != 2 {
			t.Fatalf("suffix %q should be 2 chars", suffix)
		}
		for _, c := range suffix {
			if !strings.ContainsRune(alphanumeric, c) {
				t.Fatalf("suffix char %q outside alphabet", c)
			}
		}
	}
}

func TestAllocateName_AvoidsLiveRoster(t *testing.T) {
	// Occupy most of the 36^2 space to force retries.
	roster := mapRoster{}
	for i, c1 := range alphanumeric {
		for j, c2 := range alphanumeric {
			// Leave a handful of names free.
			if (i+j)%100 != 0 {
				roster["User-"+string(c1)+string(c2)] = true
			}
		}
	}

	a := NewAllocator(roster, "User-", 2)
	for i := 0; i < 200; i++ {
		if name := a.AllocateName(); roster.Has(name) {
			t.Fatalf("allocated name %q collides with live roster", name)
		}
	}
}

func TestAllocateColor_Pastel(t *testing.T) {
	a := NewAllocator(mapRoster{}, "User-", 2)

	for i := 0; i < 100; i++ {
		color := a.AllocateColor()
		if !strings.HasPrefix(color, "0x") || len(color) != 8 {
			t.Fatalf("color %q not in 0xRRGGBB form", color)
		}
		for j := 2; j < 8; j += 2 {
			component, err := strconv.ParseInt(color[j:j+2], 16, 32)
			if err != nil {
				t.Fatalf("color %q has non-hex component: %v", color, err)
			}
			if component < 127 || component > 254 {
				t.Fatalf("component %d of %q outside pastel range [127,254]", component, color)
			}
		}
	}
}

func TestNewAllocator_SuffixLengthFloor(t *testing.T) {
	a := NewAllocator(mapRoster{}, "User-", 0)
	if got := len(strings.TrimPrefix(a.AllocateName(), "User-")); got != 2 {
		t.Errorf("suffix length = %d, want default 2", got)
	}
}

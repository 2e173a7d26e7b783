// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

// Package identity generates collision-free display names and pastel colors
// for newcomers. Allocation has no side effect on the roster; the client must
// still identify over its channel to occupy the name.
package identity

import (
	"fmt"
	"math/rand"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Roster is the live-name lookup the allocator checks candidates against.
// Satisfied by *session.Registry.
type Roster interface {
	Has(name string) bool
}

// Allocator produces unique usernames and display colors.
type Allocator struct {
	roster       Roster
	prefix       string
	suffixLength int
}

// NewAllocator creates an allocator that avoids names present in roster.
func NewAllocator(roster Roster, prefix string, suffixLength int) *Allocator {
	if suffixLength < 1 {
		suffixLength = 2
	}
	return &Allocator{
		roster:       roster,
		prefix:       prefix,
		suffixLength: suffixLength,
	}
}

// AllocateName returns a username absent from the live roster, retrying with
// fresh random suffixes until one is free. With the default two-char suffix
// the candidate space is 36^2 against a roster of at most a few dozen, so the
// loop terminates quickly in practice.
func (a *Allocator) AllocateName() string {
	for {
		candidate := a.prefix + randomSuffix(a.suffixLength)
		if !a.roster.Has(candidate) {
			return candidate
		}
	}
}

// AllocateColor returns a random pastel color packed as "0xRRGGBB". Each
// channel is sampled from the upper half of the byte range, which keeps
// avatars readable against the dark bathymetry scene.
func (a *Allocator) AllocateColor() string {
	r := pastelComponent()
	g := pastelComponent()
	b := pastelComponent()
	return fmt.Sprintf("0x%02x%02x%02x", r, g, b)
}

// Allocate returns a fresh (name, color) pair.
func (a *Allocator) Allocate() (string, string) {
	return a.AllocateName(), a.AllocateColor()
}

func randomSuffix(length int) string {
	suffix := make([]byte, length)
	for i := range suffix {
		suffix[i] = alphanumeric[rand.Intn(len(alphanumeric))]
	}
	return string(suffix)
}

// pastelComponent samples one color channel from [127, 255).
func pastelComponent() int {
	return rand.Intn(128) + 127
}

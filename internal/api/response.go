// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/xrss/brahma/internal/logging"
)

// respondJSON writes v as the raw response body. The identity and roster
// endpoints predate this server and their clients expect bare shapes, so
// there is no envelope wrapper.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

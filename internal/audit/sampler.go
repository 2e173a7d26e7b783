// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

package audit

import (
	"context"
	"time"

	"github.com/xrss/brahma/internal/logging"
	"github.com/xrss/brahma/internal/metrics"
	"github.com/xrss/brahma/internal/models"
)

// Snapshotter provides the roster state the sampler flattens into the log.
// Satisfied by *session.Registry.
type Snapshotter interface {
	Snapshot() []models.ParticipantState
}

// Sampler periodically flattens the roster into the tracking log. It
// implements suture.Service and runs on its own timer, decoupled from both
// the inbound message rate and the roster broadcast cadence.
type Sampler struct {
	writer   *Writer
	registry Snapshotter
	interval time.Duration
}

// NewSampler creates a sampler appending to writer every interval.
func NewSampler(writer *Writer, registry Snapshotter, interval time.Duration) *Sampler {
	return &Sampler{
		writer:   writer,
		registry: registry,
		interval: interval,
	}
}

// Serve implements suture.Service. It samples until the context is canceled.
// A failed append is logged and counted but does not abort the timer; the
// next tick gets a fresh chance.
func (s *Sampler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logging.Info().
		Str("path", s.writer.Path()).
		Dur("interval", s.interval).
		Msg("tracking log sampler started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "audit-sampler").Msg("tracking log sampler stopped")
			return ctx.Err()

		case now := <-ticker.C:
			rows, err := s.writer.Append(now, s.registry.Snapshot())
			if err != nil {
				metrics.AuditWriteErrors.Inc()
				logging.Error().Err(err).Msg("tracking log append failed")
				continue
			}
			metrics.AuditRowsWritten.Add(float64(rows))
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *Sampler) String() string {
	return "audit-sampler"
}

// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

// Package metrics provides Prometheus instrumentation for the relay:
// channel lifecycle, inbound message dispatch, broadcast fan-out, and the
// tracking log.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Channel Metrics
	ActiveChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "brahma_active_channels",
			Help: "Current number of open participant channels",
		},
	)

	ActiveParticipants = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "brahma_active_participants",
			Help: "Current number of identified participants in the registry",
		},
	)

	// Inbound Message Metrics
	InboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brahma_inbound_messages_total",
			Help: "Total inbound channel messages by type and outcome",
		},
		[]string{"type", "outcome"}, // type: embodiment, callout; outcome: applied, ignored, malformed
	)

	// Broadcast Metrics
	RosterBroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "brahma_roster_broadcast_duration_seconds",
			Help:    "Time to snapshot, serialize, and enqueue one roster broadcast tick",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
		},
	)

	RosterBroadcastFanout = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brahma_roster_broadcast_messages_total",
			Help: "Total roster packets enqueued across all channels",
		},
	)

	CalloutBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brahma_callout_broadcasts_total",
			Help: "Total callout broadcasts triggered by annotation updates",
		},
	)

	DroppedSends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brahma_dropped_sends_total",
			Help: "Total outbound packets dropped due to a full or closed channel buffer",
		},
	)

	// Audit Metrics
	AuditRowsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brahma_audit_rows_total",
			Help: "Total rows appended to the tracking log",
		},
	)

	AuditWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brahma_audit_write_errors_total",
			Help: "Total failed tracking log appends",
		},
	)

	// HTTP Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brahma_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brahma_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)
)

// Inbound message metric label values.
const (
	MessageEmbodiment = "embodiment"
	MessageCallout    = "callout"

	OutcomeApplied   = "applied"
	OutcomeIgnored   = "ignored"
	OutcomeMalformed = "malformed"
)

// RecordInbound records an inbound message dispatch outcome.
func RecordInbound(messageType, outcome string) {
	InboundMessages.WithLabelValues(messageType, outcome).Inc()
}

// RecordAPIRequest records metrics for a completed API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

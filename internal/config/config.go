// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

// Package config loads and validates the relay configuration using Koanf v2
// with layered sources: built-in defaults, an optional YAML file, then
// environment variables (highest priority).
package config

import (
	"fmt"
	"time"

	"github.com/xrss/brahma/internal/validation"
)

// Config is the root configuration for the relay.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Session  SessionConfig  `koanf:"session"`
	Audit    AuditConfig    `koanf:"audit"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds the HTTP/WebSocket listener settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`

	// TLSCert and TLSKey are PEM file paths. Both must be set for a TLS
	// listener; when both are empty the server falls back to plain HTTP,
	// which is intended for development only.
	TLSCert string `koanf:"tls_cert"`
	TLSKey  string `koanf:"tls_key"`

	// ShutdownTimeout bounds graceful HTTP drain at shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// SessionConfig holds the presence-layer cadences and identity settings.
type SessionConfig struct {
	// BroadcastInterval is the roster dissemination period. The default of
	// ~33ms gives the 30 Hz cadence the avatars are smoothed against.
	BroadcastInterval time.Duration `koanf:"broadcast_interval"`

	// AuditInterval is the tracking-log sampling period (4 Hz default).
	AuditInterval time.Duration `koanf:"audit_interval"`

	// NamePrefix is prepended to allocated usernames.
	NamePrefix string `koanf:"name_prefix" validate:"required"`

	// NameSuffixLength is the count of random alphanumeric suffix chars.
	// Two chars give a 36^2 space, plenty for the expected roster sizes.
	NameSuffixLength int `koanf:"name_suffix_length" validate:"min=1,max=8"`
}

// AuditConfig holds the append-only tracking log settings.
type AuditConfig struct {
	// Dir is the directory the date-stamped CSV files are written to.
	Dir string `koanf:"dir" validate:"required"`

	// FilePrefix names the daily files: <prefix>_MM-DD-YYYY.csv.
	FilePrefix string `koanf:"file_prefix" validate:"required"`
}

// SecurityConfig holds CORS and rate limiting settings. Authentication is
// deliberately absent; the relay trusts its network boundary.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return fmt.Errorf("server.tls_cert and server.tls_key must be set together")
	}

	if c.Session.BroadcastInterval <= 0 {
		return fmt.Errorf("session.broadcast_interval must be positive, got %v", c.Session.BroadcastInterval)
	}
	if c.Session.AuditInterval <= 0 {
		return fmt.Errorf("session.audit_interval must be positive, got %v", c.Session.AuditInterval)
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("security.rate_limit_window must be positive, got %v", c.Security.RateLimitWindow)
	}

	return nil
}

// TLSEnabled reports whether the listener should serve TLS.
func (s *ServerConfig) TLSEnabled() bool {
	return s.TLSCert != "" && s.TLSKey != ""
}

// Addr returns the host:port listen address.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

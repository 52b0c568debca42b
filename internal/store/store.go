// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package store persists operator state: routing-table overrides applied
// at runtime, provider enable/disable flips, and the audit trail of who
// changed what. Health state is deliberately not persisted — the engine
// starts every provider healthy after a restart.
package store

import (
	"context"
	"time"
)

// Audit actions recorded by the engine.
const (
	AuditActionFeatureUpdated   = "feature.updated"
	AuditActionProviderEnabled  = "provider.enabled"
	AuditActionProviderDisabled = "provider.disabled"
)

// FeatureOverride is the full resolved routing config for one feature as
// last applied by an operator. On startup overrides are replayed on top
// of the file config.
type FeatureOverride struct {
	Feature     string    `json:"feature"`
	Primary     string    `json:"primary"`
	Fallbacks   []string  `json:"fallbacks,omitempty"`
	MaxRetries  int       `json:"max_retries"`
	CostCeiling float64   `json:"cost_ceiling,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProviderState records an operator's enable/disable decision for one
// provider.
type ProviderState struct {
	Provider  string    `json:"provider"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuditEntry is one operator action in the audit trail.
type AuditEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	Feature   string         `json:"feature,omitempty"`
	Provider  string         `json:"provider,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// AuditFilter narrows an audit query. Zero fields match everything.
type AuditFilter struct {
	Action   string
	Actor    string
	Feature  string
	Provider string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// StateStore persists operator state across restarts.
type StateStore interface {
	SaveFeatureOverride(ctx context.Context, o *FeatureOverride) error
	GetFeatureOverride(ctx context.Context, feature string) (*FeatureOverride, error)
	ListFeatureOverrides(ctx context.Context) ([]*FeatureOverride, error)
	DeleteFeatureOverride(ctx context.Context, feature string) error

	SaveProviderState(ctx context.Context, s *ProviderState) error
	ListProviderStates(ctx context.Context) ([]*ProviderState, error)

	AppendAudit(ctx context.Context, entry *AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)

	Close() error
}

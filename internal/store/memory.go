// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// defaultAuditLimit caps audit queries that do not specify a limit.
const defaultAuditLimit = 1000

func init() {
	RegisterBackend("memory", func(string) (StateStore, error) {
		return NewMemoryStore(), nil
	})
}

// Compile-time interface check.
var _ StateStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory StateStore for tests and ephemeral runs.
// Nothing survives process exit.
type MemoryStore struct {
	mu        sync.RWMutex
	overrides map[string]*FeatureOverride
	providers map[string]*ProviderState
	audit     []*AuditEntry
}

// NewMemoryStore creates an empty in-memory state store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		overrides: map[string]*FeatureOverride{},
		providers: map[string]*ProviderState{},
	}
}

func (m *MemoryStore) SaveFeatureOverride(_ context.Context, o *FeatureOverride) error {
	if o == nil || strings.TrimSpace(o.Feature) == "" {
		return fmt.Errorf("feature override requires a feature name: %w", ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[o.Feature] = cloneOverride(o)
	return nil
}

func (m *MemoryStore) GetFeatureOverride(_ context.Context, feature string) (*FeatureOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.overrides[feature]
	if !ok {
		return nil, fmt.Errorf("feature override %s: %w", feature, ErrNotFound)
	}
	return cloneOverride(o), nil
}

func (m *MemoryStore) ListFeatureOverrides(_ context.Context) ([]*FeatureOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*FeatureOverride, 0, len(m.overrides))
	for _, o := range m.overrides {
		out = append(out, cloneOverride(o))
	}
	slices.SortFunc(out, func(a, b *FeatureOverride) int {
		return strings.Compare(a.Feature, b.Feature)
	})
	return out, nil
}

func (m *MemoryStore) DeleteFeatureOverride(_ context.Context, feature string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.overrides[feature]; !ok {
		return fmt.Errorf("feature override %s: %w", feature, ErrNotFound)
	}
	delete(m.overrides, feature)
	return nil
}

func (m *MemoryStore) SaveProviderState(_ context.Context, s *ProviderState) error {
	if s == nil || strings.TrimSpace(s.Provider) == "" {
		return fmt.Errorf("provider state requires a provider id: %w", ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.providers[s.Provider] = &cp
	return nil
}

func (m *MemoryStore) ListProviderStates(_ context.Context) ([]*ProviderState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ProviderState, 0, len(m.providers))
	for _, s := range m.providers {
		cp := *s
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *ProviderState) int {
		return strings.Compare(a.Provider, b.Provider)
	})
	return out, nil
}

func (m *MemoryStore) AppendAudit(_ context.Context, entry *AuditEntry) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("audit entry requires an id: %w", ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, cloneAudit(entry))
	return nil
}

func (m *MemoryStore) QueryAudit(_ context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*AuditEntry
	for _, e := range m.audit {
		if auditMatches(e, filter) {
			matched = append(matched, e)
		}
	}
	slices.SortStableFunc(matched, func(a, b *AuditEntry) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	start := min(filter.Offset, len(matched))
	end := min(start+limit, len(matched))

	out := make([]*AuditEntry, 0, end-start)
	for _, e := range matched[start:end] {
		out = append(out, cloneAudit(e))
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

// auditMatches reports whether e passes every non-zero filter field.
// The To bound is exclusive, matching the SQLite backend.
func auditMatches(e *AuditEntry, f AuditFilter) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if f.Feature != "" && e.Feature != f.Feature {
		return false
	}
	if f.Provider != "" && e.Provider != f.Provider {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.Timestamp.Before(f.To) {
		return false
	}
	return true
}

func cloneOverride(o *FeatureOverride) *FeatureOverride {
	cp := *o
	cp.Fallbacks = slices.Clone(o.Fallbacks)
	return &cp
}

func cloneAudit(e *AuditEntry) *AuditEntry {
	cp := *e
	cp.Details = maps.Clone(e.Details)
	return &cp
}

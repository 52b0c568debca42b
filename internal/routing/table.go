// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package routing

import (
	"slices"
	"strings"
	"sync"

	"github.com/switchyard-dev/switchyard/internal/catalog"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// FeatureConfig maps one product feature to its ordered provider chain.
type FeatureConfig struct {
	Feature string `json:"feature"`

	// Primary is tried first on every selection.
	Primary string `json:"primary"`

	// Fallbacks are tried in order when the primary is excluded.
	Fallbacks []string `json:"fallbacks,omitempty"`

	// MaxRetries caps how many providers a caller should attempt for one
	// request. Zero means no cap beyond the chain length.
	MaxRetries int `json:"max_retries"`

	// CostCeiling excludes providers whose unit cost exceeds it.
	// Zero means no ceiling.
	CostCeiling float64 `json:"cost_ceiling,omitempty"`
}

// Chain returns the full candidate order: primary first, then fallbacks.
func (fc FeatureConfig) Chain() []string {
	chain := make([]string, 0, 1+len(fc.Fallbacks))
	chain = append(chain, fc.Primary)
	chain = append(chain, fc.Fallbacks...)
	return chain
}

// MaxAttempts returns how many providers a caller may try for one
// request: the chain length, capped by MaxRetries when set.
func (fc FeatureConfig) MaxAttempts() int {
	attempts := 1 + len(fc.Fallbacks)
	if fc.MaxRetries > 0 && fc.MaxRetries < attempts {
		return fc.MaxRetries
	}
	return attempts
}

// FeatureUpdate is a partial update to a feature's routing config. Nil
// fields keep their current value.
type FeatureUpdate struct {
	Primary     *string   `json:"primary,omitempty"`
	Fallbacks   *[]string `json:"fallbacks,omitempty"`
	MaxRetries  *int      `json:"max_retries,omitempty"`
	CostCeiling *float64  `json:"cost_ceiling,omitempty"`
}

// Table is the runtime-mutable feature → provider-chain mapping. Every
// provider reference is validated against the catalog before it is
// accepted, so the router never reads a chain pointing at an unknown id.
type Table struct {
	mu          sync.RWMutex
	features    map[string]*FeatureConfig
	catalog     *catalog.Catalog
	allowCreate bool
}

// TableOption customizes Table construction.
type TableOption func(*Table)

// WithCreateOnUpdate lets Update create features that were not declared
// at startup instead of rejecting them.
func WithCreateOnUpdate() TableOption {
	return func(t *Table) { t.allowCreate = true }
}

// NewTable creates a Table over the given catalog and validates every
// initial feature config against it.
func NewTable(cat *catalog.Catalog, features []FeatureConfig, opts ...TableOption) (*Table, error) {
	t := &Table{
		features: make(map[string]*FeatureConfig, len(features)),
		catalog:  cat,
	}
	for _, opt := range opts {
		opt(t)
	}

	for _, fc := range features {
		if err := t.validate(fc); err != nil {
			return nil, err
		}
		if _, ok := t.features[fc.Feature]; ok {
			return nil, syerr.New(
				syerr.CodeRoutingFeatureInvalid,
				"duplicate feature: "+fc.Feature,
				syerr.FieldFeature(fc.Feature),
			)
		}
		cp := fc
		cp.Fallbacks = slices.Clone(fc.Fallbacks)
		t.features[fc.Feature] = &cp
	}
	return t, nil
}

// Get returns a copy of the feature's routing config.
func (t *Table) Get(feature string) (FeatureConfig, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	fc, ok := t.features[feature]
	if !ok {
		return FeatureConfig{}, syerr.New(
			syerr.CodeRoutingFeatureNotFound,
			"feature not found: "+feature,
			syerr.FieldFeature(feature),
		)
	}
	cp := *fc
	cp.Fallbacks = slices.Clone(fc.Fallbacks)
	return cp, nil
}

// Update applies a partial update atomically: the merged config is
// validated in full before it replaces the current one, so a rejected
// update leaves the feature exactly as it was. Concurrent selections keep
// reading the old config until the swap.
func (t *Table) Update(feature string, upd FeatureUpdate) (FeatureConfig, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.features[feature]
	if !ok && !t.allowCreate {
		return FeatureConfig{}, syerr.New(
			syerr.CodeRoutingFeatureNotFound,
			"feature not found: "+feature,
			syerr.FieldFeature(feature),
		)
	}

	var next FeatureConfig
	if ok {
		next = *cur
		next.Fallbacks = slices.Clone(cur.Fallbacks)
	} else {
		next = FeatureConfig{Feature: feature}
	}

	if upd.Primary != nil {
		next.Primary = *upd.Primary
	}
	if upd.Fallbacks != nil {
		next.Fallbacks = slices.Clone(*upd.Fallbacks)
	}
	if upd.MaxRetries != nil {
		next.MaxRetries = *upd.MaxRetries
	}
	if upd.CostCeiling != nil {
		next.CostCeiling = *upd.CostCeiling
	}

	if err := t.validate(next); err != nil {
		return FeatureConfig{}, err
	}

	t.features[feature] = &next
	cp := next
	cp.Fallbacks = slices.Clone(next.Fallbacks)
	return cp, nil
}

// Features returns copies of all feature configs sorted by name.
func (t *Table) Features() []FeatureConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]FeatureConfig, 0, len(t.features))
	for _, fc := range t.features {
		cp := *fc
		cp.Fallbacks = slices.Clone(fc.Fallbacks)
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b FeatureConfig) int {
		return strings.Compare(a.Feature, b.Feature)
	})
	return out
}

// Len returns the number of configured features.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.features)
}

// validate checks a full feature config against the catalog. Chains must
// not repeat a provider: a duplicate entry would just be retried with the
// identical result.
func (t *Table) validate(fc FeatureConfig) error {
	if strings.TrimSpace(fc.Feature) == "" {
		return syerr.New(syerr.CodeRoutingFeatureInvalid, "feature name must not be empty")
	}
	if fc.Primary == "" {
		return syerr.New(
			syerr.CodeRoutingFeatureInvalid,
			"feature "+fc.Feature+": primary provider must be set",
			syerr.FieldFeature(fc.Feature),
		)
	}
	if fc.MaxRetries < 0 {
		return syerr.Errorf(syerr.CodeRoutingFeatureInvalid,
			"feature %s: max retries must be non-negative, got %d", fc.Feature, fc.MaxRetries)
	}
	if fc.CostCeiling < 0 {
		return syerr.Errorf(syerr.CodeRoutingFeatureInvalid,
			"feature %s: cost ceiling must be non-negative, got %v", fc.Feature, fc.CostCeiling)
	}

	seen := make(map[string]struct{}, 1+len(fc.Fallbacks))
	for _, id := range fc.Chain() {
		if _, err := t.catalog.Get(id); err != nil {
			return syerr.New(
				syerr.CodeRoutingFeatureInvalid,
				"feature "+fc.Feature+": unknown provider: "+id,
				syerr.FieldFeature(fc.Feature),
				syerr.FieldProvider(id),
			)
		}
		if _, dup := seen[id]; dup {
			return syerr.New(
				syerr.CodeRoutingFeatureInvalid,
				"feature "+fc.Feature+": provider repeated in chain: "+id,
				syerr.FieldFeature(fc.Feature),
				syerr.FieldProvider(id),
			)
		}
		seen[id] = struct{}{}
	}
	return nil
}

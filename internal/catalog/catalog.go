// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package catalog holds the set of upstream providers the routing engine
// can hand traffic to. The catalog is loaded once at startup; the only
// runtime mutation is flipping a provider's active flag.
package catalog

import (
	"slices"
	"strings"
	"sync"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// Category classifies what kind of work a provider can serve.
type Category string

const (
	CategoryTextGeneration  Category = "text-generation"
	CategorySpeechSynthesis Category = "speech-synthesis"
	CategoryTranslation     Category = "translation"
	CategoryTranscription   Category = "transcription"
	CategoryImageGeneration Category = "image-generation"
)

// Categories returns all known categories in display order.
func Categories() []Category {
	return []Category{
		CategoryTextGeneration,
		CategorySpeechSynthesis,
		CategoryTranslation,
		CategoryTranscription,
		CategoryImageGeneration,
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryTextGeneration, CategorySpeechSynthesis, CategoryTranslation,
		CategoryTranscription, CategoryImageGeneration:
		return true
	}
	return false
}

// Cost buckets group providers by per-unit cost for status reporting.
const (
	CostBucketFree     = "free"
	CostBucketLow      = "low"
	CostBucketStandard = "standard"
	CostBucketPremium  = "premium"
)

// CostBucket classifies a per-unit cost: free (0), low (< $1),
// standard (< $5), premium (>= $5).
func CostBucket(unitCost float64) string {
	switch {
	case unitCost == 0:
		return CostBucketFree
	case unitCost < 1:
		return CostBucketLow
	case unitCost < 5:
		return CostBucketStandard
	default:
		return CostBucketPremium
	}
}

// Provider describes a single upstream capacity the router can select.
type Provider struct {
	ID       string   `json:"id"`
	Category Category `json:"category"`

	// UnitCost is the per-unit cost in USD, used by feature cost ceilings
	// and for bucketing in status output.
	UnitCost float64 `json:"unit_cost"`

	// Capacity is the advertised max concurrent requests. Informational:
	// the router does not throttle on it.
	Capacity int `json:"capacity"`

	// Priority orders providers in listings and when seeding feature
	// chains (lower sorts first). Selection order at runtime comes from
	// the routing table, never from Priority.
	Priority int `json:"priority"`

	Active bool `json:"active"`
}

// Validate checks a provider definition for logical errors.
func (p Provider) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return syerr.New(syerr.CodeCatalogProviderInvalid, "provider id must not be empty")
	}
	if !p.Category.Valid() {
		return syerr.New(
			syerr.CodeCatalogProviderInvalid,
			"unknown category: "+string(p.Category),
			syerr.FieldProvider(p.ID),
			syerr.FieldCategory(string(p.Category)),
		)
	}
	if p.UnitCost < 0 {
		return syerr.Errorf(syerr.CodeCatalogProviderInvalid, "provider %s: unit cost must be non-negative, got %v", p.ID, p.UnitCost)
	}
	if p.Capacity < 1 {
		return syerr.Errorf(syerr.CodeCatalogProviderInvalid, "provider %s: capacity must be positive, got %d", p.ID, p.Capacity)
	}
	if p.Priority < 0 {
		return syerr.Errorf(syerr.CodeCatalogProviderInvalid, "provider %s: priority must be non-negative, got %d", p.ID, p.Priority)
	}
	return nil
}

// Catalog is the in-memory provider registry. Lookups return copies, so
// callers never observe concurrent flag flips mid-read.
type Catalog struct {
	mu        sync.RWMutex
	providers map[string]*Provider
}

// New creates a Catalog from the given provider definitions. Every
// definition is validated and ids must be unique.
func New(providers ...Provider) (*Catalog, error) {
	c := &Catalog{providers: make(map[string]*Provider, len(providers))}
	for _, p := range providers {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, ok := c.providers[p.ID]; ok {
			return nil, syerr.New(
				syerr.CodeCatalogProviderConflict,
				"duplicate provider id: "+p.ID,
				syerr.FieldProvider(p.ID),
			)
		}
		cp := p
		c.providers[p.ID] = &cp
	}
	return c, nil
}

// Get retrieves a provider by id.
func (c *Catalog) Get(id string) (Provider, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.providers[id]
	if !ok {
		return Provider{}, syerr.New(
			syerr.CodeCatalogProviderNotFound,
			"provider not found: "+id,
			syerr.FieldProvider(id),
		)
	}
	return *p, nil
}

// List returns all providers sorted by priority, then id.
func (c *Catalog) List() []Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Provider, 0, len(c.providers))
	for _, p := range c.providers {
		out = append(out, *p)
	}
	sortProviders(out)
	return out
}

// ListByCategory returns the active providers in the given category
// sorted by priority, then id. Disabled providers are omitted: the
// listing answers "who can serve this capability right now".
func (c *Catalog) ListByCategory(cat Category) []Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Provider
	for _, p := range c.providers {
		if p.Category == cat && p.Active {
			out = append(out, *p)
		}
	}
	sortProviders(out)
	return out
}

// SetActive flips a provider's active flag. Inactive providers are never
// selected by the router, including as the emergency default.
func (c *Catalog) SetActive(id string, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.providers[id]
	if !ok {
		return syerr.New(
			syerr.CodeCatalogProviderNotFound,
			"provider not found: "+id,
			syerr.FieldProvider(id),
		)
	}
	p.Active = active
	return nil
}

// Len returns the number of registered providers.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.providers)
}

func sortProviders(ps []Provider) {
	slices.SortFunc(ps, func(a, b Provider) int {
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		return strings.Compare(a.ID, b.ID)
	})
}

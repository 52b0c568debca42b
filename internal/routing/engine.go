// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package routing selects an upstream provider for each product feature.
// Selection walks the feature's configured chain in order and takes the
// first provider that is known, active, healthy, and within the feature's
// cost ceiling. When the whole chain is excluded the engine falls through
// to a configured emergency default before giving up.
package routing

import (
	"context"
	"log/slog"
	"time"

	"github.com/switchyard-dev/switchyard/internal/catalog"
	"github.com/switchyard-dev/switchyard/internal/metrics"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
	"github.com/switchyard-dev/switchyard/pkg/health"
)

// DefaultSweepInterval is how often the background sweep force-heals
// long-unhealthy providers.
const DefaultSweepInterval = 5 * time.Minute

// Config tunes the routing engine. Zero values take the defaults.
type Config struct {
	// EmergencyDefault is selected when a feature's whole chain is
	// excluded. It bypasses health state and cost ceilings but never an
	// administrative disable. Empty disables the mechanism.
	EmergencyDefault string

	// SweepInterval is the period of the background recovery sweep.
	SweepInterval time.Duration

	Monitor MonitorConfig
}

// Engine ties the catalog, routing table, and health monitor together
// behind the three calls the product makes: select a provider for a
// feature, report how a call went, and ask for status.
type Engine struct {
	catalog          *catalog.Catalog
	table            *Table
	monitor          *Monitor
	sweeper          *Sweeper
	emergencyDefault string
}

// NewEngine creates an Engine over an existing catalog and table.
func NewEngine(cat *catalog.Catalog, table *Table, cfg Config) (*Engine, error) {
	monitor, err := NewMonitor(cfg.Monitor)
	if err != nil {
		return nil, err
	}

	interval := cfg.SweepInterval
	if interval == 0 {
		interval = DefaultSweepInterval
	}
	sweeper, err := NewSweeper(monitor, interval)
	if err != nil {
		return nil, err
	}

	if cfg.EmergencyDefault != "" {
		if _, err := cat.Get(cfg.EmergencyDefault); err != nil {
			return nil, syerr.Wrap(err, syerr.CodeRoutingConfigInvalid,
				"emergency default not in catalog",
				syerr.FieldProvider(cfg.EmergencyDefault))
		}
	}

	return &Engine{
		catalog:          cat,
		table:            table,
		monitor:          monitor,
		sweeper:          sweeper,
		emergencyDefault: cfg.EmergencyDefault,
	}, nil
}

// Start launches the background recovery sweep. It returns immediately.
func (e *Engine) Start(ctx context.Context) {
	e.sweeper.Start(ctx)
}

// Close stops the background sweep and waits for it to exit.
func (e *Engine) Close() error {
	e.sweeper.Stop()
	return nil
}

// Monitor returns the engine's health monitor.
func (e *Engine) Monitor() *Monitor {
	return e.monitor
}

// Sweeper returns the engine's recovery sweeper.
func (e *Engine) Sweeper() *Sweeper {
	return e.sweeper
}

// SelectProvider picks the provider to serve one request for the feature.
// Candidates are tried strictly in configured order: the primary, then
// each fallback. A candidate is skipped when it is inactive, currently
// unhealthy, or costs more than the feature's ceiling. When every
// candidate is excluded the emergency default is used if it is active;
// otherwise selection fails with a routing-exhausted error.
func (e *Engine) SelectProvider(feature string) (string, error) {
	fc, err := e.table.Get(feature)
	if err != nil {
		return "", err
	}

	for i, id := range fc.Chain() {
		if !e.eligible(id, fc.CostCeiling) {
			continue
		}
		tier := metrics.TierPrimary
		if i > 0 {
			tier = metrics.TierFallback
		}
		metrics.SelectionsTotal.WithLabelValues(feature, id, tier).Inc()
		return id, nil
	}

	if e.emergencyDefault != "" {
		// The emergency default exists to keep the product usable when
		// health tracking has excluded everything, so it skips the health
		// and cost gates. A disabled provider stays off-limits.
		if p, err := e.catalog.Get(e.emergencyDefault); err == nil && p.Active {
			slog.Warn("routing fell through to emergency default",
				"feature", feature,
				"provider", e.emergencyDefault)
			metrics.SelectionsTotal.WithLabelValues(feature, e.emergencyDefault, metrics.TierEmergency).Inc()
			return e.emergencyDefault, nil
		}
	}

	metrics.SelectionsExhaustedTotal.WithLabelValues(feature).Inc()
	return "", syerr.New(
		syerr.CodeRoutingExhausted,
		"no provider available for feature: "+feature,
		syerr.FieldFeature(feature),
	)
}

// eligible applies the selection gates in order: the provider must exist,
// be active, be healthy (a read here may lazily heal it), and fit under
// the cost ceiling. Inactive providers are skipped before the health
// read, so disabling a provider also stops its lazy recovery.
func (e *Engine) eligible(id string, costCeiling float64) bool {
	p, err := e.catalog.Get(id)
	if err != nil {
		return false
	}
	if !p.Active {
		return false
	}
	if !e.monitor.IsHealthy(id) {
		return false
	}
	if costCeiling > 0 && p.UnitCost > costCeiling {
		return false
	}
	return true
}

// MaxAttempts returns how many providers a caller may try for one
// request of the feature.
func (e *Engine) MaxAttempts(feature string) (int, error) {
	fc, err := e.table.Get(feature)
	if err != nil {
		return 0, err
	}
	return fc.MaxAttempts(), nil
}

// Report records the outcome of one provider call. It never fails:
// outcome reporting is fire-and-forget for the caller, and ids that are
// not in the catalog simply accumulate state that no selection reads.
// Pass zero latency when the caller did not measure it.
func (e *Engine) Report(providerID string, success bool, latency time.Duration) {
	e.monitor.RecordOutcome(providerID, success, latency)
}

// ProviderHealth returns the health view of one catalog provider. A
// provider that has never been referenced reports the initial healthy
// state.
func (e *Engine) ProviderHealth(id string) (health.Record, error) {
	if _, err := e.catalog.Get(id); err != nil {
		return health.Record{}, err
	}
	if rec, ok := e.monitor.Snapshot(id); ok {
		return rec, nil
	}
	return health.Record{Provider: id, Healthy: true, Available: true}, nil
}

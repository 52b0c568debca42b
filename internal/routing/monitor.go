// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package routing

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/switchyard-dev/switchyard/internal/metrics"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
	"github.com/switchyard-dev/switchyard/pkg/health"
)

// Default health monitor tuning.
const (
	// DefaultFailureThreshold is the number of consecutive failures after
	// which a provider is marked unhealthy.
	DefaultFailureThreshold = 3

	// DefaultShortRecovery is how long after the last report an unhealthy
	// provider is considered recovered when the router next reads it.
	DefaultShortRecovery = 10 * time.Minute

	// DefaultLongRecovery is how long after the last report the periodic
	// sweep force-heals an unhealthy provider.
	DefaultLongRecovery = 30 * time.Minute

	// DefaultLatencyAlpha is the EWMA weight given to each new latency sample.
	DefaultLatencyAlpha = 0.2
)

// MonitorConfig tunes the health monitor. Zero values take the defaults.
type MonitorConfig struct {
	FailureThreshold int
	ShortRecovery    time.Duration
	LongRecovery     time.Duration
	LatencyAlpha     float64
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.ShortRecovery == 0 {
		c.ShortRecovery = DefaultShortRecovery
	}
	if c.LongRecovery == 0 {
		c.LongRecovery = DefaultLongRecovery
	}
	if c.LatencyAlpha == 0 {
		c.LatencyAlpha = DefaultLatencyAlpha
	}
	return c
}

// Validate checks the monitor configuration for logical errors.
func (c MonitorConfig) Validate() error {
	if c.FailureThreshold < 1 {
		return syerr.Errorf(syerr.CodeHealthConfigInvalid,
			"failure threshold must be positive, got %d", c.FailureThreshold)
	}
	if c.ShortRecovery <= 0 {
		return syerr.Errorf(syerr.CodeHealthConfigInvalid,
			"short recovery window must be positive, got %s", c.ShortRecovery)
	}
	if c.LongRecovery <= 0 {
		return syerr.Errorf(syerr.CodeHealthConfigInvalid,
			"long recovery window must be positive, got %s", c.LongRecovery)
	}
	if c.LatencyAlpha <= 0 || c.LatencyAlpha > 1 {
		return syerr.Errorf(syerr.CodeHealthConfigInvalid,
			"latency alpha must be in (0, 1], got %v", c.LatencyAlpha)
	}
	return nil
}

// healthRecord is the mutable per-provider state. All access goes through
// Monitor.mu.
type healthRecord struct {
	healthy             bool
	consecutiveFailures int
	avgLatencyMs        float64
	lastChecked         time.Time // zero until the first outcome report
}

// Monitor tracks per-provider health from reported call outcomes. State
// lives purely in memory: a restart starts every provider healthy again.
//
// A provider is created lazily, healthy, the first time the router or an
// outcome report references it. Crossing FailureThreshold consecutive
// failures marks it unhealthy. It heals three ways: a success report, the
// short recovery window elapsing at read time, or the long recovery window
// elapsing when a sweep runs. Both windows are measured from the last
// report, so an unhealthy provider that keeps failing stays unhealthy.
type Monitor struct {
	mu      sync.Mutex
	records map[string]*healthRecord
	cfg     MonitorConfig
	nowFunc func() time.Time // for testing
}

// NewMonitor creates a Monitor with the given configuration. Zero-valued
// fields fall back to the package defaults.
func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Monitor{
		records: make(map[string]*healthRecord),
		cfg:     cfg,
		nowFunc: time.Now,
	}, nil
}

// SetNowFunc overrides the time source (for testing).
func (m *Monitor) SetNowFunc(fn func() time.Time) {
	m.mu.Lock()
	m.nowFunc = fn
	m.mu.Unlock()
}

// ensureLocked returns the record for id, creating a fresh healthy one if
// none exists. The caller MUST hold m.mu.
func (m *Monitor) ensureLocked(id string) *healthRecord {
	rec, ok := m.records[id]
	if !ok {
		rec = &healthRecord{healthy: true}
		m.records[id] = rec
		metrics.ProviderHealthy.WithLabelValues(id).Set(1)
	}
	return rec
}

// RecordOutcome applies one reported call outcome. A success resets the
// consecutive failure count and heals the provider; a failure increments
// it and marks the provider unhealthy once the threshold is crossed.
// A positive latency feeds the EWMA regardless of outcome.
func (m *Monitor) RecordOutcome(id string, success bool, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.ensureLocked(id)
	now := m.nowFunc()
	rec.lastChecked = now

	if latency > 0 {
		ms := float64(latency) / float64(time.Millisecond)
		if rec.avgLatencyMs == 0 {
			rec.avgLatencyMs = ms
		} else {
			alpha := m.cfg.LatencyAlpha
			rec.avgLatencyMs = rec.avgLatencyMs*(1-alpha) + ms*alpha
		}
		metrics.ReportedLatency.WithLabelValues(id).Observe(latency.Seconds())
	}

	if success {
		metrics.OutcomesTotal.WithLabelValues(id, "success").Inc()
		rec.consecutiveFailures = 0
		if !rec.healthy {
			rec.healthy = true
			metrics.ProviderHealthy.WithLabelValues(id).Set(1)
			slog.Info("provider healed on success report", "provider", id)
		}
		return
	}

	metrics.OutcomesTotal.WithLabelValues(id, "failure").Inc()
	rec.consecutiveFailures++
	if rec.healthy && rec.consecutiveFailures >= m.cfg.FailureThreshold {
		rec.healthy = false
		metrics.ProviderHealthy.WithLabelValues(id).Set(0)
		metrics.UnhealthyTransitionsTotal.WithLabelValues(id).Inc()
		slog.Warn("provider marked unhealthy",
			"provider", id,
			"consecutive_failures", rec.consecutiveFailures)
	}
}

// IsHealthy reports whether the provider may receive traffic. Reading an
// unhealthy provider whose short recovery window has elapsed heals it on
// the spot, so an idle provider gets another chance without waiting for
// the sweep. Unknown providers start healthy.
func (m *Monitor) IsHealthy(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.ensureLocked(id)
	if rec.healthy {
		return true
	}

	now := m.nowFunc()
	if now.Sub(rec.lastChecked) >= m.cfg.ShortRecovery {
		m.healLocked(id, rec, now, metrics.RecoveryLazy)
		return true
	}
	return false
}

// SweepLongRecovery heals every unhealthy provider whose long recovery
// window has elapsed and returns how many were healed.
func (m *Monitor) SweepLongRecovery() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()
	healed := 0
	for id, rec := range m.records {
		if rec.healthy {
			continue
		}
		if now.Sub(rec.lastChecked) >= m.cfg.LongRecovery {
			m.healLocked(id, rec, now, metrics.RecoverySweep)
			healed++
		}
	}
	return healed
}

// healLocked resets a record to healthy. The caller MUST hold m.mu.
func (m *Monitor) healLocked(id string, rec *healthRecord, now time.Time, mode string) {
	rec.healthy = true
	rec.consecutiveFailures = 0
	rec.lastChecked = now
	metrics.ProviderHealthy.WithLabelValues(id).Set(1)
	metrics.RecoveriesTotal.WithLabelValues(id, mode).Inc()
	slog.Info("provider recovered", "provider", id, "mode", mode)
}

// Snapshot returns a point-in-time view of one provider's health without
// mutating it. The second return is false when the provider has never
// been referenced.
func (m *Monitor) Snapshot(id string) (health.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return health.Record{}, false
	}
	return m.snapshotLocked(id, rec), true
}

// SnapshotAll returns point-in-time views of every known provider,
// sorted by provider id.
func (m *Monitor) SnapshotAll() []health.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]health.Record, 0, len(m.records))
	for id, rec := range m.records {
		out = append(out, m.snapshotLocked(id, rec))
	}
	slices.SortFunc(out, func(a, b health.Record) int {
		return strings.Compare(a.Provider, b.Provider)
	})
	return out
}

// snapshotLocked builds the external view of a record. The caller MUST
// hold m.mu. The view applies the short recovery window to Available but
// never writes back, so pure reads don't change state.
func (m *Monitor) snapshotLocked(id string, rec *healthRecord) health.Record {
	r := health.Record{
		Provider:            id,
		Healthy:             rec.healthy,
		ConsecutiveFailures: rec.consecutiveFailures,
		AvgLatencyMs:        rec.avgLatencyMs,
	}
	if !rec.lastChecked.IsZero() {
		t := rec.lastChecked
		r.LastChecked = &t
	}
	if rec.healthy {
		r.Available = true
		return r
	}
	recoverAt := rec.lastChecked.Add(m.cfg.ShortRecovery)
	r.RecoverAt = &recoverAt
	r.Available = !m.nowFunc().Before(recoverAt)
	return r
}

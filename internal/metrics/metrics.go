// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package metrics provides Prometheus metrics for the routing engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "switchyard"
)

// Selection result labels for SelectionsTotal.
const (
	TierPrimary   = "primary"
	TierFallback  = "fallback"
	TierEmergency = "emergency"
)

// Recovery mode labels for RecoveriesTotal.
const (
	RecoveryLazy  = "lazy"
	RecoverySweep = "sweep"
)

// Routing metrics track selection decisions.
var (
	// SelectionsTotal counts successful routing decisions by feature,
	// selected provider, and which tier of the chain served it.
	SelectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "selections_total",
		Help:      "Total number of successful provider selections",
	}, []string{"feature", "provider", "tier"})

	// SelectionsExhaustedTotal counts routing requests that found no
	// eligible provider at all.
	SelectionsExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "selections_exhausted_total",
		Help:      "Total number of routing requests with no eligible provider",
	}, []string{"feature"})
)

// Health metrics track the in-memory health monitor.
var (
	// OutcomesTotal counts reported call outcomes per provider.
	OutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outcomes_total",
		Help:      "Total number of reported provider call outcomes",
	}, []string{"provider", "result"})

	// ProviderHealthy is 1 when the provider is currently marked healthy.
	ProviderHealthy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "provider_healthy",
		Help:      "Provider health flag (1=healthy, 0=unhealthy)",
	}, []string{"provider"})

	// UnhealthyTransitionsTotal counts healthy→unhealthy transitions.
	UnhealthyTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unhealthy_transitions_total",
		Help:      "Total number of providers crossing the failure threshold",
	}, []string{"provider"})

	// RecoveriesTotal counts unhealthy→healthy transitions by mode:
	// lazy (read-path short recovery) or sweep (periodic long recovery).
	RecoveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recoveries_total",
		Help:      "Total number of provider health recoveries",
	}, []string{"provider", "mode"})

	// ReportedLatency is a histogram of caller-reported provider latency.
	ReportedLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "reported_latency_seconds",
		Help:      "Caller-reported provider call latency in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	}, []string{"provider"})
)

// Sweeper metrics track the background recovery loop.
var (
	// SweepsTotal counts completed recovery sweeps.
	SweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweeps_total",
		Help:      "Total number of completed recovery sweeps",
	})

	// SweepsSkippedTotal counts sweep ticks skipped because the previous
	// sweep was still running.
	SweepsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweeps_skipped_total",
		Help:      "Total number of sweep ticks skipped due to overlap",
	})
)

// Engine metrics track process-level state.
var (
	// EngineInfo provides engine version information.
	EngineInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "engine_info",
		Help:      "Engine version information",
	}, []string{"version"})

	// EngineStartTime is the unix timestamp when the engine started.
	EngineStartTime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "engine_start_time_seconds",
		Help:      "Unix timestamp when the engine started",
	})
)

// Handler returns the Prometheus HTTP handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package routing

import (
	"github.com/switchyard-dev/switchyard/internal/catalog"
	"github.com/switchyard-dev/switchyard/pkg/health"
)

// CategoryStatus summarizes one provider category.
type CategoryStatus struct {
	Total   int `json:"total"`
	Healthy int `json:"healthy"`
}

// ProviderStatus pairs a catalog entry with its current health view.
type ProviderStatus struct {
	catalog.Provider
	Health health.Record `json:"health"`
}

// SystemStatus is the operator-facing summary of the whole engine.
type SystemStatus struct {
	TotalProviders int                       `json:"total_providers"`
	HealthyCount   int                       `json:"healthy_count"`
	UnhealthyCount int                       `json:"unhealthy_count"`
	ByCategory     map[string]CategoryStatus `json:"by_category"`
	ByCostBucket   map[string]int            `json:"by_cost_bucket"`
	Providers      []ProviderStatus          `json:"providers"`
}

// SystemStatus builds a point-in-time summary across the catalog. It is
// a pure read: health counts reflect the flags as stored, so a provider
// past its short recovery window still shows unhealthy here until a
// routing read or sweep actually heals it.
func (e *Engine) SystemStatus() SystemStatus {
	providers := e.catalog.List()

	status := SystemStatus{
		TotalProviders: len(providers),
		ByCategory:     make(map[string]CategoryStatus),
		ByCostBucket:   make(map[string]int),
		Providers:      make([]ProviderStatus, 0, len(providers)),
	}

	for _, p := range providers {
		rec, ok := e.monitor.Snapshot(p.ID)
		if !ok {
			rec = health.Record{Provider: p.ID, Healthy: true, Available: true}
		}

		if rec.Healthy {
			status.HealthyCount++
		} else {
			status.UnhealthyCount++
		}

		cs := status.ByCategory[string(p.Category)]
		cs.Total++
		if rec.Healthy {
			cs.Healthy++
		}
		status.ByCategory[string(p.Category)] = cs

		status.ByCostBucket[catalog.CostBucket(p.UnitCost)]++

		status.Providers = append(status.Providers, ProviderStatus{
			Provider: p,
			Health:   rec,
		})
	}
	return status
}

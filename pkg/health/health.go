// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package health

import "time"

// Record exposes the current health state of a provider for monitoring
// and operator visibility. All fields are point-in-time snapshots safe
// to serialize to JSON.
type Record struct {
	Provider            string     `json:"provider"`
	Healthy             bool       `json:"healthy"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	AvgLatencyMs        float64    `json:"avg_latency_ms"`
	LastChecked         *time.Time `json:"last_checked,omitempty"`
	RecoverAt           *time.Time `json:"recover_at,omitempty"`

	// Available reports whether the provider would be offered to the
	// router right now: healthy, or unhealthy with the recovery window
	// already elapsed.
	Available bool `json:"available"`
}

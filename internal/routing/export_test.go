// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package routing

// LockSweep grabs the sweep mutex so tests can simulate an in-flight
// sweep deterministically. The returned func releases it. Exported only
// to _test packages via the export_test.go convention.
func (s *Sweeper) LockSweep() func() {
	s.sweepMu.Lock()
	return s.sweepMu.Unlock
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package routing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/switchyard-dev/switchyard/internal/metrics"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// Sweeper periodically force-heals providers that have been unhealthy
// past the monitor's long recovery window. The lazy read-path recovery
// only helps providers that still get routing reads; the sweep catches
// the ones nothing asks about anymore.
type Sweeper struct {
	monitor  *Monitor
	interval time.Duration

	mu      sync.Mutex // guards lifecycle state
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	sweepMu sync.Mutex // serializes individual sweeps
}

// NewSweeper creates a stopped Sweeper with the given tick interval.
func NewSweeper(monitor *Monitor, interval time.Duration) (*Sweeper, error) {
	if interval <= 0 {
		return nil, syerr.Errorf(syerr.CodeRoutingConfigInvalid,
			"sweep interval must be positive, got %s", interval)
	}
	return &Sweeper{
		monitor:  monitor,
		interval: interval,
	}, nil
}

// Start launches the sweep loop. Calling Start on a running Sweeper is a
// no-op. The loop exits when ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.run(ctx, s.stopCh, s.doneCh)
	slog.Info("recovery sweeper started", "interval", s.interval)
}

// Stop halts the sweep loop and waits for it to exit. Calling Stop on a
// stopped Sweeper is a no-op.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.running = false
	slog.Info("recovery sweeper stopped")
}

// Running reports whether the sweep loop is active.
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) run(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs one recovery pass now. When another sweep is still in
// flight the pass is skipped and ran is false, so ticks never pile up
// behind a slow pass.
func (s *Sweeper) Sweep() (healed int, ran bool) {
	if !s.sweepMu.TryLock() {
		metrics.SweepsSkippedTotal.Inc()
		return 0, false
	}
	defer s.sweepMu.Unlock()

	healed = s.monitor.SweepLongRecovery()
	metrics.SweepsTotal.Inc()
	if healed > 0 {
		slog.Info("recovery sweep healed providers", "healed", healed)
	}
	return healed, true
}

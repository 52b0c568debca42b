// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package routing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/switchyard-dev/switchyard/internal/catalog"
	"github.com/switchyard-dev/switchyard/internal/routing"
)

// testProvider returns an active text-generation provider with sane
// defaults; tests mutate the fields they care about.
func testProvider(id string) catalog.Provider {
	return catalog.Provider{
		ID:       id,
		Category: catalog.CategoryTextGeneration,
		UnitCost: 2,
		Capacity: 10,
		Priority: 0,
		Active:   true,
	}
}

func newTestCatalog(t *testing.T, providers ...catalog.Provider) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(providers...)
	require.NoError(t, err)
	return cat
}

func newTestTable(t *testing.T, cat *catalog.Catalog, features ...routing.FeatureConfig) *routing.Table {
	t.Helper()
	table, err := routing.NewTable(cat, features)
	require.NoError(t, err)
	return table
}

func newTestMonitor(t *testing.T) *routing.Monitor {
	t.Helper()
	m, err := routing.NewMonitor(routing.MonitorConfig{})
	require.NoError(t, err)
	return m
}

// newTestEngine builds an engine over three active providers (alpha,
// bravo, charlie) and one feature "chat-tutor" routed alpha → bravo →
// charlie.
func newTestEngine(t *testing.T, cfg routing.Config) (*routing.Engine, *catalog.Catalog) {
	t.Helper()
	cat := newTestCatalog(t,
		testProvider("alpha"),
		testProvider("bravo"),
		testProvider("charlie"),
	)
	table := newTestTable(t, cat, routing.FeatureConfig{
		Feature:   "chat-tutor",
		Primary:   "alpha",
		Fallbacks: []string{"bravo", "charlie"},
	})
	eng, err := routing.NewEngine(cat, table, cfg)
	require.NoError(t, err)
	return eng, cat
}

// failN reports n consecutive failures for the provider.
func failN(m *routing.Monitor, id string, n int) {
	for range n {
		m.RecordOutcome(id, false, 0)
	}
}

// fixedClock pins a monitor's clock to a mutable instant.
type fixedClock struct {
	now time.Time
}

func newFixedClock(m *routing.Monitor) *fixedClock {
	c := &fixedClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	m.SetNowFunc(func() time.Time { return c.now })
	return c
}

func (c *fixedClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

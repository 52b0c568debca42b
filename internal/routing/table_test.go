// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package routing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/switchyard-dev/switchyard/internal/routing"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func chatFeature() routing.FeatureConfig {
	return routing.FeatureConfig{
		Feature:   "chat-tutor",
		Primary:   "alpha",
		Fallbacks: []string{"bravo", "charlie"},
	}
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNewTable_ValidatesFeatureConfigs(t *testing.T) {
	cat := newTestCatalog(t, testProvider("alpha"), testProvider("bravo"), testProvider("charlie"))

	tests := []struct {
		name   string
		mutate func(*routing.FeatureConfig)
	}{
		{name: "empty feature name", mutate: func(fc *routing.FeatureConfig) { fc.Feature = "" }},
		{name: "empty primary", mutate: func(fc *routing.FeatureConfig) { fc.Primary = "" }},
		{name: "unknown primary", mutate: func(fc *routing.FeatureConfig) { fc.Primary = "ghost" }},
		{name: "unknown fallback", mutate: func(fc *routing.FeatureConfig) { fc.Fallbacks = []string{"ghost"} }},
		{name: "primary repeated in fallbacks", mutate: func(fc *routing.FeatureConfig) { fc.Fallbacks = []string{"alpha"} }},
		{name: "fallback repeated", mutate: func(fc *routing.FeatureConfig) { fc.Fallbacks = []string{"bravo", "bravo"} }},
		{name: "negative max retries", mutate: func(fc *routing.FeatureConfig) { fc.MaxRetries = -1 }},
		{name: "negative cost ceiling", mutate: func(fc *routing.FeatureConfig) { fc.CostCeiling = -0.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := chatFeature()
			tt.mutate(&fc)
			_, err := routing.NewTable(cat, []routing.FeatureConfig{fc})
			require.Error(t, err)
			assert.True(t, syerr.IsInvalidInput(err))
		})
	}
}

func TestNewTable_RejectsDuplicateFeature(t *testing.T) {
	cat := newTestCatalog(t, testProvider("alpha"))
	fc := routing.FeatureConfig{Feature: "chat-tutor", Primary: "alpha"}

	_, err := routing.NewTable(cat, []routing.FeatureConfig{fc, fc})
	require.Error(t, err)
	assert.True(t, syerr.IsInvalidInput(err))
}

func TestNewTable_EmptyIsValid(t *testing.T) {
	cat := newTestCatalog(t, testProvider("alpha"))
	table, err := routing.NewTable(cat, nil)
	require.NoError(t, err)
	assert.Zero(t, table.Len())
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestTable_Get(t *testing.T) {
	cat := newTestCatalog(t, testProvider("alpha"), testProvider("bravo"), testProvider("charlie"))
	table := newTestTable(t, cat, chatFeature())

	fc, err := table.Get("chat-tutor")
	require.NoError(t, err)
	assert.Equal(t, "alpha", fc.Primary)
	assert.Equal(t, []string{"bravo", "charlie"}, fc.Fallbacks)
}

func TestTable_GetUnknownFeature(t *testing.T) {
	cat := newTestCatalog(t, testProvider("alpha"))
	table := newTestTable(t, cat)

	_, err := table.Get("ghost-feature")
	require.Error(t, err)
	assert.True(t, syerr.HasCode(err, syerr.CodeRoutingFeatureNotFound))
	assert.True(t, syerr.IsNotFound(err))
}

func TestTable_GetReturnsIsolatedCopy(t *testing.T) {
	cat := newTestCatalog(t, testProvider("alpha"), testProvider("bravo"), testProvider("charlie"))
	table := newTestTable(t, cat, chatFeature())

	fc, err := table.Get("chat-tutor")
	require.NoError(t, err)
	fc.Fallbacks[0] = "mutated"

	again, err := table.Get("chat-tutor")
	require.NoError(t, err)
	assert.Equal(t, []string{"bravo", "charlie"}, again.Fallbacks)
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }

func fallbacksPtr(ids ...string) *[]string { return &ids }

func TestTable_UpdatePartialFields(t *testing.T) {
	cat := newTestCatalog(t, testProvider("alpha"), testProvider("bravo"), testProvider("charlie"))
	table := newTestTable(t, cat, chatFeature())

	// Only max retries changes; everything else stays.
	got, err := table.Update("chat-tutor", routing.FeatureUpdate{MaxRetries: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Primary)
	assert.Equal(t, []string{"bravo", "charlie"}, got.Fallbacks)
	assert.Equal(t, 2, got.MaxRetries)

	// Now swap the primary; retries survive from the previous update.
	got, err = table.Update("chat-tutor", routing.FeatureUpdate{Primary: strPtr("bravo")})
	require.NoError(t, err)
	assert.Equal(t, "bravo", got.Primary)
	assert.Equal(t, 2, got.MaxRetries)
}

func TestTable_UpdateReplacesFallbacksWholesale(t *testing.T) {
	cat := newTestCatalog(t, testProvider("alpha"), testProvider("bravo"), testProvider("charlie"))
	table := newTestTable(t, cat, chatFeature())

	got, err := table.Update("chat-tutor", routing.FeatureUpdate{Fallbacks: fallbacksPtr("charlie")})
	require.NoError(t, err)
	assert.Equal(t, []string{"charlie"}, got.Fallbacks)
}

func TestTable_UpdateClearsFallbacks(t *testing.T) {
	cat := newTestCatalog(t, testProvider("alpha"), testProvider("bravo"), testProvider("charlie"))
	table := newTestTable(t, cat, chatFeature())

	got, err := table.Update("chat-tutor", routing.FeatureUpdate{Fallbacks: fallbacksPtr()})
	require.NoError(t, err)
	assert.Empty(t, got.Fallbacks)
}

func TestTable_UpdateCostCeiling(t *testing.T) {
	cat := newTestCatalog(t, testProvider("alpha"), testProvider("bravo"), testProvider("charlie"))
	table := newTestTable(t, cat, chatFeature())

	got, err := table.Update("chat-tutor", routing.FeatureUpdate{CostCeiling: floatPtr(1.5)})
	require.NoError(t, err)
	assert.Equal(t, 1.5, got.CostCeiling)

	// Zero clears the ceiling.
	got, err = table.Update("chat-tutor", routing.FeatureUpdate{CostCeiling: floatPtr(0)})
	require.NoError(t, err)
	assert.Zero(t, got.CostCeiling)
}

func TestTable_UpdateRejectedLeavesConfigUntouched(t *testing.T) {
	cat := newTestCatalog(t, testProvider("alpha"), testProvider("bravo"), testProvider("charlie"))
	table := newTestTable(t, cat, chatFeature())

	_, err := table.Update("chat-tutor", routing.FeatureUpdate{
		Primary:   strPtr("ghost"),
		Fallbacks: fallbacksPtr("bravo"),
	})
	require.Error(t, err)
	assert.True(t, syerr.IsInvalidInput(err))
	assert.Equal(t, "ghost", syerr.FieldsOf(err)["provider"])

	fc, err := table.Get("chat-tutor")
	require.NoError(t, err)
	assert.Equal(t, "alpha", fc.Primary)
	assert.Equal(t, []string{"bravo", "charlie"}, fc.Fallbacks)
}

func TestTable_UpdateUnknownFeatureRejectedByDefault(t *testing.T) {
	cat := newTestCatalog(t, testProvider("alpha"))
	table := newTestTable(t, cat)

	_, err := table.Update("brand-new", routing.FeatureUpdate{Primary: strPtr("alpha")})
	require.Error(t, err)
	assert.True(t, syerr.HasCode(err, syerr.CodeRoutingFeatureNotFound))
}

func TestTable_UpdateCreatesFeatureWhenAllowed(t *testing.T) {
	cat := newTestCatalog(t, testProvider("alpha"), testProvider("bravo"))
	table, err := routing.NewTable(cat, nil, routing.WithCreateOnUpdate())
	require.NoError(t, err)

	got, err := table.Update("brand-new", routing.FeatureUpdate{
		Primary:   strPtr("alpha"),
		Fallbacks: fallbacksPtr("bravo"),
	})
	require.NoError(t, err)
	assert.Equal(t, "brand-new", got.Feature)
	assert.Equal(t, "alpha", got.Primary)

	// Creation without a primary is still invalid.
	_, err = table.Update("half-baked", routing.FeatureUpdate{MaxRetries: intPtr(1)})
	require.Error(t, err)
	assert.True(t, syerr.IsInvalidInput(err))
}

// ---------------------------------------------------------------------------
// Listing and derived values
// ---------------------------------------------------------------------------

func TestTable_FeaturesSortedByName(t *testing.T) {
	cat := newTestCatalog(t, testProvider("alpha"))
	table := newTestTable(t, cat,
		routing.FeatureConfig{Feature: "translation", Primary: "alpha"},
		routing.FeatureConfig{Feature: "chat-tutor", Primary: "alpha"},
		routing.FeatureConfig{Feature: "essay-feedback", Primary: "alpha"},
	)

	features := table.Features()
	require.Len(t, features, 3)
	assert.Equal(t, "chat-tutor", features[0].Feature)
	assert.Equal(t, "essay-feedback", features[1].Feature)
	assert.Equal(t, "translation", features[2].Feature)
}

func TestFeatureConfig_MaxAttempts(t *testing.T) {
	tests := []struct {
		name string
		fc   routing.FeatureConfig
		want int
	}{
		{
			name: "no cap uses chain length",
			fc:   routing.FeatureConfig{Primary: "a", Fallbacks: []string{"b", "c"}},
			want: 3,
		},
		{
			name: "cap below chain length wins",
			fc:   routing.FeatureConfig{Primary: "a", Fallbacks: []string{"b", "c"}, MaxRetries: 2},
			want: 2,
		},
		{
			name: "cap above chain length is inert",
			fc:   routing.FeatureConfig{Primary: "a", Fallbacks: []string{"b"}, MaxRetries: 10},
			want: 2,
		},
		{
			name: "primary only",
			fc:   routing.FeatureConfig{Primary: "a"},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fc.MaxAttempts())
		})
	}
}

func TestFeatureConfig_Chain(t *testing.T) {
	fc := routing.FeatureConfig{Primary: "a", Fallbacks: []string{"b", "c"}}
	assert.Equal(t, []string{"a", "b", "c"}, fc.Chain())

	bare := routing.FeatureConfig{Primary: "a"}
	assert.Equal(t, []string{"a"}, bare.Chain())
}

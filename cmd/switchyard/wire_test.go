// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchyard-dev/switchyard/internal/config"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// testAppConfig builds a small valid config: two text-generation
// providers, one feature routed alpha -> bravo, memory storage, and a
// random listen port. Overrides are applied as viper keys on top.
func testAppConfig(t *testing.T, overrides map[string]any) *config.Config {
	t.Helper()

	v := viper.New()
	config.SetDefaults(v)
	v.Set("server.listen", "127.0.0.1:0")
	v.Set("storage.backend", "memory")
	v.Set("providers", []map[string]any{
		{"id": "alpha", "category": "text-generation", "unit_cost": 0.003, "capacity": 10, "priority": 1},
		{"id": "bravo", "category": "text-generation", "unit_cost": 0.001, "capacity": 20, "priority": 2},
	})
	v.Set("features", map[string]any{
		"chat-tutor": map[string]any{
			"primary":   "alpha",
			"fallbacks": []string{"bravo"},
		},
	})
	v.Set("engine.emergency_default", "bravo")
	for key, val := range overrides {
		v.Set(key, val)
	}

	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	return cfg
}

// doRequest sends one request through the app's HTTP handler without a
// network listener.
func doRequest(t *testing.T, app *App, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	app.Server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestWireApp(t *testing.T) {
	cfg := testAppConfig(t, nil)

	app, err := WireApp(context.Background(), cfg, t.TempDir())
	require.NoError(t, err)

	assert.NotNil(t, app.Server)
	assert.NotNil(t, app.Store)
	assert.NotNil(t, app.Catalog)
	assert.NotNil(t, app.Table)
	assert.NotNil(t, app.Engine)
	assert.Equal(t, 2, app.Catalog.Len())
	assert.Equal(t, 1, app.Table.Len())

	require.NoError(t, app.Close())
}

func TestWireApp_ServesRoutes(t *testing.T) {
	cfg := testAppConfig(t, nil)

	app, err := WireApp(context.Background(), cfg, t.TempDir())
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	rec := doRequest(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, app, http.MethodGet, "/api/v1/providers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alpha")
	assert.Contains(t, rec.Body.String(), "bravo")

	rec = doRequest(t, app, http.MethodPost, "/api/v1/route/chat-tutor", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var decision struct {
		Provider    string `json:"provider"`
		MaxAttempts int    `json:"max_attempts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.Equal(t, "alpha", decision.Provider)
	assert.Equal(t, 2, decision.MaxAttempts)

	rec = doRequest(t, app, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ok", status.Status)
}

func TestWireApp_RoutesAroundUnhealthy(t *testing.T) {
	cfg := testAppConfig(t, nil)

	app, err := WireApp(context.Background(), cfg, t.TempDir())
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	// Three consecutive failures mark alpha unhealthy.
	for i := 0; i < 3; i++ {
		rec := doRequest(t, app, http.MethodPost, "/api/v1/report",
			`{"provider": "alpha", "success": false, "latency_ms": 900}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doRequest(t, app, http.MethodPost, "/api/v1/route/chat-tutor", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var decision struct {
		Provider string `json:"provider"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.Equal(t, "bravo", decision.Provider)

	rec = doRequest(t, app, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Status         string `json:"status"`
		UnhealthyCount int    `json:"unhealthy_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, 1, status.UnhealthyCount)
}

func TestWireApp_GracefulShutdown(t *testing.T) {
	cfg := testAppConfig(t, nil)

	app, err := WireApp(context.Background(), cfg, t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, app.Start(ctx))
	require.NoError(t, app.Close())
}

func TestWireApp_PersistsProviderState(t *testing.T) {
	dataDir := t.TempDir()
	cfg := testAppConfig(t, map[string]any{"storage.backend": "sqlite"})

	app, err := WireApp(context.Background(), cfg, dataDir)
	require.NoError(t, err)

	rec := doRequest(t, app, http.MethodPost, "/api/v1/providers/alpha/active",
		`{"active": false, "actor": "test-suite"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, app.Close())

	// A fresh app over the same data dir replays the disable.
	app2, err := WireApp(context.Background(), cfg, dataDir)
	require.NoError(t, err)
	defer func() { _ = app2.Close() }()

	p, err := app2.Catalog.Get("alpha")
	require.NoError(t, err)
	assert.False(t, p.Active)
}

func TestWireApp_PersistsFeatureOverride(t *testing.T) {
	dataDir := t.TempDir()
	cfg := testAppConfig(t, map[string]any{"storage.backend": "sqlite"})

	app, err := WireApp(context.Background(), cfg, dataDir)
	require.NoError(t, err)

	rec := doRequest(t, app, http.MethodPatch, "/api/v1/features/chat-tutor",
		`{"primary": "bravo", "fallbacks": ["alpha"], "actor": "test-suite"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, app.Close())

	app2, err := WireApp(context.Background(), cfg, dataDir)
	require.NoError(t, err)
	defer func() { _ = app2.Close() }()

	fc, err := app2.Table.Get("chat-tutor")
	require.NoError(t, err)
	assert.Equal(t, "bravo", fc.Primary)
	assert.Equal(t, []string{"alpha"}, fc.Fallbacks)
}

func TestWireApp_AuditTrail(t *testing.T) {
	cfg := testAppConfig(t, nil)

	app, err := WireApp(context.Background(), cfg, t.TempDir())
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	rec := doRequest(t, app, http.MethodPost, "/api/v1/providers/alpha/active",
		`{"active": false, "actor": "ops-team"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, app, http.MethodGet, "/api/v1/audit?actor=ops-team", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "provider.disabled")
	assert.Contains(t, rec.Body.String(), "alpha")
}

func TestWireApp_RejectsUnknownEmergencyDefault(t *testing.T) {
	cfg := testAppConfig(t, nil)
	cfg.Engine.EmergencyDefault = "ghost"

	_, err := WireApp(context.Background(), cfg, t.TempDir())
	require.Error(t, err)
	assert.True(t, syerr.HasCode(err, syerr.CodeCLISetupFailure))
	assert.Contains(t, err.Error(), "routing engine")
}

func TestApp_ApplyConfig(t *testing.T) {
	cfg := testAppConfig(t, nil)

	app, err := WireApp(context.Background(), cfg, t.TempDir())
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	next := testAppConfig(t, map[string]any{
		"features": map[string]any{
			"chat-tutor": map[string]any{
				"primary":   "bravo",
				"fallbacks": []string{"alpha"},
			},
		},
	})
	app.ApplyConfig(context.Background(), next)

	fc, err := app.Table.Get("chat-tutor")
	require.NoError(t, err)
	assert.Equal(t, "bravo", fc.Primary)
	assert.Equal(t, []string{"alpha"}, fc.Fallbacks)

	// A route that no longer validates is rejected and leaves the
	// table untouched.
	bad := *next
	bad.Features = map[string]config.FeatureConfig{
		"chat-tutor": {Primary: "ghost"},
	}
	app.ApplyConfig(context.Background(), &bad)

	fc, err = app.Table.Get("chat-tutor")
	require.NoError(t, err)
	assert.Equal(t, "bravo", fc.Primary)
}

func TestApp_ApplyConfig_KeepsOperatorOverride(t *testing.T) {
	cfg := testAppConfig(t, nil)

	app, err := WireApp(context.Background(), cfg, t.TempDir())
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	// Operator swaps the chain through the API.
	rec := doRequest(t, app, http.MethodPatch, "/api/v1/features/chat-tutor",
		`{"primary": "bravo", "fallbacks": ["alpha"], "actor": "ops-team"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// A config file touch with the original route must not roll the
	// operator's change back.
	app.ApplyConfig(context.Background(), testAppConfig(t, nil))

	fc, err := app.Table.Get("chat-tutor")
	require.NoError(t, err)
	assert.Equal(t, "bravo", fc.Primary)
}

func TestWireApp_RouteExhausted(t *testing.T) {
	// No emergency default: disabling every provider in the chain must
	// surface as 503 on the route endpoint.
	cfg := testAppConfig(t, map[string]any{"engine.emergency_default": ""})

	app, err := WireApp(context.Background(), cfg, t.TempDir())
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	for _, id := range []string{"alpha", "bravo"} {
		rec := doRequest(t, app, http.MethodPost, fmt.Sprintf("/api/v1/providers/%s/active", id),
			`{"active": false, "actor": "test-suite"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doRequest(t, app, http.MethodPost, "/api/v1/route/chat-tutor", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "chat-tutor")
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchyard-dev/switchyard/internal/server"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func TestNew_RequiresListenAddr(t *testing.T) {
	svc := server.NewServicesForTest(
		defaultMocks().routing, defaultMocks().providers,
		defaultMocks().features, defaultMocks().status,
	)

	_, err := server.New(server.Config{Services: svc})
	require.Error(t, err)
	assert.True(t, syerr.HasCode(err, syerr.CodeServerConfigInvalid))
}

func TestNew_RequiresServices(t *testing.T) {
	_, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.Error(t, err)
	assert.True(t, syerr.HasCode(err, syerr.CodeServerConfigInvalid))
}

func TestNew_RejectsInvalidRateLimit(t *testing.T) {
	m := defaultMocks()
	svc := server.NewServicesForTest(m.routing, m.providers, m.features, m.status)

	_, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		Services:   svc,
		RateLimit:  server.RateLimitConfig{RequestsPerSecond: -1},
	})
	require.Error(t, err)
	assert.True(t, syerr.HasCode(err, syerr.CodeServerConfigInvalid))
}

func TestServer_HealthEndpoint(t *testing.T) {
	srv := newTestServer(t, defaultMocks())

	w := doJSON(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, defaultMocks())

	w := doJSON(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestServer_OpenAPISpec(t *testing.T) {
	srv := newTestServer(t, defaultMocks())

	w := doJSON(t, srv, http.MethodGet, "/openapi.json", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Switchyard Engine")
}

func TestServer_CORSHeaders(t *testing.T) {
	srv := newTestServer(t, defaultMocks())

	req := newOptionsRequest(t, "/api/v1/status", "http://localhost:5173")
	w := doRequest(srv, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv := newTestServer(t, defaultMocks())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	// Give the listener a moment to come up, then trigger shutdown.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

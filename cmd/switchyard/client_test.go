// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func TestEngineClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	}))
	defer srv.Close()

	client := &engineClient{baseURL: srv.URL, http: srv.Client()}

	var got struct {
		Status string `json:"status"`
	}
	err := client.getJSON("/api/v1/status", &got)
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Status)
}

func TestEngineClient_GetJSON_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "provider not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := &engineClient{baseURL: srv.URL, http: srv.Client()}

	err := client.getJSON("/api/v1/providers/ghost/health", nil)
	require.Error(t, err)
	assert.True(t, syerr.HasCode(err, syerr.CodeCLIRequestFailure))
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "provider not found")
}

func TestEngineClient_GetJSON_EngineNotRunning(t *testing.T) {
	// Port 1 refuses connections on any sane machine.
	client := newEngineClient("127.0.0.1:1")

	err := client.getJSON("/api/v1/status", nil)
	require.Error(t, err)
	assert.True(t, syerr.HasCode(err, syerr.CodeCLIEngineNotRunning))
}

func TestEngineClient_GetJSON_InvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json at all"))
	}))
	defer srv.Close()

	client := &engineClient{baseURL: srv.URL, http: srv.Client()}

	var got map[string]any
	err := client.getJSON("/api/v1/status", &got)
	require.Error(t, err)
	assert.True(t, syerr.HasCode(err, syerr.CodeCLIResponseInvalid))
}

func TestEngineClient_PostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"active": false, "actor": "cli"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "anthropic-sonnet", "active": false}`))
	}))
	defer srv.Close()

	client := &engineClient{baseURL: srv.URL, http: srv.Client()}

	var got struct {
		ID     string `json:"id"`
		Active bool   `json:"active"`
	}
	err := client.postJSON("/api/v1/providers/anthropic-sonnet/active", map[string]any{
		"active": false,
		"actor":  "cli",
	}, &got)
	require.NoError(t, err)
	assert.Equal(t, "anthropic-sonnet", got.ID)
	assert.False(t, got.Active)
}

func TestEngineClient_PostJSON_NilDest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ignored": true}`))
	}))
	defer srv.Close()

	client := &engineClient{baseURL: srv.URL, http: srv.Client()}

	err := client.postJSON("/api/v1/report", map[string]any{"provider": "p1", "success": true}, nil)
	require.NoError(t, err)
}

func TestEngineClient_PatchJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o", body["primary"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"feature": "chat-tutor", "primary": "gpt-4o"}`))
	}))
	defer srv.Close()

	client := &engineClient{baseURL: srv.URL, http: srv.Client()}

	var got struct {
		Feature string `json:"feature"`
		Primary string `json:"primary"`
	}
	err := client.patchJSON("/api/v1/features/chat-tutor", map[string]any{"primary": "gpt-4o"}, &got)
	require.NoError(t, err)
	assert.Equal(t, "chat-tutor", got.Feature)
	assert.Equal(t, "gpt-4o", got.Primary)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func TestRouteCommand(t *testing.T) {
	addr := fakeEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/route/chat-tutor", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"feature": "chat-tutor", "provider": "anthropic-sonnet", "max_attempts": 3}`))
	}))

	root := newTestRootCmd(t)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"route", "chat-tutor", "--address", addr})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Feature chat-tutor: use provider anthropic-sonnet (max attempts 3)")
}

func TestRouteCommand_Exhausted(t *testing.T) {
	addr := fakeEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"title": "Service Unavailable", "detail": "no provider available"}`, http.StatusServiceUnavailable)
	}))

	root := newTestRootCmd(t)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"route", "chat-tutor", "--address", addr})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "no provider available")
}

func TestRouteCommand_EngineDown(t *testing.T) {
	root := newTestRootCmd(t)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"route", "chat-tutor", "--address", "127.0.0.1:1"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "not running")
}

func TestReportCommand_Success(t *testing.T) {
	var captured map[string]any
	addr := fakeEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/report", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "recorded"}`))
	}))

	root := newTestRootCmd(t)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"report", "anthropic-sonnet", "--address", addr, "--latency-ms", "241.5"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Recorded success for provider anthropic-sonnet")
	assert.Equal(t, "anthropic-sonnet", captured["provider"])
	assert.Equal(t, true, captured["success"])
	assert.Equal(t, 241.5, captured["latency_ms"])
}

func TestReportCommand_Failure(t *testing.T) {
	var captured map[string]any
	addr := fakeEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "recorded"}`))
	}))

	root := newTestRootCmd(t)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"report", "whisper-large", "--address", addr, "--failure"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Recorded failure for provider whisper-large")
	assert.Equal(t, false, captured["success"])
}

func TestReportCommand_NegativeLatency(t *testing.T) {
	root := newTestRootCmd(t)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"report", "anthropic-sonnet", "--latency-ms", "-5"})

	err := root.Execute()
	require.Error(t, err)
	assert.True(t, syerr.HasCode(err, syerr.CodeCLIInputInvalid))
	assert.Contains(t, err.Error(), "must not be negative")
}

func TestAuditCommand(t *testing.T) {
	var gotQuery map[string]string
	addr := fakeEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/audit", r.URL.Path)
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"entries": [
			{"timestamp": "2026-08-25T09:00:00Z", "action": "provider.disabled", "actor": "ops-team", "provider": "whisper-large"},
			{"timestamp": "2026-08-25T08:00:00Z", "action": "feature.updated", "actor": "ops-team", "feature": "chat-tutor"}
		]}`))
	}))

	root := newTestRootCmd(t)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"audit", "--address", addr, "--actor", "ops-team", "--limit", "10"})

	err := root.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "ACTION")
	assert.Contains(t, output, "provider.disabled")
	assert.Contains(t, output, "whisper-large")
	assert.Contains(t, output, "feature.updated")
	assert.Contains(t, output, "chat-tutor")

	assert.Equal(t, "ops-team", gotQuery["actor"])
	assert.Equal(t, "10", gotQuery["limit"])
	assert.NotContains(t, gotQuery, "feature")
	assert.NotContains(t, gotQuery, "offset")
}

func TestAuditCommand_Empty(t *testing.T) {
	addr := fakeEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"entries": []}`))
	}))

	root := newTestRootCmd(t)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"audit", "--address", addr})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No audit entries found")
}

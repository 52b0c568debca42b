// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchyard-dev/switchyard/internal/config"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// primeStartViper resets the global viper and seeds it the way initViper
// does for a start run without a config file: defaults, env bindings, and
// a throwaway data dir with memory storage so nothing persists.
func primeStartViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetDefaults(viper.GetViper())
	config.SetupEnv(viper.GetViper())
	viper.Set("data_dir", t.TempDir())
	viper.Set("storage.backend", "memory")
}

func TestRunStart_InvalidLatencyAlpha(t *testing.T) {
	primeStartViper(t)
	viper.Set("engine.latency_alpha", 2.0)

	cmd := &cobra.Command{}
	cmd.SetOut(new(bytes.Buffer))

	err := runStart(cmd, nil)
	require.Error(t, err)
	assert.True(t, syerr.HasCode(err, syerr.CodeCLISetupFailure))
	assert.Contains(t, err.Error(), "loading config")
	assert.NotContains(t, err.Error(), "wiring engine")
}

func TestRunStart_UnknownEmergencyDefault(t *testing.T) {
	primeStartViper(t)
	viper.Set("engine.emergency_default", "ghost")

	cmd := &cobra.Command{}
	cmd.SetOut(new(bytes.Buffer))

	err := runStart(cmd, nil)
	require.Error(t, err)
	assert.True(t, syerr.HasCode(err, syerr.CodeCLISetupFailure))
	assert.Contains(t, err.Error(), "loading config")
	assert.Contains(t, err.Error(), "ghost")
}

func TestRunStart_StartsAndStops(t *testing.T) {
	primeStartViper(t)
	viper.Set("server.listen", "127.0.0.1:0")
	viper.Set("providers", []map[string]any{
		{"id": "alpha", "category": "text-generation", "unit_cost": 0.003, "capacity": 10},
	})
	viper.Set("features", map[string]any{
		"chat-tutor": map[string]any{"primary": "alpha"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetContext(ctx)

	err := runStart(cmd, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Starting switchyard on 127.0.0.1:0")
}

func TestStartCommand_ListenFlagOverride(t *testing.T) {
	root := newTestRootCmd(t)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"start", "--listen", "127.0.0.1:0"})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err := root.ExecuteContext(ctx)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Starting switchyard on 127.0.0.1:0")
}

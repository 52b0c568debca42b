// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/switchyard-dev/switchyard/internal/config"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the switchyard engine",
		Long:  "Load configuration, initialize all subsystems, and start the HTTP server.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return syerr.Wrapf(err, syerr.CodeCLISetupFailure, "loading config")
	}

	// Apply any flag/env overrides that Viper resolved.
	if listen := viper.GetString("server.listen"); listen != "" {
		cfg.Server.Listen = listen
	}

	setupLogging(viper.GetBool("verbose"))
	config.WarnInsecurePermissions(viper.ConfigFileUsed())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := WireApp(ctx, cfg, resolveDataDir())
	if err != nil {
		return syerr.Wrapf(err, syerr.CodeCLISetupFailure, "wiring engine")
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("closing engine", "error", err)
		}
	}()

	// Background recovery sweep.
	app.Engine.Start(ctx)

	// Reload feature routes when the config file changes on disk.
	if cfgPath := viper.ConfigFileUsed(); cfgPath != "" {
		go func() {
			if err := config.Watch(ctx, cfgPath, func(next *config.Config) {
				app.ApplyConfig(ctx, next)
			}); err != nil {
				slog.Warn("config watcher stopped", "error", err)
			}
		}()
	}

	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Starting switchyard on %s\n", cfg.Server.Listen); err != nil {
		return err
	}
	slog.Info("engine starting",
		"listen", cfg.Server.Listen,
		"providers", app.Catalog.Len(),
		"features", app.Table.Len(),
		"version", version)

	if err := app.Start(ctx); err != nil {
		return syerr.Wrapf(err, syerr.CodeCLISetupFailure, "running server")
	}

	slog.Info("engine stopped")
	return nil
}

// setupLogging configures the process-wide logger. Verbose switches to
// debug level.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// Watch monitors path for changes and calls onChange with the newly loaded
// Config each time the file is written. It runs until ctx is cancelled.
//
// If a reload fails (e.g. invalid YAML), the error is logged and the
// previous config remains active; Watch does not call onChange.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return syerr.Errorf(syerr.CodeConfigLoadReadFailure, "creating config watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck // close error on shutdown is not actionable

	if err := watcher.Add(path); err != nil {
		return syerr.Errorf(syerr.CodeConfigLoadReadFailure, "watching config %s: %w", path, err)
	}

	slog.Info("watching config for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Only reload on write or create events. Editors often write via
			// rename (atomic save), so also catch fsnotify.Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config reload failed, keeping previous config",
					"path", path, "error", err)
				continue
			}

			slog.Info("config reloaded", "path", path)
			onChange(cfg)

			// Re-add the file in case an atomic save replaced the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config watcher error", "error", err)
		}
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check binary health, engine reachability, config, storage, disk space, and other system requirements.",
		RunE:  runDoctor,
	}

	addAddressFlag(cmd)

	return cmd
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	addr, _ := cmd.Flags().GetString("address")
	dataDir := resolveDataDir()

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Engine", func() string { return checkEngine(addr) }},
		{"Config", checkConfig},
		{"Data Dir", func() string { return checkDataDir(dataDir) }},
		{"Storage", func() string { return checkStorage(dataDir) }},
		{"Disk Space", func() string { return checkDiskSpace(dataDir) }},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

// resolveDataDir returns the data directory from viper or the default.
func resolveDataDir() string {
	dataDir := viper.GetString("data_dir")
	if dataDir != "" {
		return dataDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".switchyard")
}

func checkBinary() string {
	return fmt.Sprintf("switchyard %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkEngine(addr string) string {
	ec := newEngineClient(addr)
	var body struct {
		Status         string `json:"status"`
		TotalProviders int    `json:"total_providers"`
		HealthyCount   int    `json:"healthy_count"`
	}
	if err := ec.getJSON("/api/v1/status", &body); err != nil {
		if syerr.HasCode(err, syerr.CodeCLIEngineNotRunning) {
			return fmt.Sprintf("not running at %s (run 'switchyard start')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s (%d/%d providers healthy)", body.Status, addr, body.HealthyCount, body.TotalProviders)
}

func checkConfig() string {
	cfgFile := viper.ConfigFileUsed()
	if cfgFile != "" {
		return fmt.Sprintf("loaded from %s", cfgFile)
	}
	return "using defaults (no config file found)"
}

func checkDataDir(dataDir string) string {
	info, err := os.Stat(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("will be created at %s", dataDir)
		}
		return fmt.Sprintf("error: %s", err)
	}
	if !info.IsDir() {
		return fmt.Sprintf("not a directory: %s", dataDir)
	}

	probe, err := os.CreateTemp(dataDir, ".doctor-*")
	if err != nil {
		return fmt.Sprintf("not writable: %s", err)
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	return fmt.Sprintf("writable (%s)", dataDir)
}

func checkStorage(dataDir string) string {
	backend := viper.GetString("storage.backend")
	if backend == "memory" {
		return "memory backend (operator state not persisted)"
	}

	dbPath := viper.GetString("storage.path")
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "switchyard.db")
	}
	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("sqlite database not yet created (%s)", dbPath)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("sqlite database at %s (%s)", dbPath, formatBytes(uint64(info.Size())))
}

func checkDiskSpace(dataDir string) string {
	path := dataDir
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Fall back to home directory if data dir doesn't exist yet.
		path, _ = os.UserHomeDir()
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}

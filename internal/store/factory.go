// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package store

import (
	"fmt"
	"path/filepath"
	"sync"
)

// defaultDBFile is the database filename used when StorageConfig.Path is empty.
const defaultDBFile = "switchyard.db"

// Factory creates a StateStore given the resolved database path.
type Factory func(dbPath string) (StateStore, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory function for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// NewStateStore creates the state store for the configured backend.
// When cfg.Path is empty the database file lives under dataPath.
func NewStateStore(cfg *StorageConfig, dataPath string) (StateStore, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage backend: %q", backend)
	}

	dbPath := cfg.Path
	if dbPath == "" {
		dbPath = filepath.Join(dataPath, defaultDBFile)
	}

	return factory(dbPath)
}

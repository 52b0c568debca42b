// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package sqlite

import (
	"github.com/switchyard-dev/switchyard/internal/store"
)

func init() {
	store.RegisterBackend("sqlite", newStateStore)
}

func newStateStore(dbPath string) (store.StateStore, error) {
	return NewStateStore(dbPath)
}

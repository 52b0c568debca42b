// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package sqlite implements store.StateStore on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/switchyard-dev/switchyard/internal/store"
)

// Compile-time interface check.
var _ store.StateStore = (*StateStore)(nil)

// StateStore implements store.StateStore backed by SQLite.
type StateStore struct {
	db *sql.DB
}

// NewStateStore opens (or creates) a SQLite database at dbPath and
// initialises the override, provider-state, and audit tables.
func NewStateStore(dbPath string) (*StateStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating sqlite db: %w", err)
	}

	return &StateStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS feature_overrides (
	feature      TEXT PRIMARY KEY,
	primary_id   TEXT NOT NULL,
	fallbacks    TEXT NOT NULL DEFAULT '[]',
	max_retries  INTEGER NOT NULL DEFAULT 0,
	cost_ceiling REAL NOT NULL DEFAULT 0,
	updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS provider_states (
	provider   TEXT PRIMARY KEY,
	active     INTEGER NOT NULL DEFAULT 1,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id        TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	action    TEXT NOT NULL DEFAULT '',
	actor     TEXT NOT NULL DEFAULT '',
	feature   TEXT NOT NULL DEFAULT '',
	provider  TEXT NOT NULL DEFAULT '',
	details   TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_log_action    ON audit_log(action);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *StateStore) Close() error {
	return s.db.Close()
}

// ---------- feature overrides ----------

func (s *StateStore) SaveFeatureOverride(ctx context.Context, o *store.FeatureOverride) error {
	if o == nil || strings.TrimSpace(o.Feature) == "" {
		return fmt.Errorf("feature override requires a feature name: %w", store.ErrInvalidInput)
	}

	fallbacks, err := json.Marshal(o.Fallbacks)
	if err != nil {
		return fmt.Errorf("marshalling fallbacks for %s: %w", o.Feature, err)
	}

	const q = `INSERT INTO feature_overrides (feature, primary_id, fallbacks, max_retries, cost_ceiling, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(feature) DO UPDATE SET
	primary_id   = excluded.primary_id,
	fallbacks    = excluded.fallbacks,
	max_retries  = excluded.max_retries,
	cost_ceiling = excluded.cost_ceiling,
	updated_at   = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, q,
		o.Feature, o.Primary, string(fallbacks), o.MaxRetries, o.CostCeiling,
		formatTime(o.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving feature override %s: %w", o.Feature, wrapDB(err))
	}
	return nil
}

func (s *StateStore) GetFeatureOverride(ctx context.Context, feature string) (*store.FeatureOverride, error) {
	const q = `SELECT feature, primary_id, fallbacks, max_retries, cost_ceiling, updated_at
FROM feature_overrides WHERE feature = ?`

	var o store.FeatureOverride
	var fallbacksJSON, updatedAt string

	err := s.db.QueryRowContext(ctx, q, feature).Scan(
		&o.Feature, &o.Primary, &fallbacksJSON, &o.MaxRetries, &o.CostCeiling, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("feature override %s: %w", feature, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting feature override %s: %w", feature, wrapDB(err))
	}

	if err := decodeOverrideRow(&o, fallbacksJSON, updatedAt); err != nil {
		return nil, fmt.Errorf("decoding feature override %s: %w", feature, err)
	}
	return &o, nil
}

func (s *StateStore) ListFeatureOverrides(ctx context.Context) ([]*store.FeatureOverride, error) {
	const q = `SELECT feature, primary_id, fallbacks, max_retries, cost_ceiling, updated_at
FROM feature_overrides ORDER BY feature ASC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing feature overrides: %w", wrapDB(err))
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var overrides []*store.FeatureOverride
	for rows.Next() {
		var o store.FeatureOverride
		var fallbacksJSON, updatedAt string
		if err := rows.Scan(
			&o.Feature, &o.Primary, &fallbacksJSON, &o.MaxRetries, &o.CostCeiling, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning feature override row: %w", err)
		}
		if err := decodeOverrideRow(&o, fallbacksJSON, updatedAt); err != nil {
			return nil, fmt.Errorf("decoding feature override %s: %w", o.Feature, err)
		}
		overrides = append(overrides, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating feature overrides: %w", err)
	}
	return overrides, nil
}

func (s *StateStore) DeleteFeatureOverride(ctx context.Context, feature string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM feature_overrides WHERE feature = ?`, feature)
	if err != nil {
		return fmt.Errorf("deleting feature override %s: %w", feature, wrapDB(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows for feature override %s: %w", feature, err)
	}
	if rows == 0 {
		return fmt.Errorf("feature override %s: %w", feature, store.ErrNotFound)
	}
	return nil
}

// decodeOverrideRow fills the JSON and time columns of a scanned override.
func decodeOverrideRow(o *store.FeatureOverride, fallbacksJSON, updatedAt string) error {
	if fallbacksJSON != "" && fallbacksJSON != "[]" {
		if err := json.Unmarshal([]byte(fallbacksJSON), &o.Fallbacks); err != nil {
			return fmt.Errorf("unmarshalling fallbacks: %w", err)
		}
	}
	o.UpdatedAt = parseTime(updatedAt)
	return nil
}

// ---------- provider states ----------

func (s *StateStore) SaveProviderState(ctx context.Context, ps *store.ProviderState) error {
	if ps == nil || strings.TrimSpace(ps.Provider) == "" {
		return fmt.Errorf("provider state requires a provider id: %w", store.ErrInvalidInput)
	}

	const q = `INSERT INTO provider_states (provider, active, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(provider) DO UPDATE SET
	active     = excluded.active,
	updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, q, ps.Provider, ps.Active, formatTime(ps.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving provider state %s: %w", ps.Provider, wrapDB(err))
	}
	return nil
}

func (s *StateStore) ListProviderStates(ctx context.Context) ([]*store.ProviderState, error) {
	const q = `SELECT provider, active, updated_at FROM provider_states ORDER BY provider ASC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing provider states: %w", wrapDB(err))
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var states []*store.ProviderState
	for rows.Next() {
		var ps store.ProviderState
		var updatedAt string
		if err := rows.Scan(&ps.Provider, &ps.Active, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning provider state row: %w", err)
		}
		ps.UpdatedAt = parseTime(updatedAt)
		states = append(states, &ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating provider states: %w", err)
	}
	return states, nil
}

// ---------- audit log ----------

func (s *StateStore) AppendAudit(ctx context.Context, entry *store.AuditEntry) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("audit entry requires an id: %w", store.ErrInvalidInput)
	}

	details := "{}"
	if entry.Details != nil {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		details = string(b)
	}

	const q = `INSERT INTO audit_log (id, timestamp, action, actor, feature, provider, details)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		entry.ID, formatTime(entry.Timestamp), entry.Action, entry.Actor,
		entry.Feature, entry.Provider, details,
	)
	if err != nil {
		return fmt.Errorf("appending audit entry %s: %w", entry.ID, wrapDB(err))
	}
	return nil
}

func (s *StateStore) QueryAudit(ctx context.Context, filter store.AuditFilter) ([]*store.AuditEntry, error) {
	var qb strings.Builder
	qb.WriteString(`SELECT id, timestamp, action, actor, feature, provider, details FROM audit_log`)

	var conditions []string
	var args []any

	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.Actor != "" {
		conditions = append(conditions, "actor = ?")
		args = append(args, filter.Actor)
	}
	if filter.Feature != "" {
		conditions = append(conditions, "feature = ?")
		args = append(args, filter.Feature)
	}
	if filter.Provider != "" {
		conditions = append(conditions, "provider = ?")
		args = append(args, filter.Provider)
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, formatTime(filter.From))
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, formatTime(filter.To))
	}

	if len(conditions) > 0 {
		qb.WriteString(" WHERE ")
		qb.WriteString(strings.Join(conditions, " AND "))
	}

	qb.WriteString(" ORDER BY timestamp ASC")

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	qb.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", wrapDB(err))
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var entries []*store.AuditEntry
	for rows.Next() {
		var e store.AuditEntry
		var ts, detailsJSON string
		if err := rows.Scan(
			&e.ID, &ts, &e.Action, &e.Actor, &e.Feature, &e.Provider, &detailsJSON,
		); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		e.Timestamp = parseTime(ts)
		if detailsJSON != "" && detailsJSON != "{}" {
			if err := json.Unmarshal([]byte(detailsJSON), &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshalling audit details: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}

// wrapDB tags an unexpected driver error with the database sentinel so
// callers can classify it without importing the driver.
func wrapDB(err error) error {
	return fmt.Errorf("%w: %w", store.ErrDatabase, err)
}

// formatTime serialises a time.Time for storage.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

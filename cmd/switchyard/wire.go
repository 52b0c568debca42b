// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/switchyard-dev/switchyard/internal/catalog"
	"github.com/switchyard-dev/switchyard/internal/config"
	"github.com/switchyard-dev/switchyard/internal/metrics"
	"github.com/switchyard-dev/switchyard/internal/routing"
	"github.com/switchyard-dev/switchyard/internal/server"
	"github.com/switchyard-dev/switchyard/internal/store"
	_ "github.com/switchyard-dev/switchyard/internal/store/sqlite" // register sqlite backend
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
	"github.com/switchyard-dev/switchyard/pkg/health"
)

// App holds all wired subsystems and manages their lifecycle.
type App struct {
	Server  *server.Server
	Store   store.StateStore
	Catalog *catalog.Catalog
	Table   *routing.Table
	Engine  *routing.Engine
}

// WireApp creates all subsystems and wires them together.
// The dataDir is the root directory for all persistent state.
func WireApp(ctx context.Context, cfg *config.Config, dataDir string) (*App, error) {
	// Ensure the data directory exists.
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, syerr.Errorf(syerr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	// 1. State store (feature overrides, provider states, audit trail).
	st, err := store.NewStateStore(&store.StorageConfig{
		Backend: cfg.Storage.Backend,
		Path:    cfg.Storage.Path,
	}, dataDir)
	if err != nil {
		return nil, syerr.Errorf(syerr.CodeCLISetupFailure, "creating state store: %w", err)
	}

	// 2. Provider catalog from config, with persisted enable/disable
	// decisions replayed on top.
	cat, err := catalog.New(cfg.CatalogProviders()...)
	if err != nil {
		_ = st.Close()
		return nil, syerr.Errorf(syerr.CodeCLISetupFailure, "building catalog: %w", err)
	}
	replayProviderStates(ctx, cat, st)

	// 3. Feature routing table from config, with persisted operator
	// overrides replayed on top.
	var tableOpts []routing.TableOption
	if cfg.Engine.AllowFeatureCreate {
		tableOpts = append(tableOpts, routing.WithCreateOnUpdate())
	}
	table, err := routing.NewTable(cat, cfg.FeatureRoutes(), tableOpts...)
	if err != nil {
		_ = st.Close()
		return nil, syerr.Errorf(syerr.CodeCLISetupFailure, "building routing table: %w", err)
	}
	replayFeatureOverrides(ctx, table, st)

	// 4. Routing engine: health tracking, selection, recovery sweep.
	engine, err := routing.NewEngine(cat, table, cfg.RoutingConfig())
	if err != nil {
		_ = st.Close()
		return nil, syerr.Errorf(syerr.CodeCLISetupFailure, "building routing engine: %w", err)
	}

	// 5. HTTP server with service adapters for the REST endpoints.
	services, err := server.NewServices(
		&routingServiceAdapter{engine: engine},
		&providerServiceAdapter{catalog: cat, engine: engine, store: st},
		&featureServiceAdapter{table: table, store: st},
		&statusServiceAdapter{engine: engine},
		&auditServiceAdapter{store: st},
	)
	if err != nil {
		_ = st.Close()
		return nil, syerr.Errorf(syerr.CodeCLISetupFailure, "creating services: %w", err)
	}

	srv, err := server.New(server.Config{
		ListenAddr:   cfg.Server.Listen,
		CORSOrigins:  cfg.Server.CORSOrigins,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimitRPS,
			Burst:             cfg.Server.RateLimitBurst,
		},
		Services: services,
	})
	if err != nil {
		_ = st.Close()
		return nil, syerr.Errorf(syerr.CodeCLISetupFailure, "creating server: %w", err)
	}

	metrics.EngineInfo.WithLabelValues(version).Set(1)
	metrics.EngineStartTime.Set(float64(time.Now().Unix()))

	return &App{
		Server:  srv,
		Store:   st,
		Catalog: cat,
		Table:   table,
		Engine:  engine,
	}, nil
}

// Start runs the HTTP server and blocks until the context is cancelled.
func (app *App) Start(ctx context.Context) error {
	return app.Server.Start(ctx)
}

// Close releases all resources held by the app.
func (app *App) Close() error {
	type closer interface{ Close() error }
	closers := []closer{app.Server, app.Engine, app.Store}

	var errs []error
	for _, c := range closers {
		if c != nil {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// ApplyConfig applies the hot-reloadable part of a changed config file:
// the feature routing table. Catalog membership, engine tuning, and
// server settings need a restart. Operator overrides saved through the
// API are replayed on top so a config file touch does not silently roll
// them back.
func (app *App) ApplyConfig(ctx context.Context, cfg *config.Config) {
	for _, fc := range cfg.FeatureRoutes() {
		cur, err := app.Table.Get(fc.Feature)
		if err == nil && featureConfigEqual(cur, fc) {
			continue
		}
		upd := routing.FeatureUpdate{
			Primary:     &fc.Primary,
			Fallbacks:   &fc.Fallbacks,
			MaxRetries:  &fc.MaxRetries,
			CostCeiling: &fc.CostCeiling,
		}
		if _, err := app.Table.Update(fc.Feature, upd); err != nil {
			slog.Warn("config reload: feature route rejected", "feature", fc.Feature, "error", err)
			continue
		}
		slog.Info("config reload: feature route applied", "feature", fc.Feature)
	}
	replayFeatureOverrides(ctx, app.Table, app.Store)
}

func featureConfigEqual(a, b routing.FeatureConfig) bool {
	return a.Primary == b.Primary &&
		slices.Equal(a.Fallbacks, b.Fallbacks) &&
		a.MaxRetries == b.MaxRetries &&
		a.CostCeiling == b.CostCeiling
}

// replayProviderStates reapplies persisted enable/disable decisions.
// States for providers no longer in the config are logged and skipped.
func replayProviderStates(ctx context.Context, cat *catalog.Catalog, st store.StateStore) {
	states, err := st.ListProviderStates(ctx)
	if err != nil {
		slog.Warn("loading provider states", "error", err)
		return
	}
	for _, ps := range states {
		if err := cat.SetActive(ps.Provider, ps.Active); err != nil {
			slog.Warn("skipping provider state for unknown provider", "provider", ps.Provider)
			continue
		}
		if !ps.Active {
			slog.Info("provider disabled by persisted operator state", "provider", ps.Provider)
		}
	}
}

// replayFeatureOverrides reapplies persisted routing-table overrides.
// Overrides that no longer validate (removed providers, unknown
// features) are logged and skipped rather than failing startup.
func replayFeatureOverrides(ctx context.Context, table *routing.Table, st store.StateStore) {
	overrides, err := st.ListFeatureOverrides(ctx)
	if err != nil {
		slog.Warn("loading feature overrides", "error", err)
		return
	}
	for _, o := range overrides {
		upd := routing.FeatureUpdate{
			Primary:     &o.Primary,
			Fallbacks:   &o.Fallbacks,
			MaxRetries:  &o.MaxRetries,
			CostCeiling: &o.CostCeiling,
		}
		if _, err := table.Update(o.Feature, upd); err != nil {
			slog.Warn("skipping stale feature override", "feature", o.Feature, "error", err)
			continue
		}
		slog.Info("feature override applied", "feature", o.Feature, "updated_at", o.UpdatedAt)
	}
}

// --- Service adapters ---

// routingServiceAdapter bridges the routing engine to the server's RoutingService.
type routingServiceAdapter struct {
	engine *routing.Engine
}

func (a *routingServiceAdapter) Select(_ context.Context, feature string) (*server.RouteDecision, error) {
	provider, err := a.engine.SelectProvider(feature)
	if err != nil {
		return nil, err
	}
	attempts, err := a.engine.MaxAttempts(feature)
	if err != nil {
		return nil, err
	}
	return &server.RouteDecision{
		Feature:     feature,
		Provider:    provider,
		MaxAttempts: attempts,
	}, nil
}

func (a *routingServiceAdapter) Report(_ context.Context, report server.OutcomeReport) error {
	latency := time.Duration(report.LatencyMs * float64(time.Millisecond))
	a.engine.Report(report.Provider, report.Success, latency)
	return nil
}

// providerServiceAdapter bridges the catalog and engine to the server's ProviderService.
type providerServiceAdapter struct {
	catalog *catalog.Catalog
	engine  *routing.Engine
	store   store.StateStore
}

func (a *providerServiceAdapter) List(_ context.Context) ([]server.ProviderDetail, error) {
	providers := a.catalog.List()
	out := make([]server.ProviderDetail, len(providers))
	for i, p := range providers {
		out[i] = providerDetail(p)
	}
	return out, nil
}

func (a *providerServiceAdapter) GetHealth(_ context.Context, id string) (*health.Record, error) {
	rec, err := a.engine.ProviderHealth(id)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (a *providerServiceAdapter) SetActive(ctx context.Context, id string, active bool, actor string) (*server.ProviderDetail, error) {
	if err := a.catalog.SetActive(id, active); err != nil {
		return nil, err
	}

	// Persistence and audit are best-effort: the in-memory state already
	// changed, so a storage hiccup must not fail the operator's request.
	if err := a.store.SaveProviderState(ctx, &store.ProviderState{
		Provider:  id,
		Active:    active,
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		slog.Warn("persisting provider state", "provider", id, "error", err)
	}

	action := store.AuditActionProviderEnabled
	if !active {
		action = store.AuditActionProviderDisabled
	}
	if err := a.store.AppendAudit(ctx, &store.AuditEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		Actor:     actor,
		Provider:  id,
	}); err != nil {
		slog.Warn("appending audit entry", "provider", id, "error", err)
	}

	p, err := a.catalog.Get(id)
	if err != nil {
		return nil, err
	}
	detail := providerDetail(p)
	return &detail, nil
}

func providerDetail(p catalog.Provider) server.ProviderDetail {
	return server.ProviderDetail{
		ID:         p.ID,
		Category:   string(p.Category),
		UnitCost:   p.UnitCost,
		CostBucket: catalog.CostBucket(p.UnitCost),
		Capacity:   p.Capacity,
		Priority:   p.Priority,
		Active:     p.Active,
	}
}

// featureServiceAdapter bridges the routing table to the server's FeatureService.
type featureServiceAdapter struct {
	table *routing.Table
	store store.StateStore
}

func (a *featureServiceAdapter) List(_ context.Context) ([]server.FeatureRoute, error) {
	features := a.table.Features()
	out := make([]server.FeatureRoute, len(features))
	for i, fc := range features {
		out[i] = featureRoute(fc)
	}
	return out, nil
}

func (a *featureServiceAdapter) Get(_ context.Context, feature string) (*server.FeatureRoute, error) {
	fc, err := a.table.Get(feature)
	if err != nil {
		return nil, err
	}
	fr := featureRoute(fc)
	return &fr, nil
}

func (a *featureServiceAdapter) Update(ctx context.Context, feature string, upd server.FeatureRouteUpdate, actor string) (*server.FeatureRoute, error) {
	fc, err := a.table.Update(feature, routing.FeatureUpdate{
		Primary:     upd.Primary,
		Fallbacks:   upd.Fallbacks,
		MaxRetries:  upd.MaxRetries,
		CostCeiling: upd.CostCeiling,
	})
	if err != nil {
		return nil, err
	}

	// Persist the full resolved route, not the partial update, so replay
	// after a restart needs no merge logic.
	if err := a.store.SaveFeatureOverride(ctx, &store.FeatureOverride{
		Feature:     fc.Feature,
		Primary:     fc.Primary,
		Fallbacks:   fc.Fallbacks,
		MaxRetries:  fc.MaxRetries,
		CostCeiling: fc.CostCeiling,
		UpdatedAt:   time.Now().UTC(),
	}); err != nil {
		slog.Warn("persisting feature override", "feature", feature, "error", err)
	}

	if err := a.store.AppendAudit(ctx, &store.AuditEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Action:    store.AuditActionFeatureUpdated,
		Actor:     actor,
		Feature:   feature,
		Details: map[string]any{
			"primary":      fc.Primary,
			"fallbacks":    fc.Fallbacks,
			"max_retries":  fc.MaxRetries,
			"cost_ceiling": fc.CostCeiling,
		},
	}); err != nil {
		slog.Warn("appending audit entry", "feature", feature, "error", err)
	}

	fr := featureRoute(fc)
	return &fr, nil
}

func featureRoute(fc routing.FeatureConfig) server.FeatureRoute {
	fallbacks := fc.Fallbacks
	if fallbacks == nil {
		fallbacks = []string{}
	}
	return server.FeatureRoute{
		Feature:     fc.Feature,
		Primary:     fc.Primary,
		Fallbacks:   fallbacks,
		MaxRetries:  fc.MaxRetries,
		CostCeiling: fc.CostCeiling,
		MaxAttempts: fc.MaxAttempts(),
	}
}

// statusServiceAdapter bridges the engine's status view to the server's StatusService.
type statusServiceAdapter struct {
	engine *routing.Engine
}

func (a *statusServiceAdapter) Status(_ context.Context) (*server.EngineStatus, error) {
	ss := a.engine.SystemStatus()

	status := "ok"
	if ss.UnhealthyCount > 0 {
		status = "degraded"
	}

	byCategory := make(map[string]server.CategoryCount, len(ss.ByCategory))
	for name, c := range ss.ByCategory {
		byCategory[name] = server.CategoryCount{Total: c.Total, Healthy: c.Healthy}
	}

	providers := make([]server.ProviderStatusDetail, len(ss.Providers))
	for i, ps := range ss.Providers {
		providers[i] = server.ProviderStatusDetail{
			ProviderDetail: providerDetail(ps.Provider),
			Health:         ps.Health,
		}
	}

	return &server.EngineStatus{
		Status:         status,
		TotalProviders: ss.TotalProviders,
		HealthyCount:   ss.HealthyCount,
		UnhealthyCount: ss.UnhealthyCount,
		ByCategory:     byCategory,
		ByCostBucket:   ss.ByCostBucket,
		Providers:      providers,
	}, nil
}

// auditServiceAdapter bridges the state store to the server's AuditService.
type auditServiceAdapter struct {
	store store.StateStore
}

func (a *auditServiceAdapter) Query(ctx context.Context, q server.AuditQuery) ([]server.AuditRecord, error) {
	entries, err := a.store.QueryAudit(ctx, store.AuditFilter{
		Action:   q.Action,
		Actor:    q.Actor,
		Feature:  q.Feature,
		Provider: q.Provider,
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
	if err != nil {
		return nil, err
	}
	out := make([]server.AuditRecord, len(entries))
	for i, e := range entries {
		out[i] = server.AuditRecord{
			ID:        e.ID,
			Timestamp: e.Timestamp,
			Action:    e.Action,
			Actor:     e.Actor,
			Feature:   e.Feature,
			Provider:  e.Provider,
			Details:   e.Details,
		}
	}
	return out, nil
}

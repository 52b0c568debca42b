// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package server

import (
	"context"
	"time"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
	"github.com/switchyard-dev/switchyard/pkg/health"
)

// Services holds dependencies injected into route handlers.
// Each field is an interface so subsystems can be mocked in tests.
// Use the NewServices constructor to ensure all required services are provided.
type Services struct {
	routing   RoutingService
	providers ProviderService
	features  FeatureService
	status    StatusService
	audit     AuditService // optional; nil = audit endpoints return 404
}

// NewServices creates a Services instance with validation.
// Returns an error if any required service is nil.
// The optional audit variadic parameter sets the audit trail service.
func NewServices(routing RoutingService, providers ProviderService, features FeatureService, status StatusService, audit ...AuditService) (*Services, error) {
	if routing == nil {
		return nil, syerr.New(syerr.CodeServerConfigInvalid, "routing service is required")
	}
	if providers == nil {
		return nil, syerr.New(syerr.CodeServerConfigInvalid, "provider service is required")
	}
	if features == nil {
		return nil, syerr.New(syerr.CodeServerConfigInvalid, "feature service is required")
	}
	if status == nil {
		return nil, syerr.New(syerr.CodeServerConfigInvalid, "status service is required")
	}
	if len(audit) > 1 {
		return nil, syerr.New(syerr.CodeServerConfigInvalid, "at most one audit service may be supplied")
	}
	s := &Services{
		routing:   routing,
		providers: providers,
		features:  features,
		status:    status,
	}
	if len(audit) > 0 && audit[0] != nil {
		s.audit = audit[0]
	}
	return s, nil
}

// Routing returns the routing service.
func (s *Services) Routing() RoutingService {
	return s.routing
}

// Providers returns the provider service.
func (s *Services) Providers() ProviderService {
	return s.providers
}

// Features returns the feature service.
func (s *Services) Features() FeatureService {
	return s.features
}

// Status returns the status service.
func (s *Services) Status() StatusService {
	return s.status
}

// Audit returns the optional audit service.
// Returns nil when no audit trail is configured.
func (s *Services) Audit() AuditService {
	return s.audit
}

// RoutingService resolves providers for features and accepts outcome
// reports from callers.
type RoutingService interface {
	Select(ctx context.Context, feature string) (*RouteDecision, error)
	Report(ctx context.Context, report OutcomeReport) error
}

// ProviderService exposes the provider catalog and per-provider health.
type ProviderService interface {
	List(ctx context.Context) ([]ProviderDetail, error)
	GetHealth(ctx context.Context, id string) (*health.Record, error)
	SetActive(ctx context.Context, id string, active bool, actor string) (*ProviderDetail, error)
}

// FeatureService exposes the runtime-mutable feature routing table.
type FeatureService interface {
	List(ctx context.Context) ([]FeatureRoute, error)
	Get(ctx context.Context, feature string) (*FeatureRoute, error)
	Update(ctx context.Context, feature string, upd FeatureRouteUpdate, actor string) (*FeatureRoute, error)
}

// StatusService summarizes the whole engine for operators.
type StatusService interface {
	Status(ctx context.Context) (*EngineStatus, error)
}

// AuditService queries the operator audit trail.
// This is optional — when nil, audit endpoints are not registered.
type AuditService interface {
	Query(ctx context.Context, q AuditQuery) ([]AuditRecord, error)
}

// RouteDecision is the REST representation of one routing decision.
type RouteDecision struct {
	Feature     string `json:"feature" doc:"Feature the decision is for"`
	Provider    string `json:"provider" doc:"Selected provider id"`
	MaxAttempts int    `json:"max_attempts" doc:"How many providers the caller may try for this request"`
}

// OutcomeReport is one caller-reported provider call outcome.
type OutcomeReport struct {
	Provider  string
	Success   bool
	LatencyMs float64
}

// ProviderDetail is the REST representation of a catalog provider.
type ProviderDetail struct {
	ID         string  `json:"id" doc:"Provider identifier"`
	Category   string  `json:"category" doc:"Service category"`
	UnitCost   float64 `json:"unit_cost" doc:"Cost per request unit"`
	CostBucket string  `json:"cost_bucket" doc:"Cost bucket (free, low, standard, premium)"`
	Capacity   int     `json:"capacity" doc:"Maximum concurrent requests"`
	Priority   int     `json:"priority" doc:"Display ordering priority (lower sorts first)"`
	Active     bool    `json:"active" doc:"Whether the provider is administratively enabled"`
}

// FeatureRoute is the REST representation of a feature's routing config.
type FeatureRoute struct {
	Feature     string   `json:"feature" doc:"Feature identifier"`
	Primary     string   `json:"primary" doc:"Primary provider id"`
	Fallbacks   []string `json:"fallbacks" doc:"Ordered fallback provider ids"`
	MaxRetries  int      `json:"max_retries" doc:"Attempt cap (0 = chain length)"`
	CostCeiling float64  `json:"cost_ceiling" doc:"Unit cost ceiling (0 = unlimited)"`
	MaxAttempts int      `json:"max_attempts" doc:"Effective attempts per request"`
}

// FeatureRouteUpdate is a partial update to a feature route.
// Nil fields keep their current value.
type FeatureRouteUpdate struct {
	Primary     *string   `json:"primary,omitempty" doc:"New primary provider id"`
	Fallbacks   *[]string `json:"fallbacks,omitempty" doc:"Replacement fallback chain"`
	MaxRetries  *int      `json:"max_retries,omitempty" minimum:"0" doc:"New attempt cap"`
	CostCeiling *float64  `json:"cost_ceiling,omitempty" minimum:"0" doc:"New cost ceiling (0 clears it)"`
}

// CategoryCount summarizes provider health within one category.
type CategoryCount struct {
	Total   int `json:"total" doc:"Providers in this category"`
	Healthy int `json:"healthy" doc:"Currently healthy providers"`
}

// ProviderStatusDetail pairs a provider with its health view.
type ProviderStatusDetail struct {
	ProviderDetail
	Health health.Record `json:"health"`
}

// EngineStatus is the REST representation of the whole engine's state.
type EngineStatus struct {
	Status         string                   `json:"status" example:"ok" doc:"Engine status"`
	TotalProviders int                      `json:"total_providers" doc:"Providers in the catalog"`
	HealthyCount   int                      `json:"healthy_count" doc:"Providers currently marked healthy"`
	UnhealthyCount int                      `json:"unhealthy_count" doc:"Providers currently marked unhealthy"`
	ByCategory     map[string]CategoryCount `json:"by_category" doc:"Health counts per category"`
	ByCostBucket   map[string]int           `json:"by_cost_bucket" doc:"Provider counts per cost bucket"`
	Providers      []ProviderStatusDetail   `json:"providers" doc:"Per-provider detail"`
}

// AuditQuery narrows an audit trail query. Zero fields match everything.
type AuditQuery struct {
	Action   string
	Actor    string
	Feature  string
	Provider string
	Limit    int
	Offset   int
}

// AuditRecord is one entry of the operator audit trail.
type AuditRecord struct {
	ID        string         `json:"id" doc:"Entry identifier"`
	Timestamp time.Time      `json:"timestamp" doc:"When the action happened"`
	Action    string         `json:"action" doc:"What happened"`
	Actor     string         `json:"actor" doc:"Who did it"`
	Feature   string         `json:"feature,omitempty" doc:"Affected feature, if any"`
	Provider  string         `json:"provider,omitempty" doc:"Affected provider, if any"`
	Details   map[string]any `json:"details,omitempty" doc:"Action-specific detail"`
}

// NewServicesForTest creates a Services instance for testing.
// It delegates to NewServices to enforce the same validation invariants as
// production code. Panics if any required service is nil.
func NewServicesForTest(routing RoutingService, providers ProviderService, features FeatureService, status StatusService, audit ...AuditService) *Services {
	svc, err := NewServices(routing, providers, features, status, audit...)
	if err != nil {
		panic(err) // Test setup should provide all required services
	}
	return svc
}

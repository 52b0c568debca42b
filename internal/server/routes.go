// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
	"github.com/switchyard-dev/switchyard/pkg/health"
)

func (s *Server) registerRoutes() {
	// Status endpoint
	huma.Register(s.api, huma.Operation{
		OperationID: "engine-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Engine status",
		Tags:        []string{"system"},
	}, s.handleStatus)

	// Provider endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "list-providers",
		Method:      http.MethodGet,
		Path:        "/api/v1/providers",
		Summary:     "List catalog providers",
		Tags:        []string{"providers"},
	}, s.handleListProviders)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-provider-health",
		Method:      http.MethodGet,
		Path:        "/api/v1/providers/{id}/health",
		Summary:     "Get provider health",
		Tags:        []string{"providers"},
	}, s.handleGetProviderHealth)

	huma.Register(s.api, huma.Operation{
		OperationID: "set-provider-active",
		Method:      http.MethodPost,
		Path:        "/api/v1/providers/{id}/active",
		Summary:     "Enable or disable a provider",
		Tags:        []string{"providers"},
	}, s.handleSetProviderActive)

	// Feature routing endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "list-features",
		Method:      http.MethodGet,
		Path:        "/api/v1/features",
		Summary:     "List feature routes",
		Tags:        []string{"features"},
	}, s.handleListFeatures)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-feature",
		Method:      http.MethodGet,
		Path:        "/api/v1/features/{feature}",
		Summary:     "Get a feature route",
		Tags:        []string{"features"},
	}, s.handleGetFeature)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-feature",
		Method:      http.MethodPatch,
		Path:        "/api/v1/features/{feature}",
		Summary:     "Update a feature route",
		Description: "Applies a partial update to the feature's routing config. The merged config is validated in full before it takes effect.",
		Tags:        []string{"features"},
	}, s.handleUpdateFeature)

	// Routing endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "route-feature",
		Method:      http.MethodPost,
		Path:        "/api/v1/route/{feature}",
		Summary:     "Select a provider for a feature",
		Description: "Walks the feature's chain and returns the first eligible provider. Reading health here may lazily recover a provider past its cooldown.",
		Tags:        []string{"routing"},
	}, s.handleRoute)

	huma.Register(s.api, huma.Operation{
		OperationID: "report-outcome",
		Method:      http.MethodPost,
		Path:        "/api/v1/report",
		Summary:     "Report a provider call outcome",
		Tags:        []string{"routing"},
	}, s.handleReport)

	// Audit endpoints — only when an audit trail is wired.
	if s.services.Audit() != nil {
		huma.Register(s.api, huma.Operation{
			OperationID: "query-audit",
			Method:      http.MethodGet,
			Path:        "/api/v1/audit",
			Summary:     "Query the audit trail",
			Tags:        []string{"audit"},
		}, s.handleQueryAudit)
	}
}

// --- Request/Response types for huma ---

type statusOutput struct {
	Body EngineStatus
}

type listProvidersOutput struct {
	Body struct {
		Providers []ProviderDetail `json:"providers"`
	}
}

type providerIDInput struct {
	ID string `path:"id"`
}
type getProviderHealthOutput struct {
	Body health.Record
}

type setProviderActiveInput struct {
	ID   string `path:"id"`
	Body struct {
		Active bool   `json:"active" doc:"New administrative state"`
		Actor  string `json:"actor,omitempty" doc:"Who is making the change"`
	}
}
type setProviderActiveOutput struct {
	Body ProviderDetail
}

type listFeaturesOutput struct {
	Body struct {
		Features []FeatureRoute `json:"features"`
	}
}

type featureNameInput struct {
	Feature string `path:"feature"`
}
type getFeatureOutput struct {
	Body FeatureRoute
}

type updateFeatureInput struct {
	Feature string `path:"feature"`
	Body    struct {
		FeatureRouteUpdate
		Actor string `json:"actor,omitempty" doc:"Who is making the change"`
	}
}
type updateFeatureOutput struct {
	Body FeatureRoute
}

type routeOutput struct {
	Body RouteDecision
}

type reportInput struct {
	Body struct {
		Provider  string  `json:"provider" minLength:"1" doc:"Provider that served the call"`
		Success   bool    `json:"success" doc:"Whether the call succeeded"`
		LatencyMs float64 `json:"latency_ms,omitempty" minimum:"0" doc:"Observed call latency in milliseconds"`
	}
}
type reportOutput struct {
	Body struct {
		Status string `json:"status" example:"recorded"`
	}
}

type queryAuditInput struct {
	Action   string `query:"action" doc:"Filter by action"`
	Actor    string `query:"actor" doc:"Filter by actor"`
	Feature  string `query:"feature" doc:"Filter by feature"`
	Provider string `query:"provider" doc:"Filter by provider"`
	Limit    int    `query:"limit" minimum:"0" doc:"Page size (default 100)"`
	Offset   int    `query:"offset" minimum:"0" doc:"Page offset"`
}
type queryAuditOutput struct {
	Body struct {
		Entries []AuditRecord `json:"entries"`
	}
}

// --- Handlers ---

// humaError converts a service error into the matching huma status error.
func humaError(err error) error {
	switch syerr.HTTPStatus(err) {
	case http.StatusNotFound:
		return huma.Error404NotFound(err.Error())
	case http.StatusConflict:
		return huma.Error409Conflict(err.Error())
	case http.StatusBadRequest:
		return huma.Error400BadRequest(err.Error())
	case http.StatusServiceUnavailable:
		return huma.Error503ServiceUnavailable(err.Error())
	default:
		return huma.Error500InternalServerError("internal error", err)
	}
}

func (s *Server) handleStatus(ctx context.Context, _ *struct{}) (*statusOutput, error) {
	st, err := s.services.Status().Status(ctx)
	if err != nil {
		return nil, humaError(err)
	}
	return &statusOutput{Body: *st}, nil
}

func (s *Server) handleListProviders(ctx context.Context, _ *struct{}) (*listProvidersOutput, error) {
	providers, err := s.services.Providers().List(ctx)
	if err != nil {
		return nil, humaError(err)
	}
	out := &listProvidersOutput{}
	out.Body.Providers = providers
	return out, nil
}

func (s *Server) handleGetProviderHealth(ctx context.Context, input *providerIDInput) (*getProviderHealthOutput, error) {
	rec, err := s.services.Providers().GetHealth(ctx, input.ID)
	if err != nil {
		return nil, humaError(err)
	}
	return &getProviderHealthOutput{Body: *rec}, nil
}

func (s *Server) handleSetProviderActive(ctx context.Context, input *setProviderActiveInput) (*setProviderActiveOutput, error) {
	p, err := s.services.Providers().SetActive(ctx, input.ID, input.Body.Active, actorOrDefault(input.Body.Actor))
	if err != nil {
		return nil, humaError(err)
	}
	return &setProviderActiveOutput{Body: *p}, nil
}

func (s *Server) handleListFeatures(ctx context.Context, _ *struct{}) (*listFeaturesOutput, error) {
	features, err := s.services.Features().List(ctx)
	if err != nil {
		return nil, humaError(err)
	}
	out := &listFeaturesOutput{}
	out.Body.Features = features
	return out, nil
}

func (s *Server) handleGetFeature(ctx context.Context, input *featureNameInput) (*getFeatureOutput, error) {
	fr, err := s.services.Features().Get(ctx, input.Feature)
	if err != nil {
		return nil, humaError(err)
	}
	return &getFeatureOutput{Body: *fr}, nil
}

func (s *Server) handleUpdateFeature(ctx context.Context, input *updateFeatureInput) (*updateFeatureOutput, error) {
	fr, err := s.services.Features().Update(ctx, input.Feature, input.Body.FeatureRouteUpdate, actorOrDefault(input.Body.Actor))
	if err != nil {
		return nil, humaError(err)
	}
	return &updateFeatureOutput{Body: *fr}, nil
}

func (s *Server) handleRoute(ctx context.Context, input *featureNameInput) (*routeOutput, error) {
	decision, err := s.services.Routing().Select(ctx, input.Feature)
	if err != nil {
		return nil, humaError(err)
	}
	return &routeOutput{Body: *decision}, nil
}

func (s *Server) handleReport(ctx context.Context, input *reportInput) (*reportOutput, error) {
	err := s.services.Routing().Report(ctx, OutcomeReport{
		Provider:  input.Body.Provider,
		Success:   input.Body.Success,
		LatencyMs: input.Body.LatencyMs,
	})
	if err != nil {
		return nil, humaError(err)
	}
	out := &reportOutput{}
	out.Body.Status = "recorded"
	return out, nil
}

func (s *Server) handleQueryAudit(ctx context.Context, input *queryAuditInput) (*queryAuditOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 100
	}
	entries, err := s.services.Audit().Query(ctx, AuditQuery{
		Action:   input.Action,
		Actor:    input.Actor,
		Feature:  input.Feature,
		Provider: input.Provider,
		Limit:    limit,
		Offset:   input.Offset,
	})
	if err != nil {
		return nil, humaError(err)
	}
	out := &queryAuditOutput{}
	out.Body.Entries = entries
	return out, nil
}

// actorOrDefault substitutes the anonymous API actor when a mutation
// request does not say who made it.
func actorOrDefault(actor string) string {
	if actor == "" {
		return "api"
	}
	return actor
}

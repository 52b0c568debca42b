// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/switchyard-dev/switchyard/internal/server"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
	"github.com/switchyard-dev/switchyard/pkg/health"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI spec that huma generates from the Go type annotations.
func generateSpec() ([]byte, error) {
	// Use no-op service stubs so all routes are registered for schema
	// discovery. Handlers are never invoked during spec generation.
	svc := server.NewServicesForTest(&stubRouting{}, &stubProviders{}, &stubFeatures{}, &stubStatus{}, &stubAudit{})

	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		Services:   svc,
	})
	if err != nil {
		return nil, syerr.Errorf(syerr.CodeCLISetupFailure, "creating server: %w", err)
	}

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// No-op service stubs for spec generation. Methods are never called.

type stubRouting struct{}

func (s *stubRouting) Select(context.Context, string) (*server.RouteDecision, error) {
	return nil, nil
}
func (s *stubRouting) Report(context.Context, server.OutcomeReport) error { return nil }

type stubProviders struct{}

func (s *stubProviders) List(context.Context) ([]server.ProviderDetail, error) { return nil, nil }
func (s *stubProviders) GetHealth(context.Context, string) (*health.Record, error) {
	return nil, nil
}

func (s *stubProviders) SetActive(context.Context, string, bool, string) (*server.ProviderDetail, error) {
	return nil, nil
}

type stubFeatures struct{}

func (s *stubFeatures) List(context.Context) ([]server.FeatureRoute, error) { return nil, nil }
func (s *stubFeatures) Get(context.Context, string) (*server.FeatureRoute, error) {
	return nil, nil
}

func (s *stubFeatures) Update(context.Context, string, server.FeatureRouteUpdate, string) (*server.FeatureRoute, error) {
	return nil, nil
}

type stubStatus struct{}

func (s *stubStatus) Status(context.Context) (*server.EngineStatus, error) { return nil, nil }

type stubAudit struct{}

func (s *stubAudit) Query(context.Context, server.AuditQuery) ([]server.AuditRecord, error) {
	return nil, nil
}

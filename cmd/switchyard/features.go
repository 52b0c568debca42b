// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func newFeaturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Manage feature routes",
		Long:  "List feature routing chains, inspect a single feature, and update chains at runtime.",
	}

	cmd.AddCommand(
		newFeaturesListCmd(),
		newFeaturesGetCmd(),
		newFeaturesSetCmd(),
	)

	return cmd
}

func newFeaturesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List feature routes",
		RunE:  runFeaturesList,
	}

	addAddressFlag(cmd)

	return cmd
}

func runFeaturesList(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	ec := newEngineClient(addr)
	var body struct {
		Features []struct {
			Feature     string   `json:"feature"`
			Primary     string   `json:"primary"`
			Fallbacks   []string `json:"fallbacks"`
			MaxRetries  int      `json:"max_retries"`
			CostCeiling float64  `json:"cost_ceiling"`
			MaxAttempts int      `json:"max_attempts"`
		} `json:"features"`
	}
	if err := ec.getJSON("/api/v1/features", &body); err != nil {
		if syerr.HasCode(err, syerr.CodeCLIEngineNotRunning) {
			_, _ = fmt.Fprintf(out, "Engine at %s is not running (connection refused)\n", addr)
			return nil
		}
		return syerr.Errorf(syerr.CodeCLIRequestFailure, "listing features: %w", err)
	}

	if len(body.Features) == 0 {
		_, _ = fmt.Fprintln(out, "No features configured")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "FEATURE\tPRIMARY\tFALLBACKS\tMAX ATTEMPTS\tCOST CEILING")
	for _, f := range body.Features {
		fallbacks := strings.Join(f.Fallbacks, ",")
		if fallbacks == "" {
			fallbacks = "-"
		}
		ceiling := "-"
		if f.CostCeiling > 0 {
			ceiling = fmt.Sprintf("%.4f", f.CostCeiling)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			f.Feature, f.Primary, fallbacks, f.MaxAttempts, ceiling)
	}
	return tw.Flush()
}

func newFeaturesGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <feature>",
		Short: "Show one feature route",
		Args:  cobra.ExactArgs(1),
		RunE:  runFeaturesGet,
	}

	addAddressFlag(cmd)

	return cmd
}

func runFeaturesGet(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()
	feature := args[0]

	ec := newEngineClient(addr)
	var body struct {
		Feature     string   `json:"feature"`
		Primary     string   `json:"primary"`
		Fallbacks   []string `json:"fallbacks"`
		MaxRetries  int      `json:"max_retries"`
		CostCeiling float64  `json:"cost_ceiling"`
		MaxAttempts int      `json:"max_attempts"`
	}
	if err := ec.getJSON("/api/v1/features/"+feature, &body); err != nil {
		if syerr.HasCode(err, syerr.CodeCLIEngineNotRunning) {
			_, _ = fmt.Fprintf(out, "Engine at %s is not running (connection refused)\n", addr)
			return nil
		}
		return syerr.Errorf(syerr.CodeCLIRequestFailure, "fetching feature %s: %w", feature, err)
	}

	_, _ = fmt.Fprintf(out, "Feature %s\n", body.Feature)
	_, _ = fmt.Fprintf(out, "  primary: %s\n", body.Primary)
	if len(body.Fallbacks) > 0 {
		_, _ = fmt.Fprintf(out, "  fallbacks: %s\n", strings.Join(body.Fallbacks, ", "))
	} else {
		_, _ = fmt.Fprintln(out, "  fallbacks: none")
	}
	_, _ = fmt.Fprintf(out, "  max retries: %d\n", body.MaxRetries)
	if body.CostCeiling > 0 {
		_, _ = fmt.Fprintf(out, "  cost ceiling: %.4f\n", body.CostCeiling)
	}
	_, _ = fmt.Fprintf(out, "  max attempts: %d\n", body.MaxAttempts)
	return nil
}

func newFeaturesSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <feature>",
		Short: "Update a feature route",
		Long:  "Applies a partial update to a feature's routing chain. Only the flags given change; the merged route is validated by the engine before it takes effect.",
		Args:  cobra.ExactArgs(1),
		RunE:  runFeaturesSet,
	}

	addAddressFlag(cmd)
	cmd.Flags().String("primary", "", "new primary provider")
	cmd.Flags().StringSlice("fallbacks", nil, "replacement fallback chain (comma-separated)")
	cmd.Flags().Int("max-retries", 0, "new attempt cap (0 = chain length)")
	cmd.Flags().Float64("cost-ceiling", 0, "new unit cost ceiling (0 clears it)")
	cmd.Flags().String("actor", "cli", "who is making the change (recorded in the audit trail)")

	return cmd
}

func runFeaturesSet(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("address")
	actor, _ := cmd.Flags().GetString("actor")
	out := cmd.OutOrStdout()
	feature := args[0]

	// Only flags the operator actually set go into the body; the engine
	// keeps current values for everything omitted.
	payload := map[string]any{"actor": actor}
	if cmd.Flags().Changed("primary") {
		primary, _ := cmd.Flags().GetString("primary")
		payload["primary"] = primary
	}
	if cmd.Flags().Changed("fallbacks") {
		fallbacks, _ := cmd.Flags().GetStringSlice("fallbacks")
		payload["fallbacks"] = fallbacks
	}
	if cmd.Flags().Changed("max-retries") {
		maxRetries, _ := cmd.Flags().GetInt("max-retries")
		payload["max_retries"] = maxRetries
	}
	if cmd.Flags().Changed("cost-ceiling") {
		ceiling, _ := cmd.Flags().GetFloat64("cost-ceiling")
		payload["cost_ceiling"] = ceiling
	}
	if len(payload) == 1 {
		return syerr.New(syerr.CodeCLIInputInvalid,
			"nothing to update: pass at least one of --primary, --fallbacks, --max-retries, --cost-ceiling")
	}

	ec := newEngineClient(addr)
	var body struct {
		Feature     string   `json:"feature"`
		Primary     string   `json:"primary"`
		Fallbacks   []string `json:"fallbacks"`
		MaxAttempts int      `json:"max_attempts"`
	}
	if err := ec.patchJSON("/api/v1/features/"+feature, payload, &body); err != nil {
		if syerr.HasCode(err, syerr.CodeCLIEngineNotRunning) {
			_, _ = fmt.Fprintf(out, "Engine at %s is not running (connection refused)\n", addr)
			return nil
		}
		return syerr.Errorf(syerr.CodeCLIRequestFailure, "updating feature %s: %w", feature, err)
	}

	chain := body.Primary
	if len(body.Fallbacks) > 0 {
		chain += " > " + strings.Join(body.Fallbacks, " > ")
	}
	_, _ = fmt.Fprintf(out, "Feature %s now routes: %s (max attempts %d)\n",
		body.Feature, chain, body.MaxAttempts)
	return nil
}

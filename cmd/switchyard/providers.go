// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func newProvidersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Manage the provider catalog",
		Long:  "List catalog providers, inspect their health, and enable or disable them at runtime.",
	}

	cmd.AddCommand(
		newProvidersListCmd(),
		newProvidersHealthCmd(),
		newProvidersActiveCmd("enable", true),
		newProvidersActiveCmd("disable", false),
	)

	return cmd
}

func newProvidersListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog providers",
		RunE:  runProvidersList,
	}

	addAddressFlag(cmd)

	return cmd
}

func runProvidersList(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	ec := newEngineClient(addr)
	var body struct {
		Providers []struct {
			ID         string  `json:"id"`
			Category   string  `json:"category"`
			UnitCost   float64 `json:"unit_cost"`
			CostBucket string  `json:"cost_bucket"`
			Capacity   int     `json:"capacity"`
			Priority   int     `json:"priority"`
			Active     bool    `json:"active"`
		} `json:"providers"`
	}
	if err := ec.getJSON("/api/v1/providers", &body); err != nil {
		if syerr.HasCode(err, syerr.CodeCLIEngineNotRunning) {
			_, _ = fmt.Fprintf(out, "Engine at %s is not running (connection refused)\n", addr)
			return nil
		}
		return syerr.Errorf(syerr.CodeCLIRequestFailure, "listing providers: %w", err)
	}

	if len(body.Providers) == 0 {
		_, _ = fmt.Fprintln(out, "No providers configured")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tCATEGORY\tUNIT COST\tBUCKET\tCAPACITY\tPRIORITY\tACTIVE")
	for _, p := range body.Providers {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%.4f\t%s\t%d\t%d\t%t\n",
			p.ID, p.Category, p.UnitCost, p.CostBucket, p.Capacity, p.Priority, p.Active)
	}
	return tw.Flush()
}

func newProvidersHealthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health <provider>",
		Short: "Show a provider's health record",
		Args:  cobra.ExactArgs(1),
		RunE:  runProvidersHealth,
	}

	addAddressFlag(cmd)

	return cmd
}

func runProvidersHealth(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()
	id := args[0]

	ec := newEngineClient(addr)
	var body struct {
		Provider            string  `json:"provider"`
		Healthy             bool    `json:"healthy"`
		ConsecutiveFailures int     `json:"consecutive_failures"`
		AvgLatencyMs        float64 `json:"avg_latency_ms"`
		LastChecked         string  `json:"last_checked"`
		RecoverAt           string  `json:"recover_at"`
		Available           bool    `json:"available"`
	}
	if err := ec.getJSON("/api/v1/providers/"+id+"/health", &body); err != nil {
		if syerr.HasCode(err, syerr.CodeCLIEngineNotRunning) {
			_, _ = fmt.Fprintf(out, "Engine at %s is not running (connection refused)\n", addr)
			return nil
		}
		return syerr.Errorf(syerr.CodeCLIRequestFailure, "fetching health for %s: %w", id, err)
	}

	state := "healthy"
	if !body.Healthy {
		state = "unhealthy"
	}
	_, _ = fmt.Fprintf(out, "Provider %s: %s\n", body.Provider, state)
	_, _ = fmt.Fprintf(out, "  consecutive failures: %d\n", body.ConsecutiveFailures)
	_, _ = fmt.Fprintf(out, "  avg latency: %.1f ms\n", body.AvgLatencyMs)
	if body.LastChecked != "" {
		_, _ = fmt.Fprintf(out, "  last checked: %s\n", body.LastChecked)
	}
	if body.RecoverAt != "" {
		_, _ = fmt.Fprintf(out, "  recover at: %s\n", body.RecoverAt)
	}
	_, _ = fmt.Fprintf(out, "  available for routing: %t\n", body.Available)
	return nil
}

// newProvidersActiveCmd builds the enable and disable subcommands, which
// differ only in the flag value they post.
func newProvidersActiveCmd(verb string, active bool) *cobra.Command {
	short := "Enable a provider for routing"
	if !active {
		short = "Disable a provider for routing"
	}
	cmd := &cobra.Command{
		Use:   verb + " <provider>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvidersActive(cmd, args[0], active)
		},
	}

	addAddressFlag(cmd)
	cmd.Flags().String("actor", "cli", "who is making the change (recorded in the audit trail)")

	return cmd
}

func runProvidersActive(cmd *cobra.Command, id string, active bool) error {
	addr, _ := cmd.Flags().GetString("address")
	actor, _ := cmd.Flags().GetString("actor")
	out := cmd.OutOrStdout()

	ec := newEngineClient(addr)
	payload := map[string]any{
		"active": active,
		"actor":  actor,
	}
	var body struct {
		ID     string `json:"id"`
		Active bool   `json:"active"`
	}
	if err := ec.postJSON("/api/v1/providers/"+id+"/active", payload, &body); err != nil {
		if syerr.HasCode(err, syerr.CodeCLIEngineNotRunning) {
			_, _ = fmt.Fprintf(out, "Engine at %s is not running (connection refused)\n", addr)
			return nil
		}
		return syerr.Errorf(syerr.CodeCLIRequestFailure, "updating provider %s: %w", id, err)
	}

	state := "disabled"
	if body.Active {
		state = "enabled"
	}
	_, _ = fmt.Fprintf(out, "Provider %s is now %s\n", body.ID, state)
	return nil
}

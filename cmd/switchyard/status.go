// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show engine status",
		Long:  "Check the running engine's status endpoint and display provider health counts.",
		RunE:  runStatus,
	}

	addAddressFlag(cmd)

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	ec := newEngineClient(addr)
	var body struct {
		Status         string `json:"status"`
		TotalProviders int    `json:"total_providers"`
		HealthyCount   int    `json:"healthy_count"`
		UnhealthyCount int    `json:"unhealthy_count"`
		ByCategory     map[string]struct {
			Total   int `json:"total"`
			Healthy int `json:"healthy"`
		} `json:"by_category"`
	}
	if err := ec.getJSON("/api/v1/status", &body); err != nil {
		if syerr.HasCode(err, syerr.CodeCLIEngineNotRunning) {
			_, _ = fmt.Fprintf(out, "Engine at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Engine at %s: %s\n", addr, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Engine at %s: %s\n", addr, body.Status)
	_, _ = fmt.Fprintf(out, "Providers: %d total, %d healthy, %d unhealthy\n",
		body.TotalProviders, body.HealthyCount, body.UnhealthyCount)

	if len(body.ByCategory) > 0 {
		names := make([]string, 0, len(body.ByCategory))
		for name := range body.ByCategory {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, name := range names {
			c := body.ByCategory[name]
			_, _ = fmt.Fprintf(w, "  %s\t%d total\t%d healthy\n", name, c.Total, c.Healthy)
		}
		_ = w.Flush()
	}

	return nil
}

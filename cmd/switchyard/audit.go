// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"fmt"
	"net/url"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the operator audit trail",
		Long:  "Lists who changed what: provider enables and disables, and feature route updates. Filters narrow the result; entries come back newest first.",
		RunE:  runAudit,
	}

	addAddressFlag(cmd)
	cmd.Flags().String("action", "", "filter by action (e.g. feature.updated)")
	cmd.Flags().String("actor", "", "filter by actor")
	cmd.Flags().String("feature", "", "filter by feature")
	cmd.Flags().String("provider", "", "filter by provider")
	cmd.Flags().Int("limit", 50, "maximum entries to return")
	cmd.Flags().Int("offset", 0, "entries to skip")

	return cmd
}

func runAudit(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	q := url.Values{}
	for _, name := range []string{"action", "actor", "feature", "provider"} {
		if v, _ := cmd.Flags().GetString(name); v != "" {
			q.Set(name, v)
		}
	}
	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset, _ := cmd.Flags().GetInt("offset"); offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	path := "/api/v1/audit"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	ec := newEngineClient(addr)
	var body struct {
		Entries []struct {
			Timestamp time.Time `json:"timestamp"`
			Action    string    `json:"action"`
			Actor     string    `json:"actor"`
			Feature   string    `json:"feature"`
			Provider  string    `json:"provider"`
		} `json:"entries"`
	}
	if err := ec.getJSON(path, &body); err != nil {
		if syerr.HasCode(err, syerr.CodeCLIEngineNotRunning) {
			_, _ = fmt.Fprintf(out, "Engine at %s is not running (connection refused)\n", addr)
			return nil
		}
		return syerr.Errorf(syerr.CodeCLIRequestFailure, "querying audit trail: %w", err)
	}

	if len(body.Entries) == 0 {
		_, _ = fmt.Fprintln(out, "No audit entries found")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIME\tACTION\tACTOR\tTARGET")
	for _, e := range body.Entries {
		target := e.Feature
		if target == "" {
			target = e.Provider
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format(time.RFC3339), e.Action, e.Actor, target)
	}
	return tw.Flush()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <provider>",
		Short: "Report a provider call outcome",
		Long:  "Feeds one call outcome into the engine's health tracking. Without --failure the call is reported as a success.",
		Args:  cobra.ExactArgs(1),
		RunE:  runReport,
	}

	addAddressFlag(cmd)
	cmd.Flags().Bool("failure", false, "report the call as failed")
	cmd.Flags().Float64("latency-ms", 0, "observed call latency in milliseconds")

	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("address")
	failure, _ := cmd.Flags().GetBool("failure")
	latencyMs, _ := cmd.Flags().GetFloat64("latency-ms")
	out := cmd.OutOrStdout()
	provider := args[0]

	if latencyMs < 0 {
		return syerr.New(syerr.CodeCLIInputInvalid, "--latency-ms must not be negative")
	}

	ec := newEngineClient(addr)
	payload := map[string]any{
		"provider":   provider,
		"success":    !failure,
		"latency_ms": latencyMs,
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := ec.postJSON("/api/v1/report", payload, &body); err != nil {
		if syerr.HasCode(err, syerr.CodeCLIEngineNotRunning) {
			_, _ = fmt.Fprintf(out, "Engine at %s is not running (connection refused)\n", addr)
			return nil
		}
		return syerr.Errorf(syerr.CodeCLIRequestFailure, "reporting outcome for %s: %w", provider, err)
	}

	outcome := "success"
	if failure {
		outcome = "failure"
	}
	_, _ = fmt.Fprintf(out, "Recorded %s for provider %s\n", outcome, provider)
	return nil
}

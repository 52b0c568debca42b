// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func newRouteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route <feature>",
		Short: "Select a provider for a feature",
		Long:  "Asks the engine which provider should serve one request for the feature right now. Useful for checking what the product would get.",
		Args:  cobra.ExactArgs(1),
		RunE:  runRoute,
	}

	addAddressFlag(cmd)

	return cmd
}

func runRoute(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()
	feature := args[0]

	ec := newEngineClient(addr)
	var body struct {
		Feature     string `json:"feature"`
		Provider    string `json:"provider"`
		MaxAttempts int    `json:"max_attempts"`
	}
	if err := ec.postJSON("/api/v1/route/"+feature, struct{}{}, &body); err != nil {
		if syerr.HasCode(err, syerr.CodeCLIEngineNotRunning) {
			_, _ = fmt.Fprintf(out, "Engine at %s is not running (connection refused)\n", addr)
			return nil
		}
		return syerr.Errorf(syerr.CodeCLIRequestFailure, "routing feature %s: %w", feature, err)
	}

	_, _ = fmt.Fprintf(out, "Feature %s: use provider %s (max attempts %d)\n",
		body.Feature, body.Provider, body.MaxAttempts)
	return nil
}

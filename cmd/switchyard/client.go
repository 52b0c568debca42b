// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// defaultEngineAddr is where a locally started engine listens by default.
const defaultEngineAddr = "127.0.0.1:18650"

// defaultHTTPClient is the package-level HTTP client used by engine commands.
// Overridden in tests via httptest.
var defaultHTTPClient = &http.Client{
	Timeout: 5 * time.Second,
}

// addAddressFlag registers the shared --address flag on commands that talk
// to a running engine.
func addAddressFlag(cmd *cobra.Command) {
	cmd.Flags().String("address", defaultEngineAddr, "engine address (host:port)")
}

// clientFromFlags builds an engine client from the command's --address flag.
func clientFromFlags(cmd *cobra.Command) *engineClient {
	addr, _ := cmd.Flags().GetString("address")
	return newEngineClient(addr)
}

// engineClient provides HTTP access to a running switchyard engine.
type engineClient struct {
	baseURL string
	http    *http.Client
}

// newEngineClient creates a client targeting the given host:port address.
func newEngineClient(addr string) *engineClient {
	return &engineClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
// Returns a CodeCLIEngineNotRunning error on connection refused.
func (c *engineClient) getJSON(path string, dest any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return transportError(err)
	}
	return decodeResponse(resp, dest)
}

// postJSON sends payload as a JSON body via POST and decodes the response
// into dest. A nil dest discards the response body.
func (c *engineClient) postJSON(path string, payload, dest any) error {
	return c.sendJSON(http.MethodPost, path, payload, dest)
}

// patchJSON sends payload as a JSON body via PATCH and decodes the response
// into dest.
func (c *engineClient) patchJSON(path string, payload, dest any) error {
	return c.sendJSON(http.MethodPatch, path, payload, dest)
}

func (c *engineClient) sendJSON(method, path string, payload, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return syerr.Errorf(syerr.CodeCLIInputInvalid, "encoding request: %w", err)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return syerr.Errorf(syerr.CodeCLIRequestFailure, "building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(err)
	}
	return decodeResponse(resp, dest)
}

// transportError classifies a transport failure: connection refused means
// the engine is simply not running, anything else is a request failure.
func transportError(err error) error {
	if isDialError(err) {
		return syerr.New(syerr.CodeCLIEngineNotRunning, "engine is not running (connection refused)")
	}
	return syerr.Errorf(syerr.CodeCLIRequestFailure, "request failed: %w", err)
}

func decodeResponse(resp *http.Response, dest any) error {
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return syerr.Errorf(syerr.CodeCLIRequestFailure, "engine returned status %d: %s", resp.StatusCode, string(body))
	}

	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return syerr.Errorf(syerr.CodeCLIResponseInvalid, "invalid response: %w", err)
	}
	return nil
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}

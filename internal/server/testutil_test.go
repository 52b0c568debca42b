// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package server_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/switchyard-dev/switchyard/internal/server"
)

func newOptionsRequest(t *testing.T, path, origin string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodOptions, path, nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	return req
}

func doRequest(srv *server.Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

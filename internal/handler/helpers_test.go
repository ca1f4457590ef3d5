package handler_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/content-dashboard/internal/auth"
	"github.com/sakif/content-dashboard/internal/handler"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// serve routes one request through a router built by mount, optionally as
// the given identity.
func serve(t *testing.T, mount func(r chi.Router), method, target, body string, id *auth.Identity) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	mount(r)

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if id != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), *id))
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var body handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

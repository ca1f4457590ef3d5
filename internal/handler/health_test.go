package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/sakif/content-dashboard/internal/handler"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	mount := func(p pingFunc) func(chi.Router) {
		h := handler.NewHealthHandler(p, testLogger())
		return func(r chi.Router) { r.Get("/api/health", h.HandleHealth) }
	}

	rr := serve(t, mount(func(context.Context) error { return nil }), http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","database":"ok"}`, rr.Body.String())

	rr = serve(t, mount(func(context.Context) error { return errors.New("connection refused") }), http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"status":"degraded","database":"unreachable"}`, rr.Body.String())
}

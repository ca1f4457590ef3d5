package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/handler"
	"github.com/sakif/content-dashboard/internal/model"
)

type MockSyncer struct {
	Posts   []model.ContentPost
	SyncErr error
	Valid   bool
	Expires time.Time
	Err     error

	CapturedType model.PlatformType
}

func (m *MockSyncer) SyncPlatform(_ context.Context, t model.PlatformType) ([]model.ContentPost, error) {
	m.CapturedType = t
	return m.Posts, m.SyncErr
}

func (m *MockSyncer) SyncPostMetrics(_ context.Context, id string) (*model.ContentPost, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &model.ContentPost{ID: id}, nil
}

func (m *MockSyncer) ValidateCredentials(_ context.Context, t model.PlatformType) bool {
	m.CapturedType = t
	return m.Valid
}

func (m *MockSyncer) RefreshToken(_ context.Context, t model.PlatformType) (time.Time, error) {
	m.CapturedType = t
	return m.Expires, m.Err
}

type MockPlatforms struct {
	List []model.Platform
}

func (m *MockPlatforms) ListPlatforms(context.Context) ([]model.Platform, error) {
	return m.List, nil
}

func mountPlatforms(syncer *MockSyncer, platforms *MockPlatforms) func(chi.Router) {
	h := handler.NewPlatformHandler(syncer, platforms, testLogger())
	return func(r chi.Router) {
		r.Get("/api/platforms", h.HandleList)
		r.Post("/api/platforms/{type}/sync", h.HandleSync)
		r.Get("/api/platforms/{type}/validate", h.HandleValidate)
		r.Post("/api/platforms/{type}/refresh-token", h.HandleRefreshToken)
		r.Post("/api/posts/{id}/sync", h.HandleSyncPost)
	}
}

func TestPlatformHandler_Sync(t *testing.T) {
	t.Run("returns synced posts", func(t *testing.T) {
		syncer := &MockSyncer{Posts: []model.ContentPost{{ID: "p1"}, {ID: "p2"}}}
		rr := serve(t, mountPlatforms(syncer, nil), http.MethodPost, "/api/platforms/youtube/sync", "", nil)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, model.PlatformYouTube, syncer.CapturedType)

		var body handler.SyncResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, 2, body.Synced)
		assert.Len(t, body.Posts, 2)
	})

	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"unknown platform", "/api/platforms/myspace/sync", nil, http.StatusBadRequest, "validation_error"},
		{"not configured", "/api/platforms/linkedin/sync", apperror.NotFound("platform", "linkedin"), http.StatusNotFound, "not_found"},
		{"adapter failure", "/api/platforms/instagram/sync", apperror.Adapter("instagram", "sync", errors.New("token=secret expired")), http.StatusBadGateway, "adapter_error"},
		{"missing credential is still an adapter failure", "/api/platforms/youtube/sync",
			apperror.Adapter("youtube", "sync", apperror.ValidationFailed("credentials.api_key", "secret credential is required")),
			http.StatusBadGateway, "adapter_error"},
		{"wrapped not found", "/api/platforms/linkedin/sync", fmt.Errorf("service: %w", apperror.NotFound("platform", "linkedin")), http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(t, mountPlatforms(&MockSyncer{SyncErr: tt.err}, nil), http.MethodPost, tt.path, "", nil)

			assert.Equal(t, tt.wantStatus, rr.Code)
			body := decodeError(t, rr)
			assert.Equal(t, tt.wantType, body.Error)
			assert.False(t, strings.Contains(body.Message, "secret"), "adapter cause must not leak")
		})
	}
}

func TestPlatformHandler_Validate(t *testing.T) {
	rr := serve(t, mountPlatforms(&MockSyncer{Valid: true}, nil), http.MethodGet, "/api/platforms/linkedin/validate", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"valid":true}`, rr.Body.String())

	rr = serve(t, mountPlatforms(&MockSyncer{Valid: false}, nil), http.MethodGet, "/api/platforms/linkedin/validate", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"valid":false}`, rr.Body.String())
}

func TestPlatformHandler_List(t *testing.T) {
	platforms := &MockPlatforms{List: []model.Platform{{
		ID: "p1", Type: model.PlatformYouTube, Credentials: map[string]string{"api_key": "secret"}, IsActive: true,
	}}}
	rr := serve(t, mountPlatforms(&MockSyncer{}, platforms), http.MethodGet, "/api/platforms", "", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "secret")
	assert.Contains(t, rr.Body.String(), `"type":"youtube"`)
}

func TestPlatformHandler_RefreshToken(t *testing.T) {
	expires := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	rr := serve(t, mountPlatforms(&MockSyncer{Expires: expires}, nil), http.MethodPost, "/api/platforms/instagram/refresh-token", "", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"expiresAt":"2025-08-01T00:00:00Z"}`, rr.Body.String())

	rr = serve(t, mountPlatforms(&MockSyncer{Err: apperror.ValidationFailed("platform", "youtube does not support token refresh")}, nil),
		http.MethodPost, "/api/platforms/youtube/refresh-token", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPlatformHandler_SyncPost(t *testing.T) {
	rr := serve(t, mountPlatforms(&MockSyncer{}, nil), http.MethodPost, "/api/posts/p9/sync", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"id":"p9"`)

	rr = serve(t, mountPlatforms(&MockSyncer{Err: apperror.NotFound("content post", "p9")}, nil), http.MethodPost, "/api/posts/p9/sync", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

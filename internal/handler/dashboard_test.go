package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/handler"
	"github.com/sakif/content-dashboard/internal/model"
)

type MockReader struct {
	Overview    model.Overview
	OverviewErr error

	Posts    []model.ContentPost
	PostsErr error

	CapturedLimit    int
	CapturedOffset   int
	CapturedPlatform model.PlatformType
}

func (m *MockReader) ComputeOverview(context.Context) (model.Overview, error) {
	return m.Overview, m.OverviewErr
}

func (m *MockReader) TopPosts(_ context.Context, limit int) ([]model.ContentPost, error) {
	m.CapturedLimit = limit
	return m.Posts, m.PostsErr
}

func (m *MockReader) ListPosts(_ context.Context, t model.PlatformType, limit, offset int) ([]model.ContentPost, error) {
	m.CapturedPlatform, m.CapturedLimit, m.CapturedOffset = t, limit, offset
	return m.Posts, m.PostsErr
}

func (m *MockReader) GetPost(_ context.Context, id string) (*model.ContentPost, error) {
	for i := range m.Posts {
		if m.Posts[i].ID == id {
			return &m.Posts[i], nil
		}
	}
	return nil, apperror.NotFound("content post", id)
}

func mountDashboard(reader *MockReader) func(chi.Router) {
	h := handler.NewDashboardHandler(reader, testLogger())
	return func(r chi.Router) {
		r.Get("/api/metrics/overview", h.HandleOverview)
		r.Get("/api/posts", h.HandleListPosts)
		r.Get("/api/posts/top", h.HandleTopPosts)
		r.Get("/api/posts/{id}", h.HandleGetPost)
	}
}

func TestDashboardHandler_Overview(t *testing.T) {
	t.Run("empty dashboard", func(t *testing.T) {
		reader := &MockReader{Overview: model.Overview{TopPlatform: "none"}}
		rr := serve(t, mountDashboard(reader), http.MethodGet, "/api/metrics/overview", "", nil)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"totalPosts":0,"avgPerformanceScore":0,"topPlatform":"none","recentPosts":0}`, rr.Body.String())
	})

	t.Run("storage failure hides details", func(t *testing.T) {
		reader := &MockReader{OverviewErr: errors.New("pq: relation content_posts does not exist")}
		rr := serve(t, mountDashboard(reader), http.MethodGet, "/api/metrics/overview", "", nil)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		body := decodeError(t, rr)
		assert.Equal(t, "internal_error", body.Error)
		assert.NotContains(t, body.Message, "relation")
	})
}

func TestDashboardHandler_TopPosts(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLimit  int
	}{
		{"default limit", "", http.StatusOK, 5},
		{"explicit limit", "?limit=12", http.StatusOK, 12},
		{"non numeric limit", "?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &MockReader{Posts: []model.ContentPost{}}
			rr := serve(t, mountDashboard(reader), http.MethodGet, "/api/posts/top"+tt.query, "", nil)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantLimit, reader.CapturedLimit)
				assert.JSONEq(t, `[]`, rr.Body.String())
			} else {
				assert.Equal(t, "validation_error", decodeError(t, rr).Error)
			}
		})
	}
}

func TestDashboardHandler_ListPosts(t *testing.T) {
	t.Run("filters and paging", func(t *testing.T) {
		reader := &MockReader{Posts: []model.ContentPost{{ID: "p1", ContentID: "v1"}}}
		rr := serve(t, mountDashboard(reader), http.MethodGet, "/api/posts?platform=youtube&limit=10&offset=20", "", nil)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, model.PlatformYouTube, reader.CapturedPlatform)
		assert.Equal(t, 10, reader.CapturedLimit)
		assert.Equal(t, 20, reader.CapturedOffset)

		var posts []model.ContentPost
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&posts))
		assert.Len(t, posts, 1)
	})

	t.Run("unknown platform", func(t *testing.T) {
		rr := serve(t, mountDashboard(&MockReader{}), http.MethodGet, "/api/posts?platform=myspace", "", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("bad offset", func(t *testing.T) {
		rr := serve(t, mountDashboard(&MockReader{}), http.MethodGet, "/api/posts?offset=x", "", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestDashboardHandler_GetPost(t *testing.T) {
	reader := &MockReader{Posts: []model.ContentPost{{ID: "p1", ContentID: "v1", Title: "Launch"}}}

	rr := serve(t, mountDashboard(reader), http.MethodGet, "/api/posts/p1", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var post model.ContentPost
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&post))
	assert.Equal(t, "Launch", post.Title)

	rr = serve(t, mountDashboard(reader), http.MethodGet, "/api/posts/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", decodeError(t, rr).Error)
}

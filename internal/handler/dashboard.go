package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/model"
	"github.com/sakif/content-dashboard/internal/service"
)

// DashboardReader is the read side served to the dashboard.
// *service.OverviewService implements it.
type DashboardReader interface {
	ComputeOverview(ctx context.Context) (model.Overview, error)
	TopPosts(ctx context.Context, limit int) ([]model.ContentPost, error)
	ListPosts(ctx context.Context, t model.PlatformType, limit, offset int) ([]model.ContentPost, error)
	GetPost(ctx context.Context, id string) (*model.ContentPost, error)
}

type DashboardHandler struct {
	reader DashboardReader
	logger *slog.Logger
}

func NewDashboardHandler(reader DashboardReader, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{reader: reader, logger: logger}
}

// HandleOverview serves GET /api/metrics/overview.
func (h *DashboardHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.reader.ComputeOverview(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// HandleTopPosts serves GET /api/posts/top?limit=N.
func (h *DashboardHandler) HandleTopPosts(w http.ResponseWriter, r *http.Request) {
	limit, err := service.ParseLimit(r.URL.Query().Get("limit"), service.DefaultTopPosts)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	posts, err := h.reader.TopPosts(r.Context(), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleListPosts serves GET /api/posts?platform=&limit=&offset=.
func (h *DashboardHandler) HandleListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var t model.PlatformType
	if raw := q.Get("platform"); raw != "" {
		parsed, ok := model.ParsePlatformType(raw)
		if !ok {
			writeError(w, h.logger, apperror.ValidationFailed("platform", "unknown platform "+raw))
			return
		}
		t = parsed
	}

	limit, err := service.ParseLimit(q.Get("limit"), service.DefaultListLimit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	offset, err := service.ParseLimit(q.Get("offset"), 0)
	if err != nil {
		writeError(w, h.logger, apperror.ValidationFailed("offset", "offset must be a number"))
		return
	}

	posts, err := h.reader.ListPosts(r.Context(), t, limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleGetPost serves GET /api/posts/{id}.
func (h *DashboardHandler) HandleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.reader.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

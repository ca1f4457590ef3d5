package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/model"
)

// maxBatchPosts bounds one batch request; each post is one LLM call.
const maxBatchPosts = 20

// PostAnalysis is implemented by *service.AnalysisService.
type PostAnalysis interface {
	AnalyzePost(ctx context.Context, postID string) (*model.ContentPost, error)
	AnalyzeBatch(ctx context.Context, postIDs []string) ([]model.ContentPost, error)
}

// AnalysisHandler runs LLM calls inside the request, under the
// long-request timeout.
type AnalysisHandler struct {
	analysis PostAnalysis
	opts     options
	logger   *slog.Logger
}

func NewAnalysisHandler(analysis PostAnalysis, logger *slog.Logger, opts ...Option) *AnalysisHandler {
	return &AnalysisHandler{analysis: analysis, opts: buildOptions(opts), logger: logger}
}

type batchAnalysisRequest struct {
	PostIDs []string `json:"postIds"`
}

// HandleAnalyzePost serves POST /api/posts/{id}/analyze.
func (h *AnalysisHandler) HandleAnalyzePost(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := longRunning(w, r, h.opts.longTimeout)
	defer cancel()

	post, err := h.analysis.AnalyzePost(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleBatch serves POST /api/analysis/batch with {"postIds": [...]}.
// Posts that fail are left out of the response.
func (h *AnalysisHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchAnalysisRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if len(req.PostIDs) == 0 {
		writeError(w, h.logger, apperror.ValidationFailed("postIds", "at least one post id is required"))
		return
	}
	if len(req.PostIDs) > maxBatchPosts {
		writeError(w, h.logger, apperror.ValidationFailed("postIds", "at most 20 posts per batch"))
		return
	}

	ctx, cancel := longRunning(w, r, h.opts.longTimeout)
	defer cancel()

	posts, err := h.analysis.AnalyzeBatch(ctx, req.PostIDs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

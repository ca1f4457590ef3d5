package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/model"
)

// PlatformSyncer is implemented by *service.Reconciler.
type PlatformSyncer interface {
	SyncPlatform(ctx context.Context, t model.PlatformType) ([]model.ContentPost, error)
	SyncPostMetrics(ctx context.Context, postID string) (*model.ContentPost, error)
	ValidateCredentials(ctx context.Context, t model.PlatformType) bool
	RefreshToken(ctx context.Context, t model.PlatformType) (time.Time, error)
}

// PlatformLister is implemented by the store.
type PlatformLister interface {
	ListPlatforms(ctx context.Context) ([]model.Platform, error)
}

// PlatformHandler triggers syncs and credential checks.
//
// A sync runs inside the request, under the long-request timeout rather
// than the server's WriteTimeout. It derives from the request context, so
// a client that disconnects cancels the outstanding adapter calls.
type PlatformHandler struct {
	syncer    PlatformSyncer
	platforms PlatformLister
	opts      options
	logger    *slog.Logger
}

func NewPlatformHandler(syncer PlatformSyncer, platforms PlatformLister, logger *slog.Logger, opts ...Option) *PlatformHandler {
	return &PlatformHandler{syncer: syncer, platforms: platforms, opts: buildOptions(opts), logger: logger}
}

// SyncResponse is the body of a platform sync.
type SyncResponse struct {
	Synced int                 `json:"synced"`
	Posts  []model.ContentPost `json:"posts"`
}

type ValidateResponse struct {
	Valid bool `json:"valid"`
}

type RefreshTokenResponse struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

// HandleList serves GET /api/platforms. Credentials are never serialized.
func (h *PlatformHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.platforms.ListPlatforms(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleSync serves POST /api/platforms/{type}/sync.
func (h *PlatformHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	t, ok := h.platformParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := longRunning(w, r, h.opts.longTimeout)
	defer cancel()

	posts, err := h.syncer.SyncPlatform(ctx, t)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{Synced: len(posts), Posts: posts})
}

// HandleSyncPost serves POST /api/posts/{id}/sync.
func (h *PlatformHandler) HandleSyncPost(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := longRunning(w, r, h.opts.longTimeout)
	defer cancel()

	post, err := h.syncer.SyncPostMetrics(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleValidate serves GET /api/platforms/{type}/validate. It answers
// 200 with valid=false rather than an error status.
func (h *PlatformHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	t, ok := h.platformParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{Valid: h.syncer.ValidateCredentials(r.Context(), t)})
}

// HandleRefreshToken serves POST /api/platforms/{type}/refresh-token.
func (h *PlatformHandler) HandleRefreshToken(w http.ResponseWriter, r *http.Request) {
	t, ok := h.platformParam(w, r)
	if !ok {
		return
	}
	expires, err := h.syncer.RefreshToken(r.Context(), t)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RefreshTokenResponse{ExpiresAt: expires})
}

func (h *PlatformHandler) platformParam(w http.ResponseWriter, r *http.Request) (model.PlatformType, bool) {
	raw := chi.URLParam(r, "type")
	t, ok := model.ParsePlatformType(raw)
	if !ok {
		writeError(w, h.logger, apperror.ValidationFailed("type", "unknown platform "+raw))
		return "", false
	}
	return t, true
}

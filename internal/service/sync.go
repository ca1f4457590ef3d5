package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/metrics"
	"github.com/sakif/content-dashboard/internal/model"
	"github.com/sakif/content-dashboard/internal/platform"
	"github.com/sakif/content-dashboard/internal/repository"
	"github.com/sakif/content-dashboard/internal/retry"
)

// SyncStore is the slice of the storage port the reconciler touches.
type SyncStore interface {
	repository.PlatformRepository
	repository.ContentPostRepository
}

// Reconciler pulls posts from the platform adapters and reconciles them
// against storage, using content_id as the dedup key.
//
// A new content_id is inserted with all of its fields. A known one only
// gets fresh metrics; title, content and published_at are never rewritten.
// Two syncs of the same platform may run at once; the last metrics write
// wins, which is fine because metrics are snapshots, not increments.
type Reconciler struct {
	store    SyncStore
	registry platform.Registry
	policy   retry.Policy
	now      func() time.Time
	logger   *slog.Logger
}

type ReconcilerOption func(*Reconciler)

func WithSyncRetryPolicy(p retry.Policy) ReconcilerOption {
	return func(r *Reconciler) { r.policy = p }
}

func WithSyncClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

func NewReconciler(store SyncStore, registry platform.Registry, logger *slog.Logger, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:    store,
		registry: registry,
		policy:   retry.DefaultPolicy,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SyncPlatform lists posts from the platform and reconciles each one.
//
// It fails as a whole only when the platform row is missing (NotFound) or
// the adapter cannot be built or cannot list posts (Adapter error). A
// single post that fails is logged and left out of the result. Once the
// listing succeeded, last_sync_at is set to now whatever happened to the
// individual posts.
func (r *Reconciler) SyncPlatform(ctx context.Context, t model.PlatformType) ([]model.ContentPost, error) {
	start := r.now()
	logger := r.logger.With(slog.String("platform", string(t)))

	p, err := r.store.GetPlatform(ctx, t)
	if err != nil {
		return nil, err
	}

	adapter, err := r.registry.Build(p)
	if err != nil {
		metrics.SyncRuns.WithLabelValues(string(t), "error").Inc()
		return nil, apperror.Adapter(string(t), "sync", err)
	}

	raws, err := adapter.ListPosts(ctx)
	if err != nil {
		metrics.SyncRuns.WithLabelValues(string(t), "error").Inc()
		logger.Error("listing posts failed", slog.String("error", err.Error()))
		return nil, apperror.Adapter(string(t), "sync", err)
	}

	synced := make([]model.ContentPost, 0, len(raws))
	for _, raw := range raws {
		post, created, err := r.reconcile(ctx, p, adapter, raw)
		if err != nil {
			metrics.SyncPosts.WithLabelValues(string(t), "failed").Inc()
			logger.Warn("skipping post",
				slog.String("content_id", raw.ExternalID),
				slog.String("error", err.Error()),
			)
			continue
		}
		result := "updated"
		if created {
			result = "created"
		}
		metrics.SyncPosts.WithLabelValues(string(t), result).Inc()
		synced = append(synced, *post)
	}

	if err := r.store.TouchLastSync(ctx, t, r.now().UTC()); err != nil {
		return nil, fmt.Errorf("service/sync: recording last sync for %s: %w", t, err)
	}

	metrics.SyncRuns.WithLabelValues(string(t), "success").Inc()
	metrics.SyncDuration.WithLabelValues(string(t)).Observe(r.now().Sub(start).Seconds())
	logger.Info("platform synced",
		slog.Int("listed", len(raws)),
		slog.Int("synced", len(synced)),
	)
	return synced, nil
}

// reconcile handles one listed post. It reports whether a row was created.
func (r *Reconciler) reconcile(ctx context.Context, p *model.Platform, adapter platform.Adapter, raw platform.RawPost) (*model.ContentPost, bool, error) {
	if raw.ExternalID == "" {
		return nil, false, apperror.ValidationFailed("content_id", "post has no external id")
	}

	existing, err := r.store.FindContentPostByExternalID(ctx, raw.ExternalID)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, err
	}
	// published_at is written once, so a new post needs a real one.
	if existing == nil && raw.PublishedAt.IsZero() {
		return nil, false, apperror.ValidationFailed("published_at", "post has no valid publish time")
	}

	m, err := r.fetchMetrics(ctx, adapter, raw.ExternalID)
	if err != nil {
		return nil, false, err
	}

	now := r.now().UTC()

	if existing != nil {
		if err := r.store.UpdateMetrics(ctx, existing.ID, m, now); err != nil {
			return nil, false, err
		}
		existing.Metrics = m
		existing.UpdatedAt = now
		return existing, false, nil
	}

	post := &model.ContentPost{
		ContentID:    raw.ExternalID,
		PlatformType: p.Type,
		PlatformID:   p.ID,
		Title:        raw.Title,
		Content:      raw.Content,
		MediaURLs:    raw.MediaURLs,
		PublishedAt:  raw.PublishedAt,
		Metrics:      m,
		UpdatedAt:    now,
	}
	if err := r.store.UpsertContentPost(ctx, post); err != nil {
		return nil, false, err
	}
	return post, true, nil
}

func (r *Reconciler) fetchMetrics(ctx context.Context, adapter platform.Adapter, externalID string) (model.Metrics, error) {
	return retry.Do(ctx, r.policy, func() (model.Metrics, error) {
		return adapter.FetchMetrics(ctx, externalID)
	})
}

// SyncPostMetrics refreshes the metrics of one stored post.
func (r *Reconciler) SyncPostMetrics(ctx context.Context, postID string) (*model.ContentPost, error) {
	post, err := r.store.GetContentPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	p, err := r.store.GetPlatform(ctx, post.PlatformType)
	if err != nil {
		return nil, err
	}

	adapter, err := r.registry.Build(p)
	if err != nil {
		return nil, apperror.Adapter(string(p.Type), "metrics sync", err)
	}

	m, err := r.fetchMetrics(ctx, adapter, post.ContentID)
	if err != nil {
		return nil, apperror.Adapter(string(p.Type), "metrics sync", err)
	}

	now := r.now().UTC()
	if err := r.store.UpdateMetrics(ctx, post.ID, m, now); err != nil {
		return nil, err
	}
	post.Metrics = m
	post.UpdatedAt = now
	return post, nil
}

// ValidateCredentials runs the adapter's liveness check. Every failure,
// including a missing platform row, is reported as false.
func (r *Reconciler) ValidateCredentials(ctx context.Context, t model.PlatformType) bool {
	p, err := r.store.GetPlatform(ctx, t)
	if err != nil {
		return false
	}
	adapter, err := r.registry.Build(p)
	if err != nil {
		return false
	}
	if err := adapter.Validate(ctx); err != nil {
		r.logger.Info("credential check failed",
			slog.String("platform", string(t)),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// SyncReport is the outcome of one platform in SyncAll.
type SyncReport struct {
	Platform model.PlatformType
	Synced   int
	Err      error
}

// SyncAll syncs every active platform in turn. A failing platform is
// reported and does not stop the others.
func (r *Reconciler) SyncAll(ctx context.Context) ([]SyncReport, error) {
	platforms, err := r.store.ListPlatforms(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/sync: listing platforms: %w", err)
	}

	reports := make([]SyncReport, 0, len(platforms))
	for _, p := range platforms {
		if !p.IsActive {
			continue
		}
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		posts, err := r.SyncPlatform(ctx, p.Type)
		reports = append(reports, SyncReport{Platform: p.Type, Synced: len(posts), Err: err})
	}
	return reports, nil
}

// RefreshToken renews the access token of platforms whose adapter
// supports it and stores the new credentials.
func (r *Reconciler) RefreshToken(ctx context.Context, t model.PlatformType) (time.Time, error) {
	p, err := r.store.GetPlatform(ctx, t)
	if err != nil {
		return time.Time{}, err
	}
	adapter, err := r.registry.Build(p)
	if err != nil {
		return time.Time{}, apperror.Adapter(string(t), "token refresh", err)
	}
	refresher, ok := adapter.(platform.TokenRefresher)
	if !ok {
		return time.Time{}, apperror.ValidationFailed("platform", fmt.Sprintf("%s does not support token refresh", t))
	}

	tok, err := refresher.RefreshToken(ctx)
	if err != nil {
		return time.Time{}, apperror.Adapter(string(t), "token refresh", err)
	}

	creds := make(map[string]string, len(p.Credentials)+1)
	for k, v := range p.Credentials {
		creds[k] = v
	}
	creds["access_token"] = tok.AccessToken
	creds["token_expires_at"] = tok.ExpiresAt.UTC().Format(time.RFC3339)
	p.Credentials = creds

	if err := r.store.UpsertPlatform(ctx, p); err != nil {
		return time.Time{}, fmt.Errorf("service/sync: storing refreshed token for %s: %w", t, err)
	}
	r.logger.Info("platform token refreshed",
		slog.String("platform", string(t)),
		slog.String("expires_at", tok.ExpiresAt.UTC().Format(time.RFC3339)),
	)
	return tok.ExpiresAt, nil
}

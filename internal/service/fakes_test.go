package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/model"
	"github.com/sakif/content-dashboard/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================

// fakeStore is an in-memory repository.Store. It mirrors the SQL store's
// upsert rules: users keep their role, posts keep everything but metrics.
type fakeStore struct {
	mu        sync.Mutex
	users     map[string]*model.User // by google id
	allowed   map[string]*model.AllowedEmail
	platforms map[model.PlatformType]*model.Platform
	posts     map[string]*model.ContentPost // by content id

	upsertUserErr error
	allowedErr    error
	listPostsErr  error
}

var _ repository.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[string]*model.User),
		allowed:   make(map[string]*model.AllowedEmail),
		platforms: make(map[model.PlatformType]*model.Platform),
		posts:     make(map[string]*model.ContentPost),
	}
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) GetUser(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, apperror.NotFound("user", id)
}

func (f *fakeStore) GetUserByGoogleID(_ context.Context, googleID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[googleID]
	if !ok {
		return nil, apperror.NotFound("user", googleID)
	}
	c := *u
	return &c, nil
}

func (f *fakeStore) UpsertUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertUserErr != nil {
		return f.upsertUserErr
	}
	if existing, ok := f.users[user.GoogleID]; ok {
		existing.Email = user.Email
		existing.Name = user.Name
		existing.AvatarURL = user.AvatarURL
		existing.LastLogin = user.LastLogin
		*user = *existing
		return nil
	}
	c := *user
	c.ID = xid.New().String()
	if !c.Role.Valid() {
		c.Role = model.RoleUser
	}
	c.CreatedAt = time.Now()
	f.users[user.GoogleID] = &c
	*user = c
	return nil
}

func (f *fakeStore) GetAllowedEmail(_ context.Context, email string) (*model.AllowedEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.allowedErr != nil {
		return nil, f.allowedErr
	}
	a, ok := f.allowed[model.NormalizeEmail(email)]
	if !ok {
		return nil, apperror.NotFound("allowed email", email)
	}
	return a, nil
}

func (f *fakeStore) AddAllowedEmail(_ context.Context, entry *model.AllowedEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.Email = model.NormalizeEmail(entry.Email)
	if _, ok := f.allowed[entry.Email]; ok {
		return apperror.Conflict("allowed email", entry.Email)
	}
	entry.ID = xid.New().String()
	entry.CreatedAt = time.Now()
	c := *entry
	f.allowed[entry.Email] = &c
	return nil
}

func (f *fakeStore) RemoveAllowedEmail(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.allowed[email]; !ok {
		return apperror.NotFound("allowed email", email)
	}
	delete(f.allowed, email)
	return nil
}

func (f *fakeStore) ListAllowedEmails(context.Context) ([]model.AllowedEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.AllowedEmail{}
	for _, a := range f.allowed {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (f *fakeStore) GetPlatform(_ context.Context, t model.PlatformType) (*model.Platform, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.platforms[t]
	if !ok {
		return nil, apperror.NotFound("platform", string(t))
	}
	c := *p
	return &c, nil
}

func (f *fakeStore) UpsertPlatform(_ context.Context, p *model.Platform) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.platforms[p.Type]; ok {
		existing.Credentials = p.Credentials
		existing.IsActive = p.IsActive
		*p = *existing
		return nil
	}
	c := *p
	c.ID = "plat-" + string(p.Type)
	f.platforms[p.Type] = &c
	*p = c
	return nil
}

func (f *fakeStore) ListPlatforms(context.Context) ([]model.Platform, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Platform{}
	for _, t := range model.PlatformTypes {
		if p, ok := f.platforms[t]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) TouchLastSync(_ context.Context, t model.PlatformType, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.platforms[t]
	if !ok {
		return apperror.NotFound("platform", string(t))
	}
	p.LastSyncAt = &at
	return nil
}

func (f *fakeStore) UpsertContentPost(_ context.Context, post *model.ContentPost) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.posts[post.ContentID]; ok {
		existing.Metrics = post.Metrics
		existing.UpdatedAt = post.UpdatedAt
		*post = *existing
		return nil
	}
	c := *post
	c.ID = xid.New().String()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	f.posts[post.ContentID] = &c
	*post = c
	return nil
}

func (f *fakeStore) FindContentPostByExternalID(_ context.Context, contentID string) (*model.ContentPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[contentID]
	if !ok {
		return nil, apperror.NotFound("content post", contentID)
	}
	c := *p
	return &c, nil
}

func (f *fakeStore) byID(id string) *model.ContentPost {
	for _, p := range f.posts {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (f *fakeStore) GetContentPost(_ context.Context, id string) (*model.ContentPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.byID(id)
	if p == nil {
		return nil, apperror.NotFound("content post", id)
	}
	c := *p
	return &c, nil
}

func (f *fakeStore) ListContentPosts(_ context.Context, filter repository.PostFilter) ([]model.ContentPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listPostsErr != nil {
		return nil, f.listPostsErr
	}
	out := []model.ContentPost{}
	for _, p := range f.posts {
		if filter.PlatformType != "" && p.PlatformType != filter.PlatformType {
			continue
		}
		if (filter.OnlyAnalyzed || filter.OrderByScore) && p.Analysis == nil {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.OrderByScore {
			return out[i].Analysis.PerformanceScore > out[j].Analysis.PerformanceScore
		}
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	if filter.Limit > 0 {
		if filter.Offset >= len(out) {
			return []model.ContentPost{}, nil
		}
		out = out[filter.Offset:min(len(out), filter.Offset+filter.Limit)]
	}
	return out, nil
}

func (f *fakeStore) UpdateMetrics(_ context.Context, id string, m model.Metrics, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.byID(id)
	if p == nil {
		return apperror.NotFound("content post", id)
	}
	p.Metrics = m
	p.UpdatedAt = at
	return nil
}

func (f *fakeStore) SaveAnalysis(_ context.Context, id string, a *model.Analysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.byID(id)
	if p == nil {
		return apperror.NotFound("content post", id)
	}
	p.Analysis = a
	return nil
}

func (f *fakeStore) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

// =========================================================================
// HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

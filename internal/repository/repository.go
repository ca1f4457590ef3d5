// Package repository declares the storage port the services depend on.
package repository

import (
	"context"
	"time"

	"github.com/sakif/content-dashboard/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// PostFilter narrows ListContentPosts. Zero values mean "no constraint".
type PostFilter struct {
	ListOptions
	PlatformType model.PlatformType
	CreatedAfter time.Time
	OnlyAnalyzed bool // only posts with a performance score
	OrderByScore bool // performance score desc instead of published_at desc
}

type UserRepository interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	UpsertUser(ctx context.Context, user *model.User) error
}

type AllowedEmailRepository interface {
	GetAllowedEmail(ctx context.Context, email string) (*model.AllowedEmail, error)
	AddAllowedEmail(ctx context.Context, entry *model.AllowedEmail) error
	RemoveAllowedEmail(ctx context.Context, email string) error
	ListAllowedEmails(ctx context.Context) ([]model.AllowedEmail, error)
}

type PlatformRepository interface {
	GetPlatform(ctx context.Context, t model.PlatformType) (*model.Platform, error)
	UpsertPlatform(ctx context.Context, p *model.Platform) error
	ListPlatforms(ctx context.Context) ([]model.Platform, error)
	TouchLastSync(ctx context.Context, t model.PlatformType, at time.Time) error
}

type ContentPostRepository interface {
	UpsertContentPost(ctx context.Context, post *model.ContentPost) error
	FindContentPostByExternalID(ctx context.Context, contentID string) (*model.ContentPost, error)
	GetContentPost(ctx context.Context, id string) (*model.ContentPost, error)
	ListContentPosts(ctx context.Context, filter PostFilter) ([]model.ContentPost, error)
	UpdateMetrics(ctx context.Context, id string, metrics model.Metrics, at time.Time) error
	SaveAnalysis(ctx context.Context, id string, analysis *model.Analysis) error
}

// Store is the single storage port the services depend on.
type Store interface {
	UserRepository
	AllowedEmailRepository
	PlatformRepository
	ContentPostRepository
	Ping(ctx context.Context) error
}

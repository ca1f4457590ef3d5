// Package platform defines the contract every social network adapter
// implements, plus the HTTP plumbing they share.
//
// An Adapter is built per sync from the credentials stored on the
// platform row. Adapters return posts already mapped into RawPost; the
// field mapping from each vendor payload is private to the adapter.
package platform

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/model"
)

// RawPost is a post as listed by a network, before it is reconciled
// against storage.
type RawPost struct {
	ExternalID  string
	Title       string
	Content     string
	MediaURLs   []string
	PublishedAt time.Time
}

// Adapter is the capability set the reconciler needs from a network.
type Adapter interface {
	Type() model.PlatformType
	ListPosts(ctx context.Context) ([]RawPost, error)
	FetchMetrics(ctx context.Context, externalID string) (model.Metrics, error)
	// Validate is a cheap liveness check of the credentials.
	Validate(ctx context.Context) error
}

// RefreshedToken is a renewed credential and its expiry.
type RefreshedToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

// TokenRefresher is implemented by adapters whose access tokens expire and
// can be renewed with the current token.
type TokenRefresher interface {
	RefreshToken(ctx context.Context) (RefreshedToken, error)
}

// Factory builds an Adapter from stored credentials.
type Factory func(creds map[string]string) (Adapter, error)

// Registry maps each network to its factory. It is filled once at startup
// and only read afterwards.
type Registry map[model.PlatformType]Factory

// Build returns the adapter for p.
func (r Registry) Build(p *model.Platform) (Adapter, error) {
	f, ok := r[p.Type]
	if !ok {
		return nil, fmt.Errorf("platform: no adapter registered for %q", p.Type)
	}
	return f(p.Credentials)
}

// RequireCredential returns creds[key] or a validation error naming it.
func RequireCredential(creds map[string]string, key string) (string, error) {
	v := strings.TrimSpace(creds[key])
	if v == "" {
		return "", apperror.ValidationFailed("credentials."+key, "credential is required")
	}
	return v, nil
}

// Title builds a display title from free text: the first 100 characters,
// or fallback when the text is empty.
func Title(text, fallback string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return fallback
	}
	if utf8.RuneCountInString(text) <= 100 {
		return text
	}
	return string([]rune(text)[:100])
}

// EngagementRate returns interactions as a percentage of the denominator,
// or 0 when the denominator is not positive.
func EngagementRate(interactions, denominator int64) float64 {
	if denominator <= 0 {
		return 0
	}
	return float64(interactions) / float64(denominator) * 100
}

func Int64(v int64) *int64 { return &v }

func Float64(v float64) *float64 { return &v }

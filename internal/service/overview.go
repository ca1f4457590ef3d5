package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/model"
	"github.com/sakif/content-dashboard/internal/repository"
)

const (
	DefaultTopPosts = 5
	MaxTopPosts     = 50

	DefaultListLimit = 20
	MaxListLimit     = 100

	// RecentWindow is how far back a post counts toward RecentPosts.
	RecentWindow = 30 * 24 * time.Hour
)

// OverviewService reads stored posts for the dashboard.
type OverviewService struct {
	posts repository.ContentPostRepository
	now   func() time.Time
}

func NewOverviewService(posts repository.ContentPostRepository, now func() time.Time) *OverviewService {
	if now == nil {
		now = time.Now
	}
	return &OverviewService{posts: posts, now: now}
}

// ComputeOverview summarizes every stored post.
//
//   - AvgPerformanceScore averages the analyzed posts only, rounded to two
//     decimals, and is 0 when none are analyzed.
//   - TopPlatform is the most common platform. Ties go to the
//     lexically smallest type; no posts at all gives "none".
//   - RecentPosts counts posts created in the last 30 days.
func (s *OverviewService) ComputeOverview(ctx context.Context) (model.Overview, error) {
	posts, err := s.posts.ListContentPosts(ctx, repository.PostFilter{})
	if err != nil {
		return model.Overview{}, fmt.Errorf("service/overview: listing posts: %w", err)
	}

	cutoff := s.now().Add(-RecentWindow)

	var (
		scoreSum float64
		scored   int
		recent   int
		counts   = make(map[model.PlatformType]int)
	)
	for i := range posts {
		p := &posts[i]
		if score := p.PerformanceScore(); score != nil {
			scoreSum += *score
			scored++
		}
		if !p.CreatedAt.Before(cutoff) {
			recent++
		}
		counts[p.PlatformType]++
	}

	ov := model.Overview{
		TotalPosts:  len(posts),
		TopPlatform: topPlatform(counts),
		RecentPosts: recent,
	}
	if scored > 0 {
		ov.AvgPerformanceScore = math.Round(scoreSum/float64(scored)*100) / 100
	}
	return ov, nil
}

func topPlatform(counts map[model.PlatformType]int) string {
	best, bestN := "", 0
	for t, n := range counts {
		name := string(t)
		if n > bestN || (n == bestN && name < best) {
			best, bestN = name, n
		}
	}
	if bestN == 0 {
		return "none"
	}
	return best
}

// ParseLimit reads an optional numeric limit. An empty value gives def.
func ParseLimit(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed("limit", "limit must be a number")
	}
	return n, nil
}

func clamp(n, lo, hi int) int {
	return max(lo, min(n, hi))
}

// TopPosts returns analyzed posts by performance score, best first. limit
// is clamped to 1..50.
func (s *OverviewService) TopPosts(ctx context.Context, limit int) ([]model.ContentPost, error) {
	posts, err := s.posts.ListContentPosts(ctx, repository.PostFilter{
		ListOptions:  repository.ListOptions{Limit: clamp(limit, 1, MaxTopPosts)},
		OnlyAnalyzed: true,
		OrderByScore: true,
	})
	if err != nil {
		return nil, fmt.Errorf("service/overview: listing top posts: %w", err)
	}
	return posts, nil
}

// ListPosts pages through posts, newest publication first.
func (s *OverviewService) ListPosts(ctx context.Context, t model.PlatformType, limit, offset int) ([]model.ContentPost, error) {
	if offset < 0 {
		return nil, apperror.ValidationFailed("offset", "offset must not be negative")
	}
	posts, err := s.posts.ListContentPosts(ctx, repository.PostFilter{
		ListOptions:  repository.ListOptions{Limit: clamp(limit, 1, MaxListLimit), Offset: offset},
		PlatformType: t,
	})
	if err != nil {
		return nil, fmt.Errorf("service/overview: listing posts: %w", err)
	}
	return posts, nil
}

func (s *OverviewService) GetPost(ctx context.Context, id string) (*model.ContentPost, error) {
	return s.posts.GetContentPost(ctx, id)
}

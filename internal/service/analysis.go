package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/model"
	"github.com/sakif/content-dashboard/internal/repository"
)

// PostAnalyzer produces an analysis for one post. *analysis.Analyzer
// implements it.
type PostAnalyzer interface {
	Analyze(ctx context.Context, post *model.ContentPost) (*model.Analysis, error)
}

// AnalysisService runs AI analysis on stored posts and persists the result.
// A nil analyzer means no LLM key is configured.
type AnalysisService struct {
	posts    repository.ContentPostRepository
	analyzer PostAnalyzer
	logger   *slog.Logger
}

func NewAnalysisService(posts repository.ContentPostRepository, analyzer PostAnalyzer, logger *slog.Logger) *AnalysisService {
	return &AnalysisService{posts: posts, analyzer: analyzer, logger: logger}
}

func (s *AnalysisService) Enabled() bool { return s.analyzer != nil }

// AnalyzePost analyzes and stores the analysis of one post.
func (s *AnalysisService) AnalyzePost(ctx context.Context, postID string) (*model.ContentPost, error) {
	if !s.Enabled() {
		return nil, apperror.ValidationFailed("analysis", "AI analysis is not configured")
	}

	post, err := s.posts.GetContentPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	a, err := s.analyzer.Analyze(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("service/analysis: %w", err)
	}
	if err := s.posts.SaveAnalysis(ctx, post.ID, a); err != nil {
		return nil, err
	}

	post.Analysis = a
	s.logger.Info("post analyzed",
		slog.String("post_id", post.ID),
		slog.String("score", fmt.Sprintf("%.1f", a.PerformanceScore)),
	)
	return post, nil
}

// AnalyzeBatch analyzes each post in turn. Posts that fail are logged and
// left out of the result.
func (s *AnalysisService) AnalyzeBatch(ctx context.Context, postIDs []string) ([]model.ContentPost, error) {
	if !s.Enabled() {
		return nil, apperror.ValidationFailed("analysis", "AI analysis is not configured")
	}

	out := make([]model.ContentPost, 0, len(postIDs))
	for _, id := range postIDs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		post, err := s.AnalyzePost(ctx, id)
		if err != nil {
			s.logger.Warn("skipping post in batch analysis",
				slog.String("post_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, *post)
	}
	return out, nil
}

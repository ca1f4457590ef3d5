// Package analysis produces AI performance annotations for content posts.
//
// The text model is an opaque Generator. The Analyzer builds the prompt,
// pulls the JSON object out of the reply and falls back to an
// engagement-based score when the reply cannot be parsed.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/sakif/content-dashboard/internal/metrics"
	"github.com/sakif/content-dashboard/internal/model"
	"github.com/sakif/content-dashboard/internal/retry"
)

type Analyzer struct {
	gen    Generator
	policy retry.Policy
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Analyzer)

// WithRetryPolicy replaces retry.DefaultPolicy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(a *Analyzer) { a.policy = p }
}

// WithClock injects the time source for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

func NewAnalyzer(gen Generator, logger *slog.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{
		gen:    gen,
		policy: retry.DefaultPolicy,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze asks the model for an analysis of post. A generator failure is
// returned as an error; an unparseable reply yields the fallback analysis.
func (a *Analyzer) Analyze(ctx context.Context, post *model.ContentPost) (*model.Analysis, error) {
	prompt := buildPrompt(post)

	reply, err := retry.Do(ctx, a.policy, func() (string, error) {
		return a.gen.Generate(ctx, prompt)
	})
	if err != nil {
		metrics.Analyses.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("analysis: generating for post %s: %w", post.ID, err)
	}

	analysis, err := parseReply(reply)
	if err != nil {
		a.logger.Warn("falling back to engagement-based analysis",
			slog.String("post_id", post.ID),
			slog.String("error", err.Error()),
		)
		metrics.Analyses.WithLabelValues("fallback").Inc()
		analysis = Fallback(post)
	} else {
		metrics.Analyses.WithLabelValues("success").Inc()
	}
	analysis.GeneratedAt = a.now().UTC()
	return analysis, nil
}

// Fallback scores a post from its engagement rate alone.
func Fallback(post *model.ContentPost) *model.Analysis {
	visual := 0.0
	if len(post.MediaURLs) > 0 {
		visual = 100
	}
	return &model.Analysis{
		PerformanceScore: clampScore(post.Metrics.EngagementRate * 10),
		Strengths:        []string{"Content published successfully"},
		Weaknesses:       []string{"Analysis parsing failed"},
		Recommendations:  []string{"Review content structure"},
		ContentStructure: model.ContentStructure{
			HookEffectiveness:     50,
			StorytellingStructure: "Unknown structure",
			EmotionalTone:         []string{"neutral"},
			KeyTopics:             []string{"general"},
			ReadabilityScore:      50,
			VisualContentRatio:    visual,
		},
		Trends: emptyTrends(),
	}
}

// ExtractJSON returns the outermost {...} in s, dropping code fences and
// prose around it. It returns s unchanged when there is no object.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || start > end {
		return s
	}
	return s[start : end+1]
}

func parseReply(reply string) (*model.Analysis, error) {
	var a model.Analysis
	if err := json.Unmarshal([]byte(ExtractJSON(reply)), &a); err != nil {
		return nil, fmt.Errorf("decoding model reply: %w", err)
	}
	a.PerformanceScore = clampScore(a.PerformanceScore)
	a.Strengths = nonNil(a.Strengths)
	a.Weaknesses = nonNil(a.Weaknesses)
	a.Recommendations = nonNil(a.Recommendations)
	a.ContentStructure.EmotionalTone = nonNil(a.ContentStructure.EmotionalTone)
	a.ContentStructure.KeyTopics = nonNil(a.ContentStructure.KeyTopics)
	a.Trends.TopPerformingElements = nonNil(a.Trends.TopPerformingElements)
	a.Trends.EmergingPatterns = nonNil(a.Trends.EmergingPatterns)
	a.Trends.SeasonalTrends = nonNil(a.Trends.SeasonalTrends)
	a.Trends.AudiencePreferences = nonNil(a.Trends.AudiencePreferences)
	return &a, nil
}

func emptyTrends() model.Trends {
	return model.Trends{
		TopPerformingElements: []string{},
		EmergingPatterns:      []string{},
		SeasonalTrends:        []string{},
		AudiencePreferences:   []string{},
	}
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, 100)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

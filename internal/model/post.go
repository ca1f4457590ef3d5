package model

import "time"

// ContentPost is the unit the sync reconciler creates and updates.
//
// ContentID is the platform's own id for the post and the dedup key: it is
// unique across the table and never changes. Title, Content, MediaURLs and
// PublishedAt are written once on insert; later syncs only touch Metrics
// and UpdatedAt.
type ContentPost struct {
	ID           string       `json:"id"`
	ContentID    string       `json:"contentId"`
	PlatformType PlatformType `json:"platformType"`
	PlatformID   string       `json:"platformId"`
	Title        string       `json:"title"`
	Content      string       `json:"content"`
	MediaURLs    []string     `json:"mediaUrls"`
	PublishedAt  time.Time    `json:"publishedAt"`
	Metrics      Metrics      `json:"metrics"`
	Script       *Script      `json:"script,omitempty"`
	Analysis     *Analysis    `json:"aiAnalysis,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// PerformanceScore returns the analysis score, or nil when the post has not
// been analyzed.
func (p *ContentPost) PerformanceScore() *float64 {
	if p.Analysis == nil {
		return nil
	}
	s := p.Analysis.PerformanceScore
	return &s
}

// Metrics is the union of every platform's metric shape. The four base
// fields are always present; the rest are set only by the platforms that
// report them.
type Metrics struct {
	Likes          int64   `json:"likes"`
	Comments       int64   `json:"comments"`
	Shares         int64   `json:"shares"`
	EngagementRate float64 `json:"engagementRate"`

	// linkedin, instagram
	Impressions *int64 `json:"impressions,omitempty"`
	Reach       *int64 `json:"reach,omitempty"`

	// linkedin
	ClickThroughRate *float64 `json:"clickThroughRate,omitempty"`

	// youtube, instagram
	Views *int64 `json:"views,omitempty"`

	// youtube
	WatchTime           *float64 `json:"watchTime,omitempty"`
	Subscribers         *int64   `json:"subscribers,omitempty"`
	AverageViewDuration *float64 `json:"averageViewDuration,omitempty"`

	// instagram
	Saves         *int64 `json:"saves,omitempty"`
	ProfileVisits *int64 `json:"profileVisits,omitempty"`
}

type ScriptSource string

const (
	ScriptFromGoogleDoc ScriptSource = "google_doc"
	ScriptFromUpload    ScriptSource = "upload"
)

// Script references the source script a post was produced from.
type Script struct {
	ID         string       `json:"id"`
	Source     ScriptSource `json:"source"`
	Title      string       `json:"title"`
	Content    string       `json:"content"`
	URL        string       `json:"url,omitempty"`
	UploadedAt time.Time    `json:"uploadedAt"`
}

// Analysis is the AI-generated annotation of a post.
type Analysis struct {
	PerformanceScore float64          `json:"performanceScore"`
	Strengths        []string         `json:"strengths"`
	Weaknesses       []string         `json:"weaknesses"`
	Recommendations  []string         `json:"recommendations"`
	ContentStructure ContentStructure `json:"contentStructure"`
	Trends           Trends           `json:"trends"`
	GeneratedAt      time.Time        `json:"generatedAt"`
}

type ContentStructure struct {
	HookEffectiveness     float64  `json:"hookEffectiveness"`
	StorytellingStructure string   `json:"storytellingStructure"`
	CallToActionPresence  bool     `json:"callToActionPresence"`
	EmotionalTone         []string `json:"emotionalTone"`
	KeyTopics             []string `json:"keyTopics"`
	ReadabilityScore      float64  `json:"readabilityScore"`
	VisualContentRatio    float64  `json:"visualContentRatio"`
}

type Trends struct {
	TopPerformingElements []string `json:"topPerformingElements"`
	EmergingPatterns      []string `json:"emergingPatterns"`
	SeasonalTrends        []string `json:"seasonalTrends"`
	AudiencePreferences   []string `json:"audiencePreferences"`
}

// Overview is the dashboard summary.
type Overview struct {
	TotalPosts          int     `json:"totalPosts"`
	AvgPerformanceScore float64 `json:"avgPerformanceScore"`
	TopPlatform         string  `json:"topPlatform"`
	RecentPosts         int     `json:"recentPosts"`
}

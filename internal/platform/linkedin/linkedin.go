// Package linkedin reads a member's shares and their social actions from
// the LinkedIn v2 REST API.
package linkedin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sakif/content-dashboard/internal/model"
	"github.com/sakif/content-dashboard/internal/platform"
)

const DefaultBaseURL = "https://api.linkedin.com"

const pageSize = 50

// Adapter implements platform.Adapter for LinkedIn.
type Adapter struct {
	client   *platform.Client
	personID string
}

var _ platform.Adapter = (*Adapter)(nil)

// NewFactory returns a factory reading the access_token and optional
// person_id credentials.
func NewFactory(opts platform.Options) platform.Factory {
	return func(creds map[string]string) (platform.Adapter, error) {
		return New(opts, creds)
	}
}

func New(opts platform.Options, creds map[string]string) (*Adapter, error) {
	token, err := platform.RequireCredential(creds, "access_token")
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set("X-Restli-Protocol-Version", "2.0.0")

	return &Adapter{
		client:   platform.NewClient(opts, DefaultBaseURL, header),
		personID: creds["person_id"],
	}, nil
}

func (a *Adapter) Type() model.PlatformType { return model.PlatformLinkedIn }

type profile struct {
	ID string `json:"id"`
}

type share struct {
	ID   string `json:"id"`
	Text struct {
		Text string `json:"text"`
	} `json:"text"`
	Created struct {
		Time int64 `json:"time"`
	} `json:"created"`
	Content struct {
		ContentEntities []struct {
			EntityLocation string `json:"entityLocation"`
			Thumbnails     []struct {
				ResolvedURL string `json:"resolvedUrl"`
			} `json:"thumbnails"`
		} `json:"contentEntities"`
	} `json:"content"`
}

type socialActions struct {
	LikesSummary struct {
		TotalLikes int64 `json:"totalLikes"`
	} `json:"likesSummary"`
	CommentsSummary struct {
		AggregatedTotalComments int64 `json:"aggregatedTotalComments"`
	} `json:"commentsSummary"`
	SharesSummary *struct {
		TotalShares int64 `json:"totalShares"`
	} `json:"sharesSummary,omitempty"`
	ImpressionCount *int64 `json:"impressionCount,omitempty"`
	ClickCount      *int64 `json:"clickCount,omitempty"`
	UniqueReach     *int64 `json:"uniqueImpressionsCount,omitempty"`
}

func (a *Adapter) resolvePerson(ctx context.Context) (string, error) {
	if a.personID != "" {
		return a.personID, nil
	}
	var p profile
	if err := a.client.GetJSON(ctx, "/v2/people/~", nil, &p); err != nil {
		return "", fmt.Errorf("linkedin: resolving member id: %w", err)
	}
	if p.ID == "" {
		return "", fmt.Errorf("linkedin: profile response has no id")
	}
	a.personID = p.ID
	return p.ID, nil
}

// ListPosts returns the member's 50 most recent shares.
func (a *Adapter) ListPosts(ctx context.Context) ([]platform.RawPost, error) {
	person, err := a.resolvePerson(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", "owners")
	q.Set("owners", "urn:li:person:"+person)
	q.Set("sortBy", "CREATED")
	q.Set("count", fmt.Sprint(pageSize))

	var resp struct {
		Elements []share `json:"elements"`
	}
	if err := a.client.GetJSON(ctx, "/v2/shares", q, &resp); err != nil {
		return nil, fmt.Errorf("linkedin: listing shares: %w", err)
	}

	posts := make([]platform.RawPost, 0, len(resp.Elements))
	for _, s := range resp.Elements {
		if s.ID == "" {
			continue
		}
		var published time.Time
		if s.Created.Time > 0 {
			published = time.UnixMilli(s.Created.Time).UTC()
		}
		var media []string
		for _, e := range s.Content.ContentEntities {
			if len(e.Thumbnails) > 0 && e.Thumbnails[0].ResolvedURL != "" {
				media = append(media, e.Thumbnails[0].ResolvedURL)
			} else if e.EntityLocation != "" {
				media = append(media, e.EntityLocation)
			}
		}
		posts = append(posts, platform.RawPost{
			ExternalID:  s.ID,
			Title:       platform.Title(s.Text.Text, "LinkedIn Post"),
			Content:     s.Text.Text,
			MediaURLs:   media,
			PublishedAt: published,
		})
	}
	return posts, nil
}

// FetchMetrics reads the share's social actions. Engagement is computed
// against impressions, or against 1 when LinkedIn does not report them.
func (a *Adapter) FetchMetrics(ctx context.Context, externalID string) (model.Metrics, error) {
	var sa socialActions
	if err := a.client.GetJSON(ctx, "/v2/socialActions/"+url.PathEscape(externalID), nil, &sa); err != nil {
		return model.Metrics{}, fmt.Errorf("linkedin: fetching social actions for %s: %w", externalID, err)
	}

	m := model.Metrics{
		Likes:    sa.LikesSummary.TotalLikes,
		Comments: sa.CommentsSummary.AggregatedTotalComments,
	}
	if sa.SharesSummary != nil {
		m.Shares = sa.SharesSummary.TotalShares
	}

	impressions := int64(1)
	if sa.ImpressionCount != nil && *sa.ImpressionCount > 0 {
		impressions = *sa.ImpressionCount
		m.Impressions = platform.Int64(impressions)
		if sa.ClickCount != nil {
			m.ClickThroughRate = platform.Float64(platform.EngagementRate(*sa.ClickCount, impressions))
		}
	}
	if sa.UniqueReach != nil {
		m.Reach = platform.Int64(*sa.UniqueReach)
	}
	m.EngagementRate = platform.EngagementRate(m.Likes+m.Comments+m.Shares, impressions)
	return m, nil
}

// Validate checks the token against the profile endpoint.
func (a *Adapter) Validate(ctx context.Context) error {
	var p profile
	if err := a.client.GetJSON(ctx, "/v2/people/~", nil, &p); err != nil {
		return fmt.Errorf("linkedin: validating token: %w", err)
	}
	return nil
}

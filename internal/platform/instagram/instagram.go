// Package instagram reads media and insights from the Instagram Graph API.
package instagram

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sakif/content-dashboard/internal/model"
	"github.com/sakif/content-dashboard/internal/platform"
)

const DefaultBaseURL = "https://graph.instagram.com"

const mediaFields = "id,caption,media_type,media_url,permalink,thumbnail_url,timestamp"

const insightMetrics = "likes,comments,shares,saves,impressions,reach,profile_visits"

// Adapter implements platform.Adapter for Instagram. The access token
// travels as a query parameter, as the Graph API expects.
type Adapter struct {
	client *platform.Client
	token  string
	userID string
}

var (
	_ platform.Adapter        = (*Adapter)(nil)
	_ platform.TokenRefresher = (*Adapter)(nil)
)

// NewFactory returns a factory reading the access_token and user_id
// credentials.
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
	user, err := platform.RequireCredential(creds, "user_id")
	if err != nil {
		return nil, err
	}
	return &Adapter{
		client: platform.NewClient(opts, DefaultBaseURL, nil),
		token:  token,
		userID: user,
	}, nil
}

func (a *Adapter) Type() model.PlatformType { return model.PlatformInstagram }

func (a *Adapter) query(kv ...string) url.Values {
	q := url.Values{}
	q.Set("access_token", a.token)
	for i := 0; i+1 < len(kv); i += 2 {
		q.Set(kv[i], kv[i+1])
	}
	return q
}

type media struct {
	ID           string `json:"id"`
	Caption      string `json:"caption"`
	MediaType    string `json:"media_type"`
	MediaURL     string `json:"media_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Timestamp    string `json:"timestamp"`
}

// Graph API timestamps look like 2024-03-01T10:00:00+0000.
const graphTimeLayout = "2006-01-02T15:04:05-0700"

// ListPosts returns the user's 50 most recent media items.
func (a *Adapter) ListPosts(ctx context.Context) ([]platform.RawPost, error) {
	var resp struct {
		Data []media `json:"data"`
	}
	q := a.query("fields", mediaFields, "limit", "50")
	if err := a.client.GetJSON(ctx, "/"+url.PathEscape(a.userID)+"/media", q, &resp); err != nil {
		return nil, fmt.Errorf("instagram: listing media: %w", err)
	}

	posts := make([]platform.RawPost, 0, len(resp.Data))
	for _, m := range resp.Data {
		if m.ID == "" {
			continue
		}
		var mediaURLs []string
		if m.MediaURL != "" {
			mediaURLs = []string{m.MediaURL}
		}
		posts = append(posts, platform.RawPost{
			ExternalID:  m.ID,
			Title:       platform.Title(m.Caption, "Instagram Post"),
			Content:     m.Caption,
			MediaURLs:   mediaURLs,
			PublishedAt: parseTimestamp(m.Timestamp),
		})
	}
	return posts, nil
}

// parseTimestamp returns the zero time when s matches no known layout.
// The reconciler refuses to create a post without a publish time.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{graphTimeLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

type insight struct {
	Name   string `json:"name"`
	Values []struct {
		Value int64 `json:"value"`
	} `json:"values"`
}

// FetchMetrics merges the media insights with the like and comment counts
// on the media object. Engagement is computed against impressions, or
// against 1 when impressions are missing.
func (a *Adapter) FetchMetrics(ctx context.Context, externalID string) (model.Metrics, error) {
	id := url.PathEscape(externalID)

	var ins struct {
		Data []insight `json:"data"`
	}
	if err := a.client.GetJSON(ctx, "/"+id+"/insights", a.query("metric", insightMetrics), &ins); err != nil {
		return model.Metrics{}, fmt.Errorf("instagram: fetching insights for %s: %w", externalID, err)
	}
	values := make(map[string]int64, len(ins.Data))
	for _, i := range ins.Data {
		if len(i.Values) > 0 {
			values[i.Name] = i.Values[0].Value
		}
	}

	var counts struct {
		LikeCount     int64 `json:"like_count"`
		CommentsCount int64 `json:"comments_count"`
	}
	if err := a.client.GetJSON(ctx, "/"+id, a.query("fields", "like_count,comments_count"), &counts); err != nil {
		return model.Metrics{}, fmt.Errorf("instagram: fetching counts for %s: %w", externalID, err)
	}

	impressions := values["impressions"]
	if impressions <= 0 {
		impressions = 1
	}
	m := model.Metrics{
		Likes:         counts.LikeCount,
		Comments:      counts.CommentsCount,
		Shares:        values["shares"],
		Saves:         platform.Int64(values["saves"]),
		Reach:         platform.Int64(values["reach"]),
		Impressions:   platform.Int64(impressions),
		ProfileVisits: platform.Int64(values["profile_visits"]),
	}
	if v, ok := values["video_views"]; ok {
		m.Views = platform.Int64(v)
	}
	m.EngagementRate = platform.EngagementRate(m.Likes+m.Comments+m.Shares+*m.Saves, impressions)
	return m, nil
}

// Validate fetches the user id with the token.
func (a *Adapter) Validate(ctx context.Context) error {
	var resp struct {
		ID string `json:"id"`
	}
	if err := a.client.GetJSON(ctx, "/"+url.PathEscape(a.userID), a.query("fields", "id"), &resp); err != nil {
		return fmt.Errorf("instagram: validating token: %w", err)
	}
	return nil
}

// RefreshToken exchanges the current long-lived token for a new one.
// Callers persist the result into the platform credentials.
func (a *Adapter) RefreshToken(ctx context.Context) (platform.RefreshedToken, error) {
	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	q := a.query("grant_type", "ig_refresh_token")
	if err := a.client.GetJSON(ctx, "/refresh_access_token", q, &resp); err != nil {
		return platform.RefreshedToken{}, fmt.Errorf("instagram: refreshing token: %w", err)
	}
	if resp.AccessToken == "" {
		return platform.RefreshedToken{}, fmt.Errorf("instagram: refresh response has no token")
	}
	a.token = resp.AccessToken
	return platform.RefreshedToken{
		AccessToken: resp.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC(),
	}, nil
}

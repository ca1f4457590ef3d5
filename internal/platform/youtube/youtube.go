// Package youtube reads a channel's uploads through the YouTube Data API v3.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/sakif/content-dashboard/internal/model"
	"github.com/sakif/content-dashboard/internal/platform"
	"github.com/sakif/content-dashboard/internal/retry"
)

const pageSize = 50

const apiKeyHeader = "X-Goog-Api-Key"

// Share of a video's length assumed watched on average. The Data API does
// not expose watch time without channel-owner OAuth.
const watchedFraction = 0.4

// Adapter implements platform.Adapter for YouTube.
type Adapter struct {
	svc       *yt.Service
	channelID string

	subscribers *int64
}

var _ platform.Adapter = (*Adapter)(nil)

// NewFactory returns a factory reading the api_key and channel_id
// credentials.
func NewFactory(opts platform.Options) platform.Factory {
	return func(creds map[string]string) (platform.Adapter, error) {
		return New(context.Background(), opts, creds)
	}
}

func New(ctx context.Context, opts platform.Options, creds map[string]string) (*Adapter, error) {
	key, err := platform.RequireCredential(creds, "api_key")
	if err != nil {
		return nil, err
	}
	channel, err := platform.RequireCredential(creds, "channel_id")
	if err != nil {
		return nil, err
	}

	// A custom HTTP client makes the library skip its own auth setup, so
	// the key is attached by the transport instead. It goes in the
	// X-Goog-Api-Key header so it never appears in a request URL.
	base := opts.HTTP()
	client := &http.Client{
		Timeout: base.Timeout,
		Transport: &keyTransport{
			key:     key,
			limiter: opts.RateLimiter(),
			next:    base.Transport,
		},
	}

	clientOpts := []option.ClientOption{
		option.WithHTTPClient(client),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.BaseURL))
	}

	svc, err := yt.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("youtube: creating service: %w", err)
	}
	return &Adapter{svc: svc, channelID: channel}, nil
}

func (a *Adapter) Type() model.PlatformType { return model.PlatformYouTube }

// ListPosts returns the 50 most recent videos of the uploads playlist.
func (a *Adapter) ListPosts(ctx context.Context) ([]platform.RawPost, error) {
	channels, err := a.svc.Channels.List([]string{"contentDetails"}).Id(a.channelID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("youtube: looking up channel: %w", classify(err))
	}
	if len(channels.Items) == 0 || channels.Items[0].ContentDetails == nil ||
		channels.Items[0].ContentDetails.RelatedPlaylists == nil ||
		channels.Items[0].ContentDetails.RelatedPlaylists.Uploads == "" {
		return nil, fmt.Errorf("youtube: channel %s has no uploads playlist", a.channelID)
	}
	uploads := channels.Items[0].ContentDetails.RelatedPlaylists.Uploads

	items, err := a.svc.PlaylistItems.List([]string{"snippet"}).
		PlaylistId(uploads).
		MaxResults(pageSize).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("youtube: listing uploads: %w", classify(err))
	}

	posts := make([]platform.RawPost, 0, len(items.Items))
	for _, it := range items.Items {
		sn := it.Snippet
		if sn == nil || sn.ResourceId == nil || sn.ResourceId.VideoId == "" {
			continue
		}
		// Left zero when unparsable; the reconciler skips such posts.
		published, _ := time.Parse(time.RFC3339, sn.PublishedAt)
		var media []string
		if sn.Thumbnails != nil && sn.Thumbnails.High != nil && sn.Thumbnails.High.Url != "" {
			media = []string{sn.Thumbnails.High.Url}
		}
		posts = append(posts, platform.RawPost{
			ExternalID:  sn.ResourceId.VideoId,
			Title:       sn.Title,
			Content:     sn.Description,
			MediaURLs:   media,
			PublishedAt: published.UTC(),
		})
	}
	return posts, nil
}

// FetchMetrics reads video statistics. Watch time and average view
// duration are estimates derived from the video length.
func (a *Adapter) FetchMetrics(ctx context.Context, externalID string) (model.Metrics, error) {
	resp, err := a.svc.Videos.List([]string{"statistics", "contentDetails"}).Id(externalID).Context(ctx).Do()
	if err != nil {
		return model.Metrics{}, fmt.Errorf("youtube: fetching video %s: %w", externalID, classify(err))
	}
	if len(resp.Items) == 0 {
		return model.Metrics{}, retry.Permanent(fmt.Errorf("youtube: video %s not found", externalID))
	}
	v := resp.Items[0]

	var views, likes, comments int64
	if v.Statistics != nil {
		views = int64(v.Statistics.ViewCount)
		likes = int64(v.Statistics.LikeCount)
		comments = int64(v.Statistics.CommentCount)
	}
	var seconds float64
	if v.ContentDetails != nil {
		seconds = float64(ParseDuration(v.ContentDetails.Duration) / time.Second)
	}

	m := model.Metrics{
		Likes:               likes,
		Comments:            comments,
		EngagementRate:      platform.EngagementRate(likes+comments, views),
		Views:               platform.Int64(views),
		WatchTime:           platform.Float64(float64(views) * seconds * watchedFraction),
		AverageViewDuration: platform.Float64(seconds * watchedFraction),
	}
	if subs, err := a.subscriberCount(ctx); err == nil {
		m.Subscribers = platform.Int64(subs)
	}
	return m, nil
}

// subscriberCount is looked up once per adapter.
func (a *Adapter) subscriberCount(ctx context.Context) (int64, error) {
	if a.subscribers != nil {
		return *a.subscribers, nil
	}
	resp, err := a.svc.Channels.List([]string{"statistics"}).Id(a.channelID).Context(ctx).Do()
	if err != nil {
		return 0, classify(err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Statistics == nil {
		return 0, fmt.Errorf("youtube: channel %s has no statistics", a.channelID)
	}
	n := int64(resp.Items[0].Statistics.SubscriberCount)
	a.subscribers = &n
	return n, nil
}

// Validate lists the configured channel.
func (a *Adapter) Validate(ctx context.Context) error {
	resp, err := a.svc.Channels.List([]string{"id"}).Id(a.channelID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("youtube: validating api key: %w", classify(err))
	}
	if len(resp.Items) == 0 {
		return fmt.Errorf("youtube: channel %s not found", a.channelID)
	}
	return nil
}

// classify turns googleapi errors into platform.StatusError, marking
// client errors as permanent. Transport errors lose their URL query.
func classify(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return platform.RedactURL(err)
	}
	se := &platform.StatusError{Code: gerr.Code, Body: gerr.Message}
	if se.Temporary() {
		return se
	}
	return retry.Permanent(se)
}

type keyTransport struct {
	key     string
	limiter *rate.Limiter
	next    http.RoundTripper
}

func (t *keyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	r := req.Clone(req.Context())
	r.Header.Set(apiKeyHeader, t.key)

	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(r)
}

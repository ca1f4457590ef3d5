package linkedin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/model"
	"github.com/sakif/content-dashboard/internal/platform"
)

func newTestAdapter(t *testing.T, creds map[string]string, handler http.Handler) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a, err := New(platform.Options{
		BaseURL: srv.URL,
		Limiter: rate.NewLimiter(rate.Inf, 1),
	}, creds)
	require.NoError(t, err)
	return a
}

func TestNew_RequiresAccessToken(t *testing.T) {
	_, err := New(platform.Options{}, map[string]string{})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestListPosts_ResolvesPersonAndMapsShares(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/people/~", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"id":"abc"}`))
	})
	mux.HandleFunc("/v2/shares", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "urn:li:person:abc", r.URL.Query().Get("owners"))
		assert.Equal(t, "50", r.URL.Query().Get("count"))
		w.Write([]byte(`{"elements":[
			{"id":"urn:li:share:1","text":{"text":"Hello world"},"created":{"time":1700000000000}},
			{"id":"urn:li:share:2","text":{"text":""},"created":{"time":1700000000000},
			 "content":{"contentEntities":[{"entityLocation":"https://example.com/a"}]}}
		]}`))
	})

	a := newTestAdapter(t, map[string]string{"access_token": "tok"}, mux)

	posts, err := a.ListPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, "urn:li:share:1", posts[0].ExternalID)
	assert.Equal(t, "Hello world", posts[0].Title)
	assert.Equal(t, int64(1700000000), posts[0].PublishedAt.Unix())
	assert.Equal(t, "LinkedIn Post", posts[1].Title)
	assert.Equal(t, []string{"https://example.com/a"}, posts[1].MediaURLs)
}

func TestFetchMetrics(t *testing.T) {
	t.Run("without impressions", func(t *testing.T) {
		a := newTestAdapter(t, map[string]string{"access_token": "tok", "person_id": "p"},
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"likesSummary":{"totalLikes":3},"commentsSummary":{"aggregatedTotalComments":2}}`))
			}))

		m, err := a.FetchMetrics(context.Background(), "urn:li:share:1")
		require.NoError(t, err)
		assert.Equal(t, int64(3), m.Likes)
		assert.Equal(t, int64(2), m.Comments)
		assert.Nil(t, m.Impressions)
		assert.InDelta(t, 500.0, m.EngagementRate, 0.001)
	})

	t.Run("with impressions", func(t *testing.T) {
		a := newTestAdapter(t, map[string]string{"access_token": "tok", "person_id": "p"},
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"likesSummary":{"totalLikes":6},"commentsSummary":{"aggregatedTotalComments":2},
					"sharesSummary":{"totalShares":2},"impressionCount":200,"clickCount":10}`))
			}))

		m, err := a.FetchMetrics(context.Background(), "urn:li:share:1")
		require.NoError(t, err)
		require.NotNil(t, m.Impressions)
		assert.Equal(t, int64(200), *m.Impressions)
		assert.InDelta(t, 5.0, m.EngagementRate, 0.001)
		require.NotNil(t, m.ClickThroughRate)
		assert.InDelta(t, 5.0, *m.ClickThroughRate, 0.001)
	})
}

func TestValidate_Unauthorized(t *testing.T) {
	a := newTestAdapter(t, map[string]string{"access_token": "bad"},
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))

	err := a.Validate(context.Background())
	assert.True(t, platform.IsStatus(err, http.StatusUnauthorized))
}

func TestType(t *testing.T) {
	a, err := New(platform.Options{}, map[string]string{"access_token": "tok"})
	require.NoError(t, err)
	assert.Equal(t, model.PlatformLinkedIn, a.Type())
}

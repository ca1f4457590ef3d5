package platform

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sakif/content-dashboard/internal/model"
	"github.com/sakif/content-dashboard/internal/retry"
)

// ===== CLIENT =====

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	header := http.Header{}
	header.Set("Authorization", "Bearer tok")
	return NewClient(Options{BaseURL: srv.URL, Limiter: rate.NewLimiter(rate.Inf, 1)}, "http://unused", header)
}

func TestGetJSON_DecodesAndSendsHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.Write([]byte(`{"name":"ok"}`))
	})

	var out struct{ Name string }
	err := c.GetJSON(context.Background(), "/thing", map[string][]string{"page": {"2"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Name)
}

func TestGetJSON_ClassifiesStatus(t *testing.T) {
	tests := []struct {
		status    int
		wantTries int
	}{
		{http.StatusUnauthorized, 1},
		{http.StatusNotFound, 1},
		{http.StatusTooManyRequests, 3},
		{http.StatusBadGateway, 3},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			calls := 0
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
			})

			_, err := retry.Do(context.Background(), retry.NoWait, func() (struct{}, error) {
				return struct{}{}, c.GetJSON(context.Background(), "/x", nil, &struct{}{})
			})
			assert.True(t, IsStatus(err, tt.status))
			assert.Equal(t, tt.wantTries, calls)
		})
	}
}

func TestGetJSON_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{nope`))
	})
	err := c.GetJSON(context.Background(), "/x", nil, &struct{}{})
	assert.Error(t, err)
}

func TestGetJSON_TransportErrorHidesQuery(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close() // nothing listens any more: the call fails in the transport

	c := NewClient(Options{BaseURL: base, Limiter: rate.NewLimiter(rate.Inf, 1)}, "http://unused", nil)
	q := url.Values{}
	q.Set("access_token", "SECRET-IG-TOKEN")
	err := c.GetJSON(context.Background(), "/m1/insights", q, &struct{}{})

	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-IG-TOKEN")
	assert.Contains(t, err.Error(), "/m1/insights")

	var ue *url.Error
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, base+"/m1/insights", ue.URL)
}

func TestRedactURL(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"query dropped", &url.Error{Op: "Get", URL: "https://graph.instagram.com/me?access_token=abc", Err: cause}, `Get "https://graph.instagram.com/me": connection refused`},
		{"user info dropped", &url.Error{Op: "Get", URL: "https://u:p@host/x?key=k", Err: cause}, `Get "https://host/x": connection refused`},
		{"unparseable url", &url.Error{Op: "Get", URL: "%zz?key=k", Err: cause}, `Get "[redacted]": connection refused`},
		{"other errors untouched", cause, "connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RedactURL(tt.err)
			assert.Equal(t, tt.want, got.Error())
			assert.ErrorIs(t, got, cause)
		})
	}
}

// ===== REGISTRY =====

type stubAdapter struct{ Adapter }

func TestRegistry_Build(t *testing.T) {
	var gotCreds map[string]string
	reg := Registry{
		model.PlatformYouTube: func(creds map[string]string) (Adapter, error) {
			gotCreds = creds
			return stubAdapter{}, nil
		},
	}

	_, err := reg.Build(&model.Platform{Type: model.PlatformYouTube, Credentials: map[string]string{"api_key": "k"}})
	require.NoError(t, err)
	assert.Equal(t, "k", gotCreds["api_key"])

	_, err = reg.Build(&model.Platform{Type: model.PlatformLinkedIn})
	assert.Error(t, err)
}

// ===== HELPERS =====

func TestTitle(t *testing.T) {
	assert.Equal(t, "fallback", Title("   ", "fallback"))
	assert.Equal(t, "short", Title("short", "fallback"))

	long := strings.Repeat("é", 150)
	assert.Equal(t, strings.Repeat("é", 100), Title(long, "fallback"))
}

func TestEngagementRate(t *testing.T) {
	assert.Equal(t, 0.0, EngagementRate(10, 0))
	assert.InDelta(t, 2.5, EngagementRate(5, 200), 0.0001)
}

func TestStatusError_Temporary(t *testing.T) {
	assert.True(t, (&StatusError{Code: 503}).Temporary())
	assert.True(t, (&StatusError{Code: 429}).Temporary())
	assert.False(t, (&StatusError{Code: 403}).Temporary())
	assert.False(t, IsStatus(errors.New("plain"), 500))
}

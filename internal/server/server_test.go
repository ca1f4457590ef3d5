package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/content-dashboard/internal/auth"
	"github.com/sakif/content-dashboard/internal/config"
	"github.com/sakif/content-dashboard/internal/model"
	"github.com/sakif/content-dashboard/internal/repository/sqlstore"
)

const testSecret = "server-test-secret-0123456789"

func testConfig() *config.Config {
	return &config.Config{
		Port:               0,
		LogFormat:          "text",
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
		GoogleRedirectURI:  "http://localhost:3001/auth/google/callback",
		JWTSecret:          testSecret,
		AllowlistEnabled:   true,
		DBDriver:           "sqlite",
		DBPath:             ":memory:",
		HTTPTimeout:        time.Second,
		RateLimitRequests:  1000,
		RateLimitWindow:    time.Minute,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := OpenStore(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv, err := New(cfg, store, logger)
	require.NoError(t, err)
	return srv
}

func sessionCookie(t *testing.T, role model.Role) *http.Cookie {
	t.Helper()
	tokens, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)
	tok, err := tokens.Issue(&model.User{ID: "u-" + string(role), Email: string(role) + "@example.com", Role: role})
	require.NoError(t, err)
	return &http.Cookie{Name: auth.SessionCookieName, Value: tok}
}

func do(t *testing.T, srv *Server, method, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func TestNew_RejectsWeakSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = "short"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlstore.Open(context.Background(), sqlstore.Options{Driver: sqlstore.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	defer store.Close()

	_, err = New(cfg, store, logger)
	assert.Error(t, err)
}

// ===== Route protection =====

func TestRoutes_Access(t *testing.T) {
	srv := newTestServer(t, testConfig())

	tests := []struct {
		name       string
		method     string
		path       string
		role       model.Role // empty means no cookie
		wantStatus int
	}{
		{"health is public", http.MethodGet, "/api/health", "", http.StatusOK},
		{"metrics is public", http.MethodGet, "/metrics", "", http.StatusOK},
		{"logout is public", http.MethodPost, "/api/auth/logout", "", http.StatusOK},
		{"overview needs session", http.MethodGet, "/api/metrics/overview", "", http.StatusUnauthorized},
		{"overview as viewer", http.MethodGet, "/api/metrics/overview", model.RoleViewer, http.StatusOK},
		{"top posts as viewer", http.MethodGet, "/api/posts/top", model.RoleViewer, http.StatusOK},
		{"missing post", http.MethodGet, "/api/posts/nope", model.RoleViewer, http.StatusNotFound},
		{"sync as viewer", http.MethodPost, "/api/platforms/youtube/sync", model.RoleViewer, http.StatusForbidden},
		{"sync unconfigured platform", http.MethodPost, "/api/platforms/youtube/sync", model.RoleUser, http.StatusNotFound},
		{"validate unconfigured platform", http.MethodGet, "/api/platforms/youtube/validate", model.RoleUser, http.StatusOK},
		{"analysis without key", http.MethodPost, "/api/posts/p1/analyze", model.RoleUser, http.StatusBadRequest},
		{"admin list as user", http.MethodGet, "/api/admin/allowed-emails", model.RoleUser, http.StatusForbidden},
		{"admin list as admin", http.MethodGet, "/api/admin/allowed-emails", model.RoleAdmin, http.StatusOK},
		{"refresh token as user", http.MethodPost, "/api/platforms/instagram/refresh-token", model.RoleUser, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cookie *http.Cookie
			if tt.role != "" {
				cookie = sessionCookie(t, tt.role)
			}
			rr := do(t, srv, tt.method, tt.path, cookie)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
		})
	}
}

func TestRoutes_EmptyOverview(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rr := do(t, srv, http.MethodGet, "/api/metrics/overview", sessionCookie(t, model.RoleViewer))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"totalPosts":0,"avgPerformanceScore":0,"topPlatform":"none","recentPosts":0}`, rr.Body.String())
}

func TestRoutes_LoginRedirectsToGoogle(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rr := do(t, srv, http.MethodGet, "/auth/google", nil)
	require.Equal(t, http.StatusFound, rr.Code)

	loc := rr.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "https://accounts.google.com/"), loc)
	assert.Contains(t, loc, "state=")
	assert.Contains(t, loc, "client_id=client-id")
}

func TestRoutes_CallbackWithUnknownState(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rr := do(t, srv, http.MethodGet, "/auth/google/callback?code=abc&state=forged", nil)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login?error=invalid_state", rr.Header().Get("Location"))
	assert.Empty(t, rr.Result().Cookies())
}

func TestRoutes_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRequests = 2
	srv := newTestServer(t, cfg)

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/health", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/health", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, srv, http.MethodGet, "/api/health", nil).Code)

	// outside /api is not limited
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/metrics", nil).Code)
}

package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/content-dashboard/internal/retry"
)

// DefaultTimeout applies when Options.HTTPClient is nil.
const DefaultTimeout = 15 * time.Second

// Options are shared by every adapter factory.
type Options struct {
	// HTTPClient must carry a Timeout. A client with 15s is used when nil.
	HTTPClient *http.Client
	// Limiter paces outbound calls. Nil means 5 requests per second.
	Limiter *rate.Limiter
	// BaseURL overrides the vendor API root. Tests point it at httptest.
	BaseURL string
}

// HTTP returns the configured client or a default one.
func (o Options) HTTP() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}

// RateLimiter returns the configured limiter or a default one.
func (o Options) RateLimiter() *rate.Limiter {
	if o.Limiter != nil {
		return o.Limiter
	}
	return rate.NewLimiter(rate.Every(200*time.Millisecond), 5)
}

// Base returns BaseURL, or def when unset.
func (o Options) Base(def string) string {
	if o.BaseURL != "" {
		return strings.TrimRight(o.BaseURL, "/")
	}
	return def
}

// StatusError is a non-2xx answer from a vendor API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("platform: unexpected status %d: %s", e.Code, e.Body)
}

// Temporary reports whether the call may succeed if repeated.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// IsStatus reports whether err carries a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Client is a rate-limited JSON GET client for one vendor API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	header  http.Header
}

// NewClient builds a Client rooted at opts.Base(defaultBaseURL). Every
// request carries header.
func NewClient(opts Options, defaultBaseURL string, header http.Header) *Client {
	if header == nil {
		header = http.Header{}
	}
	return &Client{
		baseURL: opts.Base(defaultBaseURL),
		http:    opts.HTTP(),
		limiter: opts.RateLimiter(),
		header:  header,
	}
}

// GetJSON waits for the limiter, performs GET baseURL+path?query and
// decodes the body into out.
//
// Client errors other than 429 are wrapped with retry.Permanent, so a
// retry loop around the call stops at once on bad credentials.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("platform: waiting for rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("platform: building request: %w", err))
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("platform: calling %s: %w", path, RedactURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		se := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if se.Temporary() {
			return se
		}
		return retry.Permanent(se)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retry.Permanent(fmt.Errorf("platform: decoding %s response: %w", path, err))
	}
	return nil
}

// RedactURL drops the query string and user info from the URL of a
// *url.Error found in err. net/http puts the full request URL into
// transport errors, and some networks take the access token as a query
// parameter. Errors without a *url.Error are returned as is.
func RedactURL(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	return &url.Error{Op: ue.Op, URL: stripURL(ue.URL), Err: ue.Err}
}

func stripURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	return u.String()
}

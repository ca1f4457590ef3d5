package handler

import (
	"context"
	"net/http"
	"time"
)

// DefaultLongRequestTimeout bounds syncs and AI analysis run inside a
// request when no other limit is configured.
const DefaultLongRequestTimeout = 5 * time.Minute

// writeSlack is kept between the work deadline and the write deadline so a
// request that times out can still send its error.
const writeSlack = 5 * time.Second

// Option configures the handlers that do slow outbound work.
type Option func(*options)

type options struct {
	longTimeout time.Duration
}

// WithLongRequestTimeout sets how long a sync or analysis request may run.
// It replaces the server's WriteTimeout for those routes only.
func WithLongRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.longTimeout = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{longTimeout: DefaultLongRequestTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// LONG-RUNNING REQUESTS:
// The server's WriteTimeout (15s) is shorter than a sync of 50 posts under
// the per-network rate limit. Past it, net/http silently drops the
// response. longRunning pushes this connection's write deadline out to
// d plus slack and returns a context that ends the work at d.
//
// http.NewResponseController finds the connection through Unwrap, so
// wrapping middleware must expose it (middleware.Logger does). Writers
// without deadline support, like httptest.ResponseRecorder, are left as is.
func longRunning(w http.ResponseWriter, r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	_ = http.NewResponseController(w).SetWriteDeadline(time.Now().Add(d + writeSlack))
	return context.WithTimeout(r.Context(), d)
}

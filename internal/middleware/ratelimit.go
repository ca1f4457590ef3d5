package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/content-dashboard/internal/metrics"
)

// RateLimiter allows each client IP a fixed number of requests per window.
//
// Each IP gets a token bucket that holds `requests` tokens and refills
// evenly over `window`. Buckets idle for longer than a window are dropped
// on the next cleanup, which runs at most once per window.
type RateLimiter struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	interval    time.Duration // time to earn back one request
	burst       int
	window      time.Duration
	lastCleanup time.Time
	now         func() time.Time
	logger      *slog.Logger
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(requests int, window time.Duration, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		interval: window / time.Duration(requests),
		burst:    requests,
		window:   window,
		now:      time.Now,
		logger:   logger,
	}
}

// Handler rejects over-limit requests with 429 and a Retry-After header.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		lim := rl.limiterFor(ip)

		if !lim.AllowN(rl.now(), 1) {
			metrics.RateLimited.Inc()
			rl.logger.Warn("rate limit exceeded", slog.String("ip", ip), slog.String("path", r.URL.Path))

			w.Header().Set("Retry-After", strconv.Itoa(max(1, int(rl.interval.Seconds()))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limited","message":"too many requests, please try again later"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastCleanup) > rl.window {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rl.window {
				delete(rl.visitors, k)
			}
		}
		rl.lastCleanup = now
	}

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Every(rl.interval), rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// clientIP reads RemoteAddr, which chi's RealIP middleware has already
// replaced with the forwarded client address when present.
func clientIP(r *http.Request) string {
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

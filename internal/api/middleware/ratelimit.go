package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/api/response"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/cache"
)

const (
	defaultRequests = 20
	defaultWindow   = time.Minute
)

// RateLimit provides fixed-window rate limiting per client IP via Redis.
type RateLimit struct {
	cache    cache.Cache
	scope    string
	requests int
	window   time.Duration
	now      func() time.Time
}

// NewRateLimit creates a limiter allowing requests per window for each
// client address. scope separates the counters of independent limiters.
func NewRateLimit(c cache.Cache, scope string, requests int, window time.Duration) *RateLimit {
	if requests <= 0 {
		requests = defaultRequests
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &RateLimit{cache: c, scope: scope, requests: requests, window: window, now: time.Now}
}

// Limit rejects requests over the limit with 429.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := cache.RateLimitKey(rl.scope, clientIP(r))
		count, err := rl.cache.IncrWithExpiry(r.Context(), key, rl.window)
		if err != nil {
			// On Redis error, allow the request (fail open)
			next.ServeHTTP(w, r)
			return
		}

		remaining := max(rl.requests-int(count), 0)
		seconds := int(rl.window.Seconds())

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rl.now().Add(rl.window).Unix(), 10))

		if count > int64(rl.requests) {
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr. Proxy headers are resolved
// earlier by chi's RealIP middleware.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

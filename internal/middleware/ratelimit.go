package middleware

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/razy-dev/razy/internal/errors"
	"github.com/razy-dev/razy/internal/logging"
	"github.com/razy-dev/razy/internal/ratelimit"
)

// RateLimitConfig configures the throttling middleware
type RateLimitConfig struct {
	// Name selects the resolver from the registry and namespaces bucket keys
	Name string
	// OnExceed overrides the default 429 response
	OnExceed func(w http.ResponseWriter, r *http.Request, err *ratelimit.ThrottledError)
	// Record observes each rejected request, keyed by limiter name
	Record func(name string)
}

// RateLimit creates a throttling middleware for the named limiter. Requests
// under the budget get X-RateLimit-Limit / -Remaining / -Reset headers;
// requests over it get Retry-After and a 429. A Limit with no key falls back
// to the client IP; an Unlimited limit passes everything through.
func RateLimit(registry *ratelimit.Registry, cfg RateLimitConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resolver := registry.Resolve(cfg.Name)
			if resolver == nil {
				logging.Warn("Unknown rate limiter", zap.String("name", cfg.Name))
				next.ServeHTTP(w, r)
				return
			}

			limit := resolver(r)
			if limit.Unlimited {
				next.ServeHTTP(w, r)
				return
			}

			key := limit.Key
			if key == "" {
				key = ClientIP(r)
			}
			key = cfg.Name + ":" + key

			limiter := registry.Limiter()
			if err := limiter.Attempt(key, limit.MaxAttempts, limit.Decay); err != nil {
				throttled := err.(*ratelimit.ThrottledError)
				if cfg.Record != nil {
					cfg.Record(cfg.Name)
				}
				retryAfter := int(throttled.RetryAfter.Seconds())
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.MaxAttempts))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(limiter.ResetAt(key), 10))

				if cfg.OnExceed != nil {
					cfg.OnExceed(w, r, throttled)
					return
				}
				errors.ErrTooManyRequests.WriteJSON(w)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.MaxAttempts))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key, limit.MaxAttempts)))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(limiter.ResetAt(key), 10))

			next.ServeHTTP(w, r)
		})
	}
}

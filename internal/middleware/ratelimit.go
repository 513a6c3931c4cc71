package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	"chatgate/internal/apperr"
	"chatgate/internal/metrics"
	"chatgate/pkg/logging"
)

// RateLimit gates every inbound request on one shared token bucket. The
// limiter is constructed once at startup and passed in, so the configured
// rate is enforced across all concurrent handlers rather than per-worker.
// Rejected requests never reach routing, let alone the backend.
func RateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				metrics.RateLimitedTotal.Inc()
				apperr.Write(w, logging.L(r.Context()), apperr.RateLimited())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

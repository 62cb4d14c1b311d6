package server

import (
	"math"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
)

// RateLimitMiddleware applies one token bucket to every inbound request
// outside PublicPaths. A burst below one defaults to the ceiling of rps.
func RateLimitMiddleware(rps float64, burst int) func(http.Handler) http.Handler {
	if burst < 1 {
		burst = int(math.Ceil(rps))
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if PublicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			res := limiter.Reserve()
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
				WriteError(w, r, domain.ErrRateLimit("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

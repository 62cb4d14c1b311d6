package oracle

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/tjfontaine/harassment-moderator/internal/core/ports"
)

// RateLimited spaces calls to the wrapped oracle.
type RateLimited struct {
	next    ports.Oracle
	limiter *rate.Limiter
}

// WithRateLimit wraps next with a token bucket of rps calls per second.
// A non-positive rps returns next unchanged.
func WithRateLimit(next ports.Oracle, rps float64, burst int) ports.Oracle {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimited) Generate(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.next.Generate(ctx, prompt)
}

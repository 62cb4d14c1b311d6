// Package oracle wraps text generation backends with the retry and rate
// limiting behavior the moderation pipeline relies on.
package oracle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
	"github.com/tjfontaine/harassment-moderator/internal/core/ports"
	"github.com/tjfontaine/harassment-moderator/internal/metrics"
)

// DefaultMaxAttempts bounds the number of calls made for a single prompt.
const DefaultMaxAttempts = 5

// RetryConfig configures Retrying.
type RetryConfig struct {
	MaxAttempts    int
	AttemptTimeout time.Duration // 0 disables the per-attempt deadline
	BackoffMin     time.Duration
	BackoffMax     time.Duration
}

// Retrying retries transient failures of the wrapped oracle. Every attempt
// sends the same prompt and nothing is carried over between attempts.
type Retrying struct {
	next   ports.Oracle
	cfg    RetryConfig
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps next. A MaxAttempts below one selects DefaultMaxAttempts.
func WithRetry(next ports.Oracle, cfg RetryConfig, logger *slog.Logger) *Retrying {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = cfg.BackoffMin
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{
		next:   next,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Generate calls the wrapped oracle until it succeeds, fails permanently or
// the attempt budget is spent. Any failure is reported as an
// *domain.OracleUnavailableError.
func (r *Retrying) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		text, err := r.attempt(ctx, prompt)
		if err == nil {
			metrics.OracleAttemptCount.WithLabelValues("ok").Inc()
			return text, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.OracleAttemptCount.WithLabelValues("fatal").Inc()
			return "", &domain.OracleUnavailableError{Attempts: attempt, Err: errors.Join(ctxErr, err)}
		}
		if !domain.IsTransient(err) {
			metrics.OracleAttemptCount.WithLabelValues("fatal").Inc()
			r.logger.Error("oracle call failed permanently",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return "", &domain.OracleUnavailableError{Attempts: attempt, Err: err}
		}

		metrics.OracleAttemptCount.WithLabelValues("transient").Inc()
		if attempt == r.cfg.MaxAttempts {
			break
		}

		wait := retryablehttp.DefaultBackoff(r.cfg.BackoffMin, r.cfg.BackoffMax, attempt-1, nil)
		r.logger.Warn("oracle call failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", r.cfg.MaxAttempts),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()))
		if err := r.sleep(ctx, wait); err != nil {
			return "", &domain.OracleUnavailableError{Attempts: attempt, Err: errors.Join(err, lastErr)}
		}
	}

	metrics.OracleUnavailableCount.Inc()
	r.logger.Error("oracle retry budget exhausted",
		slog.Int("attempts", r.cfg.MaxAttempts),
		slog.String("error", lastErr.Error()))
	return "", &domain.OracleUnavailableError{Attempts: r.cfg.MaxAttempts, Err: lastErr}
}

func (r *Retrying) attempt(ctx context.Context, prompt string) (string, error) {
	if r.cfg.AttemptTimeout <= 0 {
		return r.next.Generate(ctx, prompt)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.AttemptTimeout)
	defer cancel()

	text, err := r.next.Generate(attemptCtx, prompt)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		// The attempt's own deadline fired while the caller is still waiting.
		return "", domain.Transient(err)
	}
	return text, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

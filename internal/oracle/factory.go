package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hashicorp/go-cleanhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/harassment-moderator/internal/config"
	"github.com/tjfontaine/harassment-moderator/internal/core/ports"
	"github.com/tjfontaine/harassment-moderator/internal/oracle/gemini"
	"github.com/tjfontaine/harassment-moderator/internal/oracle/openai"
)

// New builds the configured provider and wraps it with rate limiting and
// retries. Retrying is outermost so every attempt waits for the limiter.
func New(ctx context.Context, cfg config.OracleConfig, logger *slog.Logger) (ports.Oracle, error) {
	base, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(base, cfg, logger), nil
}

// Wrap applies the configured rate limit and retry policy to base.
func Wrap(base ports.Oracle, cfg config.OracleConfig, logger *slog.Logger) ports.Oracle {
	limited := WithRateLimit(base, cfg.RequestsPerSecond, cfg.Burst)
	return WithRetry(limited, RetryConfig{
		MaxAttempts:    cfg.MaxAttempts,
		AttemptTimeout: cfg.AttemptTimeout,
		BackoffMin:     cfg.BackoffMin,
		BackoffMax:     cfg.BackoffMax,
	}, logger)
}

func newProvider(ctx context.Context, cfg config.OracleConfig) (ports.Oracle, error) {
	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(cleanhttp.DefaultPooledTransport()),
	}

	switch cfg.Provider {
	case "gemini", "":
		return gemini.New(ctx, gemini.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			HTTPClient: httpClient,
		})
	case "openai":
		client := openai.NewClient(cfg.APIKey,
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithHTTPClient(httpClient))
		return openai.New(client, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider: %s", cfg.Provider)
	}
}

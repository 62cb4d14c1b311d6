// Package server provides the HTTP server and the middleware chain shared by
// every route.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/harassment-moderator/internal/auth"
	"github.com/tjfontaine/harassment-moderator/internal/config"
)

// Server owns the router and the listening http.Server.
type Server struct {
	Router *chi.Mux
	Port   int

	logger *slog.Logger
	srv    *http.Server
}

// Option customizes the middleware chain.
type Option func(*options)

type options struct {
	auth *auth.Authenticator
}

// WithAuthenticator requires a valid API key outside PublicPaths. A nil
// authenticator leaves every route open.
func WithAuthenticator(a *auth.Authenticator) Option {
	return func(o *options) { o.auth = a }
}

// New builds a router with request IDs, logging, CORS, rate limiting,
// authentication, timeouts, panic recovery and tracing applied in that order.
func New(cfg config.ServerConfig, logger *slog.Logger, opts ...Option) *Server {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(CORSMiddleware(cfg.AllowedOrigins))
	if cfg.RequestsPerSecond > 0 {
		r.Use(RateLimitMiddleware(cfg.RequestsPerSecond, cfg.Burst))
	}
	if o.auth != nil {
		r.Use(AuthMiddleware(o.auth))
	}
	r.Use(TimeoutMiddleware(cfg.RequestTimeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "harassment-moderator")
	})

	return &Server{
		Router: r,
		Port:   cfg.Port,
		logger: logger,
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start listens on the configured port and blocks until the server stops.
// A graceful Shutdown makes Start return nil.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.srv.Shutdown(ctx)
}

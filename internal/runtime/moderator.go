// Package runtime assembles the moderation service from configuration:
// oracle, pipeline, storage, importer and HTTP server, plus their lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tjfontaine/harassment-moderator/internal/api/moderation"
	"github.com/tjfontaine/harassment-moderator/internal/auth"
	"github.com/tjfontaine/harassment-moderator/internal/config"
	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
	"github.com/tjfontaine/harassment-moderator/internal/core/ports"
	"github.com/tjfontaine/harassment-moderator/internal/importer"
	"github.com/tjfontaine/harassment-moderator/internal/oracle"
	"github.com/tjfontaine/harassment-moderator/internal/pipeline"
	"github.com/tjfontaine/harassment-moderator/internal/server"
	"github.com/tjfontaine/harassment-moderator/internal/storage"
	"github.com/tjfontaine/harassment-moderator/internal/telemetry"
)

// Moderator is the assembled moderation service. It can classify text
// in-process or serve the HTTP API.
type Moderator struct {
	// Dependencies (injected via options)
	cfg    *config.Config
	oracle ports.Oracle
	store  ports.VerdictStore
	source ports.CommentSource
	logger *slog.Logger

	pipeline *pipeline.Orchestrator
	importer *importer.Importer
	batch    *importer.Batch
	server   *server.Server

	ownsStore      bool
	shutdownTracer telemetry.ShutdownFunc

	mu       sync.Mutex
	started  bool
	serveErr chan error
}

// New creates a Moderator. A config is required; missing dependencies are
// built from it: the oracle provider, the verdict store and the Instagram
// comment source. Injected oracles still get the configured retry and
// rate limit wrappers.
func New(opts ...Option) (_ *Moderator, err error) {
	m := &Moderator{
		logger:   slog.Default(),
		serveErr: make(chan error, 1),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if m.cfg == nil {
		return nil, errors.New("config required (use WithConfig or WithFileConfig)")
	}
	cfg := m.cfg
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	shutdownTracer, err := telemetry.InitTracer(cfg.Telemetry, m.logger)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	m.shutdownTracer = shutdownTracer
	defer func() {
		if err != nil {
			m.release(context.Background())
		}
	}()

	if m.oracle == nil {
		m.oracle, err = oracle.New(context.Background(), cfg.Oracle, m.logger)
		if err != nil {
			return nil, fmt.Errorf("create oracle: %w", err)
		}
	} else {
		m.oracle = oracle.Wrap(m.oracle, cfg.Oracle, m.logger)
	}

	if m.store == nil {
		m.store, err = storage.Open(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		m.ownsStore = true
		m.logger.Info("verdict store opened", slog.String("type", cfg.Storage.Type))
	}

	if m.source == nil {
		m.source = importer.NewInstagramClient(cfg.Importer, m.logger)
	}

	popts, err := pipelineOptions(cfg, m.store, m.logger)
	if err != nil {
		return nil, err
	}
	m.pipeline = pipeline.New(m.oracle, popts...)
	m.batch = importer.NewBatch(m.pipeline, cfg.Importer.Concurrency, m.logger)
	m.importer = importer.New(m.source, m.batch, cfg.Importer.MaxItems)

	m.server = server.New(cfg.Server, m.logger, server.WithAuthenticator(auth.NewAuthenticator(cfg.Auth)))
	moderation.NewHandler(m.pipeline,
		moderation.WithImporter(m.importer),
		moderation.WithStore(m.store),
		moderation.WithLogger(m.logger),
	).Register(m.server.Router)

	return m, nil
}

// release flushes traces and closes an owned store, logging failures.
func (m *Moderator) release(ctx context.Context) error {
	if m.shutdownTracer != nil {
		if err := m.shutdownTracer(ctx); err != nil {
			m.logger.Error("failed to flush traces", slog.String("error", err.Error()))
		}
	}
	if m.ownsStore && m.store != nil {
		if err := m.store.Close(); err != nil {
			m.logger.Error("failed to close storage", slog.String("error", err.Error()))
			return err
		}
	}
	return nil
}

// Config returns the effective configuration.
func (m *Moderator) Config() *config.Config { return m.cfg }

// Classify runs text through the pipeline and returns the verdict. An empty
// source is recorded as "Manual".
func (m *Moderator) Classify(ctx context.Context, text, source string) (domain.Verdict, error) {
	if source == "" {
		source = domain.SourceManual
	}
	res, err := m.pipeline.Run(ctx, domain.Input{Text: text, Source: source})
	if err != nil {
		return domain.Verdict{}, err
	}
	return res.Verdict(), nil
}

// ClassifyBatch classifies texts independently, returning one summary per
// text in input order. Failed items carry an error message.
func (m *Moderator) ClassifyBatch(ctx context.Context, texts []string, source string) []domain.ItemSummary {
	if source == "" {
		source = domain.SourceManual
	}
	return m.batch.Run(ctx, texts, source)
}

// Import fetches and classifies the comments of a post.
func (m *Moderator) Import(ctx context.Context, postURL string) (*importer.Result, error) {
	return m.importer.Import(ctx, postURL)
}

// History lists stored verdict records, newest first.
func (m *Moderator) History(ctx context.Context, opts ports.ListOptions) ([]*domain.Record, error) {
	return m.store.ListRecords(ctx, opts)
}

// Handler returns the HTTP API with its middleware chain.
func (m *Moderator) Handler() http.Handler { return m.server.Router }

// Start serves the HTTP API in the background. Listener failures are
// delivered on Done.
func (m *Moderator) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return errors.New("moderator already started")
	}
	m.started = true

	go func() {
		m.serveErr <- m.server.Start()
	}()
	m.logger.Info("moderator started",
		slog.Int("port", m.cfg.Server.Port),
		slog.String("oracle", m.cfg.Oracle.Provider),
		slog.String("model", m.cfg.Oracle.Model))
	return nil
}

// Done receives the server's exit error, nil after a graceful Shutdown.
func (m *Moderator) Done() <-chan error { return m.serveErr }

// Shutdown stops the server, flushes traces and closes a store the
// Moderator opened itself.
func (m *Moderator) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("shutting down moderator")
	var errs []error
	if m.started {
		if err := m.server.Shutdown(ctx); err != nil {
			m.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if err := m.release(ctx); err != nil {
		errs = append(errs, err)
	}
	m.logger.Info("moderator shutdown complete")
	return errors.Join(errs...)
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
	"github.com/tjfontaine/harassment-moderator/internal/core/ports"
	"github.com/tjfontaine/harassment-moderator/internal/metrics"
	"github.com/tjfontaine/harassment-moderator/internal/policy"
	"github.com/tjfontaine/harassment-moderator/internal/tokens"
)

const tracerName = "github.com/tjfontaine/harassment-moderator/internal/pipeline"

// DefaultPersistTimeout bounds the persistence write of a run.
const DefaultPersistTimeout = 5 * time.Second

// Observer is notified around every stage of a run.
type Observer interface {
	BeforeStage(ctx context.Context, stage string, st *domain.PipelineState)
	AfterStage(ctx context.Context, stage string, st *domain.PipelineState, err error)
}

// ObserverFuncs adapts optional functions to the Observer interface.
type ObserverFuncs struct {
	Before func(ctx context.Context, stage string, st *domain.PipelineState)
	After  func(ctx context.Context, stage string, st *domain.PipelineState, err error)
}

func (o ObserverFuncs) BeforeStage(ctx context.Context, stage string, st *domain.PipelineState) {
	if o.Before != nil {
		o.Before(ctx, stage, st)
	}
}

func (o ObserverFuncs) AfterStage(ctx context.Context, stage string, st *domain.PipelineState, err error) {
	if o.After != nil {
		o.After(ctx, stage, st, err)
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithStore sets the verdict store used by the persistence stage.
func WithStore(store ports.VerdictStore) Option {
	return func(o *Orchestrator) {
		o.store = store
	}
}

// WithPersistTimeout bounds the persistence write.
func WithPersistTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.persistTimeout = d
	}
}

// WithStrategy sets how inconsistent (severity, action) pairs are resolved.
func WithStrategy(s policy.Strategy) Option {
	return func(o *Orchestrator) {
		o.policy = policy.New(s)
	}
}

// WithTokenGuard rejects inputs above the guard's budget before any oracle call.
func WithTokenGuard(g *tokens.Guard) Option {
	return func(o *Orchestrator) {
		o.guard = g
	}
}

// WithCounter sets the counter used for prompt size metrics.
func WithCounter(c tokens.Counter) Option {
	return func(o *Orchestrator) {
		o.counter = c
	}
}

// WithObserver adds an observer. Observers run in the order added.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observers = append(o.observers, obs)
	}
}

// Orchestrator runs the moderation state machine. It holds no per-run state
// and is safe for concurrent use.
type Orchestrator struct {
	stages []ports.Stage

	store          ports.VerdictStore
	persistTimeout time.Duration
	policy         policy.Policy
	guard          *tokens.Guard
	counter        tokens.Counter
	observers      []Observer
	logger         *slog.Logger
	tracer         trace.Tracer
}

// New creates an Orchestrator calling oracle for every stage.
func New(oracle ports.Oracle, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		persistTimeout: DefaultPersistTimeout,
		policy:         policy.New(policy.PreferSeverity),
		logger:         slog.Default(),
		tracer:         otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.stages = []ports.Stage{
		NewLinguisticAnalyst(oracle, o.counter),
		NewPolicyAuditor(oracle, o.counter),
		NewResolutionAgent(oracle, o.counter, o.policy, o.logger),
		NewPersister(o.store, o.persistTimeout, o.logger),
	}
	return o
}

// Result is the outcome of a completed run.
type Result struct {
	State *domain.PipelineState
}

// Verdict returns the caller facing verdict.
func (r *Result) Verdict() domain.Verdict {
	return r.State.Verdict()
}

// Run classifies in. Every call starts from a fresh Start state. The only
// errors are invalid input and *domain.OracleUnavailableError.
func (o *Orchestrator) Run(ctx context.Context, in domain.Input) (*Result, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, domain.ErrInvalidRequest("text is required")
	}
	if err := o.guard.Check(in.Text); err != nil {
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, "moderation.run",
		trace.WithAttributes(attribute.String("moderation.source", in.Source)))
	defer span.End()

	start := time.Now()
	st := domain.NewPipelineState(in)

	for _, stage := range o.stages {
		if err := o.runStage(ctx, stage, st); err != nil {
			metrics.RunCount.WithLabelValues("failed").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.logger.Error("moderation run aborted",
				slog.String("stage", stage.Name()),
				slog.String("phase", st.Phase.String()),
				slog.String("error", err.Error()))
			return nil, err
		}
	}

	verdict := st.Verdict()
	metrics.RunDuration.Observe(time.Since(start).Seconds())
	metrics.RunCount.WithLabelValues(verdict.Status).Inc()
	metrics.VerdictCount.WithLabelValues(string(verdict.Severity), string(verdict.SuggestedAction)).Inc()
	span.SetAttributes(
		attribute.String("moderation.status", verdict.Status),
		attribute.String("moderation.category", verdict.Category),
		attribute.String("moderation.severity", string(verdict.Severity)),
	)
	o.logger.Info("moderation run complete",
		slog.String("status", verdict.Status),
		slog.String("category", verdict.Category),
		slog.String("severity", string(verdict.Severity)),
		slog.String("action", string(verdict.SuggestedAction)),
		slog.Duration("duration", time.Since(start)))

	return &Result{State: st}, nil
}

func (o *Orchestrator) runStage(ctx context.Context, stage ports.Stage, st *domain.PipelineState) (err error) {
	ctx, span := o.tracer.Start(ctx, "moderation.stage",
		trace.WithAttributes(attribute.String("moderation.stage", stage.Name())))
	defer span.End()

	for _, obs := range o.observers {
		obs.BeforeStage(ctx, stage.Name(), st)
	}
	defer func() {
		for _, obs := range o.observers {
			obs.AfterStage(ctx, stage.Name(), st, err)
		}
	}()

	start := time.Now()
	update, err := stage.Run(ctx, st)
	metrics.StageDuration.WithLabelValues(stage.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StageErrorCount.WithLabelValues(stage.Name()).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", stage.Name(), err)
	}
	if update.Phase != stage.Phase() {
		return &domain.TransitionError{From: st.Phase, To: update.Phase, Reason: "stage " + stage.Name() + " returned a foreign phase"}
	}
	return st.Apply(update)
}

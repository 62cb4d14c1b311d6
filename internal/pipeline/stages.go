package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
	"github.com/tjfontaine/harassment-moderator/internal/core/ports"
	"github.com/tjfontaine/harassment-moderator/internal/metrics"
	"github.com/tjfontaine/harassment-moderator/internal/parser"
	"github.com/tjfontaine/harassment-moderator/internal/policy"
	"github.com/tjfontaine/harassment-moderator/internal/tokens"
)

// caller makes the single oracle call of a stage.
type caller struct {
	oracle  ports.Oracle
	counter tokens.Counter
}

func (c caller) generate(ctx context.Context, stage, prompt string) (string, error) {
	if c.counter != nil {
		metrics.PromptTokens.WithLabelValues(stage).Observe(float64(c.counter.CountText(prompt)))
	}
	return c.oracle.Generate(ctx, prompt)
}

func countMissing(stage string, labels []string) {
	for _, l := range labels {
		metrics.MalformedResponseCount.WithLabelValues(stage, l).Inc()
	}
}

// LinguisticAnalyst assesses tone and intent of the input text.
type LinguisticAnalyst struct {
	caller
}

func NewLinguisticAnalyst(oracle ports.Oracle, counter tokens.Counter) *LinguisticAnalyst {
	return &LinguisticAnalyst{caller{oracle: oracle, counter: counter}}
}

func (s *LinguisticAnalyst) Name() string        { return AgentLinguisticAnalyst }
func (s *LinguisticAnalyst) Phase() domain.Phase { return domain.PhaseAnalyzed }

func (s *LinguisticAnalyst) Run(ctx context.Context, st *domain.PipelineState) (*domain.StateUpdate, error) {
	prompt, err := render(analystPrompt, promptData{Text: st.InputText})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	text, err := s.generate(ctx, s.Name(), prompt)
	if err != nil {
		return nil, err
	}

	a := parser.ParseAnalysis(text)
	countMissing(s.Name(), a.Missing)
	return &domain.StateUpdate{
		Phase:              s.Phase(),
		LinguisticAnalysis: &a.Analysis,
		Reasoning:          domain.ReasoningEntry{Agent: s.Name(), Thought: a.Thought, Output: a.Analysis},
	}, nil
}

// PolicyAuditor matches the text and analysis against the taxonomy.
type PolicyAuditor struct {
	caller
}

func NewPolicyAuditor(oracle ports.Oracle, counter tokens.Counter) *PolicyAuditor {
	return &PolicyAuditor{caller{oracle: oracle, counter: counter}}
}

func (s *PolicyAuditor) Name() string        { return AgentPolicyAuditor }
func (s *PolicyAuditor) Phase() domain.Phase { return domain.PhaseAudited }

func (s *PolicyAuditor) Run(ctx context.Context, st *domain.PipelineState) (*domain.StateUpdate, error) {
	// The orchestrator only runs this stage after Analyzed.
	prompt, err := render(auditorPrompt, promptData{
		Text:     st.InputText,
		Analysis: *st.LinguisticAnalysis,
		Taxonomy: Taxonomy,
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	text, err := s.generate(ctx, s.Name(), prompt)
	if err != nil {
		return nil, err
	}

	a := parser.ParseAudit(text)
	countMissing(s.Name(), a.Missing)
	return &domain.StateUpdate{
		Phase:            s.Phase(),
		PolicyViolations: a.Violations,
		Reasoning:        domain.ReasoningEntry{Agent: s.Name(), Thought: a.Thought, Output: a.Raw},
	}, nil
}

// ResolutionAgent assigns severity and action, then reconciles the pair
// with the decision table.
type ResolutionAgent struct {
	caller
	policy policy.Policy
	logger *slog.Logger
}

func NewResolutionAgent(oracle ports.Oracle, counter tokens.Counter, p policy.Policy, logger *slog.Logger) *ResolutionAgent {
	return &ResolutionAgent{caller: caller{oracle: oracle, counter: counter}, policy: p, logger: logger}
}

func (s *ResolutionAgent) Name() string        { return AgentResolution }
func (s *ResolutionAgent) Phase() domain.Phase { return domain.PhaseResolved }

func (s *ResolutionAgent) Run(ctx context.Context, st *domain.PipelineState) (*domain.StateUpdate, error) {
	prompt, err := render(resolutionPrompt, promptData{Violations: formatViolations(st.PolicyViolations)})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	text, err := s.generate(ctx, s.Name(), prompt)
	if err != nil {
		return nil, err
	}

	r := parser.ParseResolution(text)
	countMissing(s.Name(), r.Missing)

	sev, act := r.Severity, r.Action
	if !r.SeverityFound && r.ActionFound {
		// The action alone still names a row of the table.
		sev = policy.SeverityFor(act)
	}
	output := fmt.Sprintf("Severity: %s, Action: %s", sev, act)
	// A missing action falls back to Ignore whatever the severity.
	if r.SeverityFound && r.ActionFound {
		d := s.policy.Normalize(sev, act)
		if !d.Consistent {
			metrics.DecisionMismatchCount.WithLabelValues(string(s.strategy())).Inc()
			s.logger.Warn("oracle decision disagrees with table",
				slog.String("severity", string(sev)),
				slog.String("action", string(act)),
				slog.String("strategy", string(s.strategy())),
				slog.String("normalized_severity", string(d.Severity)),
				slog.String("normalized_action", string(d.Action)))
			if d.Severity != sev || d.Action != act {
				output = fmt.Sprintf("Severity: %s, Action: %s (proposed: %s, %s)", d.Severity, d.Action, sev, act)
			}
		}
		sev, act = d.Severity, d.Action
	}

	return &domain.StateUpdate{
		Phase:         s.Phase(),
		SeverityScore: &sev,
		FinalDecision: &act,
		Reasoning:     domain.ReasoningEntry{Agent: s.Name(), Thought: r.Thought, Output: output},
	}, nil
}

func (s *ResolutionAgent) strategy() policy.Strategy {
	if s.policy.Strategy == "" {
		return policy.PreferSeverity
	}
	return s.policy.Strategy
}

// Persister hands the finished state to the verdict store. A failed write is
// logged and recorded in the reasoning entry, never returned.
type Persister struct {
	store   ports.VerdictStore
	timeout time.Duration
	logger  *slog.Logger
}

func NewPersister(store ports.VerdictStore, timeout time.Duration, logger *slog.Logger) *Persister {
	return &Persister{store: store, timeout: timeout, logger: logger}
}

func (s *Persister) Name() string        { return AgentPersister }
func (s *Persister) Phase() domain.Phase { return domain.PhasePersisted }

// Persister outputs.
const (
	OutputSaved      = "Saved"
	OutputSaveFailed = "Save failed"
	OutputNotStored  = "Not stored"
)

func (s *Persister) Run(ctx context.Context, st *domain.PipelineState) (*domain.StateUpdate, error) {
	entry := domain.ReasoningEntry{Agent: s.Name(), Thought: "Logging verdict to storage", Output: OutputSaved}
	if s.store == nil {
		entry.Output = OutputNotStored
		return &domain.StateUpdate{Phase: s.Phase(), Reasoning: entry}, nil
	}

	// The write outlives a caller that hangs up after the verdict is known.
	saveCtx := context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		saveCtx, cancel = context.WithTimeout(saveCtx, s.timeout)
		defer cancel()
	}

	rec := st.Record()
	if err := s.store.SaveRecord(saveCtx, rec); err != nil {
		perr := &domain.PersistenceError{Op: "save", Err: err}
		metrics.PersistFailureCount.Inc()
		s.logger.Error("failed to persist verdict",
			slog.String("source", rec.Source),
			slog.String("category", rec.Category),
			slog.String("error", perr.Error()))
		entry.Output = OutputSaveFailed
	} else {
		s.logger.Debug("verdict persisted", slog.String("id", rec.ID))
	}
	return &domain.StateUpdate{Phase: s.Phase(), Reasoning: entry}, nil
}

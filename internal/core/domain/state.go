package domain

import "fmt"

// Phase is a position in the moderation state machine.
type Phase int

const (
	PhaseStart Phase = iota
	PhaseAnalyzed
	PhaseAudited
	PhaseResolved
	PhasePersisted
)

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "Start"
	case PhaseAnalyzed:
		return "Analyzed"
	case PhaseAudited:
		return "Audited"
	case PhaseResolved:
		return "Resolved"
	case PhasePersisted:
		return "Persisted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Next returns the phase that follows p. PhasePersisted is terminal.
func (p Phase) Next() (Phase, bool) {
	if p >= PhasePersisted {
		return p, false
	}
	return p + 1, true
}

// ReasoningEntry records one stage's rationale and its visible result.
type ReasoningEntry struct {
	Agent   string `json:"agent"`
	Thought string `json:"thought"`
	Output  string `json:"output"`
}

// PipelineState accumulates the results of one moderation run.
// It is owned by a single run and must not be shared.
type PipelineState struct {
	Phase              Phase            `json:"phase"`
	InputText          string           `json:"input_text"`
	Source             string           `json:"source,omitempty"`
	LinguisticAnalysis *string          `json:"linguistic_analysis"`
	PolicyViolations   []string         `json:"policy_violations"`
	SeverityScore      *Severity        `json:"severity_score"`
	FinalDecision      *Action          `json:"final_decision"`
	ReasoningHistory   []ReasoningEntry `json:"reasoning_history"`
}

// NewPipelineState returns the Start state for in.
func NewPipelineState(in Input) *PipelineState {
	return &PipelineState{
		Phase:            PhaseStart,
		InputText:        in.Text,
		Source:           in.Source,
		PolicyViolations: []string{},
		ReasoningHistory: []ReasoningEntry{},
	}
}

// StateUpdate is the partial result produced by a stage. Only the fields
// owned by the target Phase may be set.
type StateUpdate struct {
	Phase              Phase
	LinguisticAnalysis *string
	PolicyViolations   []string
	SeverityScore      *Severity
	FinalDecision      *Action
	Reasoning          ReasoningEntry
}

// TransitionError reports an update that would break the state machine.
type TransitionError struct {
	From   Phase
	To     Phase
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s: %s", e.From, e.To, e.Reason)
}

// Apply folds u into the state. The update must target the phase directly
// after the current one and may not touch fields owned by other phases.
func (s *PipelineState) Apply(u *StateUpdate) error {
	next, ok := s.Phase.Next()
	if !ok || u.Phase != next {
		return &TransitionError{From: s.Phase, To: u.Phase, Reason: "out of order"}
	}

	owns := func(p Phase, set bool) bool { return !set || u.Phase == p }
	switch {
	case !owns(PhaseAnalyzed, u.LinguisticAnalysis != nil):
		return &TransitionError{From: s.Phase, To: u.Phase, Reason: "linguistic_analysis is owned by " + PhaseAnalyzed.String()}
	case !owns(PhaseAudited, u.PolicyViolations != nil):
		return &TransitionError{From: s.Phase, To: u.Phase, Reason: "policy_violations is owned by " + PhaseAudited.String()}
	case !owns(PhaseResolved, u.SeverityScore != nil || u.FinalDecision != nil):
		return &TransitionError{From: s.Phase, To: u.Phase, Reason: "severity and decision are owned by " + PhaseResolved.String()}
	}

	switch u.Phase {
	case PhaseAnalyzed:
		if u.LinguisticAnalysis == nil {
			return &TransitionError{From: s.Phase, To: u.Phase, Reason: "missing linguistic_analysis"}
		}
		analysis := *u.LinguisticAnalysis
		s.LinguisticAnalysis = &analysis
	case PhaseAudited:
		s.PolicyViolations = append([]string{}, u.PolicyViolations...)
	case PhaseResolved:
		if u.SeverityScore == nil || u.FinalDecision == nil {
			return &TransitionError{From: s.Phase, To: u.Phase, Reason: "missing severity or decision"}
		}
		sev, act := *u.SeverityScore, *u.FinalDecision
		s.SeverityScore, s.FinalDecision = &sev, &act
	}

	s.ReasoningHistory = append(s.ReasoningHistory, u.Reasoning)
	s.Phase = u.Phase
	return nil
}

// Harmful reports whether the audit found at least one violation.
func (s *PipelineState) Harmful() bool {
	return len(s.PolicyViolations) > 0
}

// Category returns the first violation verbatim, or sentinel when there is none.
func (s *PipelineState) Category(sentinel string) string {
	if s.Harmful() {
		return s.PolicyViolations[0]
	}
	return sentinel
}

// Severity returns the resolved severity, or SeverityLow before resolution.
func (s *PipelineState) Severity() Severity {
	if s.SeverityScore == nil {
		return SeverityLow
	}
	return *s.SeverityScore
}

// Decision returns the resolved action, or ActionIgnore before resolution.
func (s *PipelineState) Decision() Action {
	if s.FinalDecision == nil {
		return ActionIgnore
	}
	return *s.FinalDecision
}

// Verdict builds the caller facing result.
func (s *PipelineState) Verdict() Verdict {
	status := StatusSafe
	if s.Harmful() {
		status = StatusHarmful
	}
	return Verdict{
		Status:          status,
		Category:        s.Category(CategoryNone),
		Severity:        s.Severity(),
		ReasoningChain:  append([]ReasoningEntry{}, s.ReasoningHistory...),
		SuggestedAction: s.Decision(),
	}
}

// Record builds the persisted form of the state.
func (s *PipelineState) Record() *Record {
	source := s.Source
	if source == "" {
		source = SourceManual
	}
	return &Record{
		Content:         s.InputText,
		Category:        s.Category(CategorySafe),
		Severity:        s.Severity(),
		ReasoningChain:  append([]ReasoningEntry{}, s.ReasoningHistory...),
		SuggestedAction: s.Decision(),
		Source:          source,
	}
}

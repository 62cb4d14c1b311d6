package parser

import "github.com/tjfontaine/harassment-moderator/internal/core/domain"

// Section labels emitted by the stage prompts.
const (
	LabelThought    = "Thought"
	LabelAnalysis   = "Analysis"
	LabelViolations = "Violations"
	LabelSeverity   = "Severity"
	LabelAction     = "Action"
)

// Placeholders used when an oracle response has no "Thought:" section.
const (
	DefaultAnalystThought    = "Analyzing tone..."
	DefaultAuditorThought    = "Checking policies..."
	DefaultResolutionThought = "Deciding verdict..."
)

// Analysis is the parsed linguistic analyst response.
type Analysis struct {
	Thought  string
	Analysis string
	Missing  []string
}

// ParseAnalysis parses a linguistic analyst response. A missing "Analysis:"
// section makes the whole response the analysis.
func ParseAnalysis(text string) Analysis {
	s := Parse(text, LabelThought, LabelAnalysis)
	a := Analysis{
		Thought:  thoughtOr(s, DefaultAnalystThought),
		Missing:  missing(s, LabelThought, LabelAnalysis),
		Analysis: s.Raw(),
	}
	if v, ok := s.Get(LabelAnalysis); ok {
		a.Analysis = v
	}
	return a
}

// Audit is the parsed policy auditor response.
type Audit struct {
	Thought    string
	Raw        string
	Violations []string
	Missing    []string
}

// ParseAudit parses a policy auditor response. A missing "Violations:"
// section makes the whole response the violation list.
func ParseAudit(text string) Audit {
	s := Parse(text, LabelThought, LabelViolations)
	raw := s.Raw()
	if v, ok := s.Get(LabelViolations); ok {
		raw = v
	}
	return Audit{
		Thought:    thoughtOr(s, DefaultAuditorThought),
		Raw:        raw,
		Violations: SplitList(raw),
		Missing:    missing(s, LabelThought, LabelViolations),
	}
}

// Resolution is the parsed resolution agent response.
type Resolution struct {
	Thought     string
	Severity    domain.Severity
	Action      domain.Action
	RawSeverity string
	RawAction   string
	// SeverityFound and ActionFound report whether the value came from the
	// response rather than the lenient default.
	SeverityFound bool
	ActionFound   bool
	Missing       []string
}

// ParseResolution parses a resolution agent response. Missing or
// unrecognized values default to Low and Ignore.
func ParseResolution(text string) Resolution {
	s := Parse(text, LabelThought, LabelSeverity, LabelAction)
	r := Resolution{
		Thought:  thoughtOr(s, DefaultResolutionThought),
		Severity: domain.SeverityLow,
		Action:   domain.ActionIgnore,
		Missing:  missing(s, LabelThought, LabelSeverity, LabelAction),
	}
	if v, ok := s.Get(LabelSeverity); ok {
		r.RawSeverity = v
		if sev, ok := domain.ParseSeverity(v); ok {
			r.Severity, r.SeverityFound = sev, true
		}
	}
	if v, ok := s.Get(LabelAction); ok {
		r.RawAction = v
		if act, ok := domain.ParseAction(v); ok {
			r.Action, r.ActionFound = act, true
		}
	}
	return r
}

func thoughtOr(s Sections, placeholder string) string {
	if v, ok := s.Get(LabelThought); ok && v != "" {
		return v
	}
	return placeholder
}

func missing(s Sections, labels ...string) []string {
	var out []string
	for _, l := range labels {
		if !s.Has(l) {
			out = append(out, l)
		}
	}
	return out
}

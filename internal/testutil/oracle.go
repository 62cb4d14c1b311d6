package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Prompt markers identifying which stage a prompt belongs to.
const (
	AnalystMarker    = "Linguistic Analyst"
	AuditorMarker    = "Policy Auditor"
	ResolutionMarker = "Resolution Agent"
)

// StageOracle answers each stage prompt with a canned response chosen by
// the role named in the prompt. It is safe for concurrent use.
type StageOracle struct {
	Analysis   string
	Audit      string
	Resolution string
	// Err, when set, is returned for every call instead of a response.
	Err error

	mu      sync.Mutex
	prompts []string
}

// Generate implements ports.Oracle.
func (o *StageOracle) Generate(ctx context.Context, prompt string) (string, error) {
	o.mu.Lock()
	o.prompts = append(o.prompts, prompt)
	o.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if o.Err != nil {
		return "", o.Err
	}
	switch {
	case strings.Contains(prompt, AnalystMarker):
		return o.Analysis, nil
	case strings.Contains(prompt, AuditorMarker):
		return o.Audit, nil
	case strings.Contains(prompt, ResolutionMarker):
		return o.Resolution, nil
	}
	return "", errors.New("testutil: unrecognized prompt")
}

// Calls returns the number of prompts received.
func (o *StageOracle) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.prompts)
}

// Prompts returns a copy of the prompts received, in order.
func (o *StageOracle) Prompts() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.prompts...)
}

// HarmfulOracle returns a StageOracle that flags the text as gender-based
// harassment with a high severity.
func HarmfulOracle() *StageOracle {
	return &StageOracle{
		Analysis:   "Thought: hostile tone aimed at women\nAnalysis: demeaning gendered insult",
		Audit:      "Thought: matches the taxonomy\nViolations: Gender-based Harassment",
		Resolution: "Thought: targeted abuse\nSeverity: High\nAction: Shadowban",
	}
}

// SafeOracle returns a StageOracle that finds nothing wrong.
func SafeOracle() *StageOracle {
	return &StageOracle{
		Analysis:   "Thought: friendly\nAnalysis: positive remark",
		Audit:      "Thought: nothing to flag\nViolations: None",
		Resolution: "Thought: benign\nSeverity: Low\nAction: Ignore",
	}
}

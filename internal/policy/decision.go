// Package policy maps severities to mitigation actions and reconciles the
// oracle's proposed pair with the canonical table.
package policy

import (
	"fmt"

	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
)

// Strategy selects how Normalize resolves an inconsistent pair.
type Strategy string

const (
	// PreferSeverity keeps the severity and derives the action from the table.
	PreferSeverity Strategy = "prefer_severity"
	// PreferAction keeps the action and derives the severity from the table.
	PreferAction Strategy = "prefer_action"
	// FlagOnly keeps the pair unchanged and only reports the inconsistency.
	FlagOnly Strategy = "flag_only"
)

// ParseStrategy validates a configured strategy name. Empty selects PreferSeverity.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", PreferSeverity:
		return PreferSeverity, nil
	case PreferAction, FlagOnly:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown decision strategy %q", s)
}

var table = map[domain.Severity]domain.Action{
	domain.SeverityLow:      domain.ActionIgnore,
	domain.SeverityMedium:   domain.ActionWarn,
	domain.SeverityHigh:     domain.ActionShadowban,
	domain.SeverityCritical: domain.ActionImmediateReport,
}

var reverse = func() map[domain.Action]domain.Severity {
	m := make(map[domain.Action]domain.Severity, len(table))
	for sev, act := range table {
		m[act] = sev
	}
	return m
}()

// ActionFor returns the canonical action for sev. Unknown severities map to Ignore.
func ActionFor(sev domain.Severity) domain.Action {
	if act, ok := table[sev]; ok {
		return act
	}
	return domain.ActionIgnore
}

// SeverityFor returns the canonical severity for act. Unknown actions map to Low.
func SeverityFor(act domain.Action) domain.Severity {
	if sev, ok := reverse[act]; ok {
		return sev
	}
	return domain.SeverityLow
}

// Consistent reports whether (sev, act) is a row of the table.
func Consistent(sev domain.Severity, act domain.Action) bool {
	want, ok := table[sev]
	return ok && want == act
}

// Decision is the result of normalizing a (severity, action) pair.
type Decision struct {
	Severity domain.Severity
	Action   domain.Action
	// Consistent is false when the input pair disagreed with the table.
	Consistent bool
}

// Policy normalizes decisions with a fixed strategy. The zero value uses PreferSeverity.
type Policy struct {
	Strategy Strategy
}

// New returns a Policy using strategy.
func New(strategy Strategy) Policy {
	return Policy{Strategy: strategy}
}

// Normalize validates (sev, act) against the table and resolves a mismatch
// according to the policy's strategy.
func (p Policy) Normalize(sev domain.Severity, act domain.Action) Decision {
	if Consistent(sev, act) {
		return Decision{Severity: sev, Action: act, Consistent: true}
	}
	switch p.Strategy {
	case PreferAction:
		return Decision{Severity: SeverityFor(act), Action: act}
	case FlagOnly:
		return Decision{Severity: sev, Action: act}
	default:
		return Decision{Severity: sev, Action: ActionFor(sev)}
	}
}

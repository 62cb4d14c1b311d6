package domain

import (
	"strings"
	"time"
)

// Severity is the graded seriousness of a verdict.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Severities lists every severity level from least to most serious.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Action is the recommended mitigation for a verdict.
type Action string

const (
	ActionIgnore          Action = "Ignore"
	ActionWarn            Action = "Warn"
	ActionShadowban       Action = "Shadowban"
	ActionImmediateReport Action = "ImmediateReport"
)

// Verdict status values.
const (
	StatusHarmful = "harmful"
	StatusSafe    = "safe"
)

// Category sentinels used when no violation was found. The API reports
// CategoryNone while persisted records carry CategorySafe.
const (
	CategoryNone = "None"
	CategorySafe = "Safe"
)

// Well-known provenance tags.
const (
	SourceManual    = "Manual"
	SourceInstagram = "Instagram"
)

// ParseSeverity maps free text produced by the oracle onto a Severity.
// The level must be the first word of the value; case, surrounding markdown
// and trailing qualifiers ("Critical (explicit threat)") are ignored.
func ParseSeverity(s string) (Severity, bool) {
	words := leadingWords(s, 1)
	if len(words) == 0 {
		return "", false
	}
	switch words[0] {
	case "low":
		return SeverityLow, true
	case "medium", "moderate":
		return SeverityMedium, true
	case "high":
		return SeverityHigh, true
	case "critical":
		return SeverityCritical, true
	}
	return "", false
}

// ParseAction maps free text produced by the oracle onto an Action. Two word
// spellings ("Immediate Report", "Shadow ban") are accepted. "Monitor" is
// the low tier alternative to ignoring and maps to ActionIgnore.
func ParseAction(s string) (Action, bool) {
	words := leadingWords(s, 2)
	if len(words) == 0 {
		return "", false
	}
	if len(words) == 2 {
		switch words[0] + words[1] {
		case "immediatereport":
			return ActionImmediateReport, true
		case "shadowban":
			return ActionShadowban, true
		}
	}
	switch words[0] {
	case "ignore", "monitor", "none":
		return ActionIgnore, true
	case "warn", "warning":
		return ActionWarn, true
	case "shadowban":
		return ActionShadowban, true
	case "immediatereport", "report":
		return ActionImmediateReport, true
	}
	return "", false
}

// leadingWords returns up to n lowercased words from the first line of s.
// Words are runs of ASCII letters; everything else separates them.
func leadingWords(s string, n int) []string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r < 'a' || r > 'z'
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

// Input is the content submitted for classification.
type Input struct {
	Text string `json:"text"`
	// Source identifies the channel the text came from. It is stored with
	// the record but never consulted by the decision logic.
	Source string `json:"source,omitempty"`
}

// Verdict is the classification returned to callers.
type Verdict struct {
	Status          string           `json:"status"`
	Category        string           `json:"category"`
	Severity        Severity         `json:"severity"`
	ReasoningChain  []ReasoningEntry `json:"reasoning_chain"`
	SuggestedAction Action           `json:"suggested_action"`
}

// Record is the durable form of a finished run.
type Record struct {
	ID              string           `json:"id" db:"id"`
	Content         string           `json:"content" db:"content"`
	Category        string           `json:"category" db:"category"`
	Severity        Severity         `json:"severity" db:"severity"`
	ReasoningChain  []ReasoningEntry `json:"reasoning_chain" db:"-"`
	SuggestedAction Action           `json:"suggested_action" db:"suggested_action"`
	Source          string           `json:"source" db:"source"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}

// ItemSummary is the per-item result of a batch run.
type ItemSummary struct {
	Text     string   `json:"text"`
	Status   string   `json:"status,omitempty"`
	Category string   `json:"category,omitempty"`
	Severity Severity `json:"severity,omitempty"`
	Error    string   `json:"error,omitempty"`
}

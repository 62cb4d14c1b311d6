package pipeline

import (
	"strings"
	"text/template"

	"github.com/tjfontaine/harassment-moderator/internal/parser"
)

// Agent names recorded in the reasoning history.
const (
	AgentLinguisticAnalyst = "Linguistic Analyst"
	AgentPolicyAuditor     = "Policy Auditor"
	AgentResolution        = "Resolution Agent"
	AgentPersister         = "Database Manager"
)

var analystPrompt = template.Must(template.New("analyst").Parse(`You are a Linguistic Analyst. Analyze the following text for tone, intent, and subtle nuances (sarcasm, slang, passive-aggression).

Gender focus: pay special attention to gender-based bias, misogynistic undertones, objectification, or gender stereotypes.

Text: "{{.Text}}"

Output a brief analysis of how it was said and the contextual intent.
Start your response with "Thought: [Your internal reasoning]" followed by "Analysis: [Your final analysis]".
`))

var auditorPrompt = template.Must(template.New("auditor").Parse(`You are a Policy Auditor. Evaluate the text and the linguistic analysis against these community guidelines, with a strict focus on gender equality:
{{- range .Taxonomy}}
- {{.Name}}: {{.Description}}
{{- end}}

Text: "{{.Text}}"
Linguistic Analysis: "{{.Analysis}}"

List any policy violations as a comma separated list of the names above. If none, say "None".
Start with "Thought: [Reasoning]" followed by "Violations: [List]".
`))

var resolutionPrompt = template.Must(template.New("resolution").Parse(`You are a Resolution Agent. Based on the policy violations, assign a severity score (Low, Medium, High, Critical) and suggest a mitigation action (Ignore, Warn, Shadowban, Immediate Report).

Guidelines for Action:
- Low Severity -> Ignore or Monitor
- Medium Severity -> Warn
- High Severity -> Shadowban
- Critical Severity -> Immediate Report

Violations: {{.Violations}}

Format:
Thought: [Reasoning]
Severity: [Score]
Action: [Action]
`))

// Policy is one entry of the violation taxonomy shown to the auditor.
type Policy struct {
	Name        string
	Description string
}

// Taxonomy is the fixed list of policies the auditor checks against.
var Taxonomy = []Policy{
	{"Gender-based Harassment", "Unwanted sexual advances, misogyny, or gender-based insults."},
	{"Hate Speech", "Attacks based on gender or sexual orientation."},
	{"Cyberbullying", "Targeted harassment."},
	{"Incitement of Violence", "Threats against women or girls."},
}

type promptData struct {
	Text       string
	Analysis   string
	Violations string
	Taxonomy   []Policy
}

func render(t *template.Template, data promptData) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func formatViolations(v []string) string {
	if len(v) == 0 {
		return parser.NoneToken
	}
	return strings.Join(v, ", ")
}

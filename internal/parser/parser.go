// Package parser extracts labeled sections from free-form oracle output.
//
// The grammar is deliberately small. A label is a name followed by a colon,
// optionally wrapped in markdown emphasis or heading marks ("**Thought:**",
// "## Analysis:"). The value of a label is the text after it up to the next
// recognized label or the end of input, with surrounding whitespace removed.
// Only the first occurrence of each label counts. Labels are case-sensitive.
//
// Parsing never fails: callers fall back to their own defaults for labels
// that were not found.
package parser

import (
	"sort"
	"strings"
)

// Sections holds the values of the labels found in a text.
type Sections struct {
	raw    string
	values map[string]string
	order  []string
}

// Get returns the value for label and whether the label was present.
func (s Sections) Get(label string) (string, bool) {
	v, ok := s.values[label]
	return v, ok
}

// Has reports whether label was present.
func (s Sections) Has(label string) bool {
	_, ok := s.values[label]
	return ok
}

// Raw returns the input text with surrounding whitespace removed.
func (s Sections) Raw() string {
	return s.raw
}

// Labels returns the labels found, in the order they appear.
func (s Sections) Labels() []string {
	return append([]string(nil), s.order...)
}

type token struct {
	label      string
	start, end int
}

const (
	openingMarks = "*#_ \t"
	closingMarks = "* \t"
	// labelBoundary may precede a label.
	labelBoundary = "*#_ \t\r\n"
)

// Parse splits text into the sections named by labels.
func Parse(text string, labels ...string) Sections {
	var tokens []token
	for _, label := range labels {
		marker := label + ":"
		i := indexLabel(text, marker)
		if i < 0 {
			continue
		}
		tokens = append(tokens, token{
			label: label,
			start: extendLeft(text, i),
			end:   extendRight(text, i+len(marker)),
		})
	}
	sort.Slice(tokens, func(a, b int) bool { return tokens[a].start < tokens[b].start })

	s := Sections{
		raw:    strings.TrimSpace(text),
		values: make(map[string]string, len(tokens)),
	}
	for i, tok := range tokens {
		end := len(text)
		if i+1 < len(tokens) {
			end = tokens[i+1].start
		}
		value := ""
		if tok.end < end {
			value = strings.TrimSpace(text[tok.end:end])
		}
		s.values[tok.label] = value
		s.order = append(s.order, tok.label)
	}
	return s
}

// indexLabel returns the first index of marker that starts the text or
// follows whitespace or an emphasis mark, or -1.
func indexLabel(text, marker string) int {
	for off := 0; off < len(text); {
		i := strings.Index(text[off:], marker)
		if i < 0 {
			return -1
		}
		i += off
		if i == 0 || strings.IndexByte(labelBoundary, text[i-1]) >= 0 {
			return i
		}
		off = i + len(marker)
	}
	return -1
}

// extendLeft widens a label start over emphasis marks on the same line.
func extendLeft(text string, i int) int {
	j := i
	for j > 0 && strings.IndexByte(openingMarks, text[j-1]) >= 0 {
		j--
	}
	return j
}

// extendRight widens a label end over closing emphasis marks.
func extendRight(text string, i int) int {
	j := i
	for j < len(text) && strings.IndexByte(closingMarks, text[j]) >= 0 {
		j++
	}
	return j
}

// NoneToken is the literal an oracle uses for an empty list.
const NoneToken = "None"

// SplitList splits a comma separated list and trims each element.
// The exact literal "None" yields an empty, non-nil list. Empty elements are
// dropped.
func SplitList(s string) []string {
	s = strings.TrimSpace(s)
	out := []string{}
	if s == NoneToken || s == "" {
		return out
	}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

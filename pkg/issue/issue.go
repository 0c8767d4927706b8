// Package issue defines the diagnostics produced while analysing playlists and guides.
//
// Issues never mutate the parsed data they describe. They are a parallel
// stream keyed by source, line and channel/programme context.
package issue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity ranks an issue. Lower values are more severe.
type Severity int

// Severity values.
const (
	Error Severity = iota
	Warning
	Suggestion
	Note
)

var severityNames = [...]string{"error", "warning", "suggestion", "note"}

// String returns the lowercase severity name.
func (s Severity) String() string {
	if s < Error || s > Note {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity converts a severity name back to its value.
func ParseSeverity(s string) (Severity, error) {
	for i, name := range severityNames {
		if strings.EqualFold(s, name) {
			return Severity(i), nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

// MarshalJSON encodes the severity as its name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a severity name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	v, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Kind classifies where in the pipeline an issue originated.
type Kind string

// Kind values.
const (
	KindParse      Kind = "parse"      // malformed XML, fatal to the EPG branch
	KindStructural Kind = "structural" // malformed M3U entry, orphan URL
	KindSemantic   Kind = "semantic"   // missing/duplicate ids, overlaps, metadata
	KindFetch      Kind = "fetch"      // remote source unreachable
	KindFixSkip    Kind = "fix_skip"   // channel left unmodified by the fixer
)

// Source names the input an issue refers to.
type Source string

// Source values.
const (
	SourceM3U    Source = "m3u"
	SourceEPG    Source = "epg"
	SourceCompat Source = "compat"
)

// Issue is a single diagnostic.
type Issue struct {
	Severity Severity `json:"severity"`
	Kind     Kind     `json:"kind"`
	Source   Source   `json:"source"`
	// Code is a stable machine-readable identifier, e.g. "m3u.missing_tvg_id".
	Code    string `json:"code"`
	Message string `json:"message"`
	// Line is the 1-based line number in the source text, 0 when not applicable.
	Line int `json:"line,omitempty"`
	// Context is the channel name, channel id or programme title the issue is about.
	Context string `json:"context,omitempty"`
}

// String formats the issue for plain-text reports.
func (i Issue) String() string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(i.Severity.String()))
	if i.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", i.Line)
	}
	b.WriteString(": ")
	b.WriteString(i.Message)
	return b.String()
}

// New builds an issue with a formatted message.
func New(sev Severity, kind Kind, src Source, code, format string, args ...any) Issue {
	return Issue{
		Severity: sev,
		Kind:     kind,
		Source:   src,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	}
}

// At returns a copy of the issue with the line number set.
func (i Issue) At(line int) Issue {
	i.Line = line
	return i
}

// For returns a copy of the issue with the context set.
func (i Issue) For(context string) Issue {
	i.Context = context
	return i
}

// List is an ordered collection of issues.
type List []Issue

// MarshalJSON encodes an empty or nil list as [] so consumers always see
// the array.
func (l List) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Issue(l))
}

// Filter returns the issues with the given severity, preserving order.
func (l List) Filter(sev Severity) List {
	var out List
	for _, i := range l {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}

// WithCode returns the issues carrying the given code.
func (l List) WithCode(code string) List {
	var out List
	for _, i := range l {
		if i.Code == code {
			out = append(out, i)
		}
	}
	return out
}

// Count returns the number of issues with the given severity.
func (l List) Count(sev Severity) int {
	n := 0
	for _, i := range l {
		if i.Severity == sev {
			n++
		}
	}
	return n
}

// HasErrors reports whether any issue is an Error.
func (l List) HasErrors() bool {
	return l.Count(Error) > 0
}

// Counts summarises a list by severity.
type Counts struct {
	Errors      int `json:"errors"`
	Warnings    int `json:"warnings"`
	Suggestions int `json:"suggestions"`
	Notes       int `json:"notes"`
}

// Counts tallies the list by severity.
func (l List) Counts() Counts {
	return Counts{
		Errors:      l.Count(Error),
		Warnings:    l.Count(Warning),
		Suggestions: l.Count(Suggestion),
		Notes:       l.Count(Note),
	}
}

// Add accumulates another tally.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Errors:      c.Errors + o.Errors,
		Warnings:    c.Warnings + o.Warnings,
		Suggestions: c.Suggestions + o.Suggestions,
		Notes:       c.Notes + o.Notes,
	}
}

// Total returns the number of issues of any severity.
func (c Counts) Total() int {
	return c.Errors + c.Warnings + c.Suggestions + c.Notes
}

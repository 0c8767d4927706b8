// Package validate applies mode-scoped rules to parsed playlists and guides.
//
// Rules are declared in tables tagged with the minimum mode that enables
// them. Validation filters the table by mode and runs each rule as a pure
// function over the parsed entities.
package validate

import (
	"fmt"
	"strings"
)

// Mode selects how strict validation is. Advanced enables a strict superset
// of the Basic rules.
type Mode string

// Modes.
const (
	Basic    Mode = "basic"
	Advanced Mode = "advanced"
)

// ParseMode converts user input to a Mode. An empty string selects Basic.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Basic):
		return Basic, nil
	case string(Advanced):
		return Advanced, nil
	}
	return "", fmt.Errorf("unknown analysis mode %q (expected %q or %q)", s, Basic, Advanced)
}

func (m Mode) rank() int {
	if m == Advanced {
		return 1
	}
	return 0
}

// Enables reports whether a rule tagged with min runs under m.
func (m Mode) Enables(min Mode) bool {
	return m.rank() >= min.rank()
}

// String returns the mode name.
func (m Mode) String() string {
	if m == "" {
		return string(Basic)
	}
	return string(m)
}

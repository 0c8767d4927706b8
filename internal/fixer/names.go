package fixer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	doubleQuoted = regexp.MustCompile(`["“]([^"“”]+)["”]`)
	// Single quotes only count at word boundaries so apostrophes survive.
	singleQuoted = regexp.MustCompile(`(?:^|\s)['‘]([^'‘’]+)['’](?:\s|$)`)
	separators   = regexp.MustCompile(`\||\s-\s|:|/`)
)

// SynthesizeID derives a tvg-id from a channel name: lowercase letters and
// digits only. "Channel One" becomes "channelone".
func SynthesizeID(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ExtractName picks a concise channel name. Precedence: the auxiliary
// title attribute, then the innermost quoted segment of the display name,
// then the rightmost non-empty segment after splitting on separators.
func ExtractName(displayName, auxTitle string) string {
	if aux := strings.TrimSpace(auxTitle); aux != "" {
		return aux
	}

	name := strings.TrimSpace(displayName)
	if quoted, ok := innermostQuoted(name); ok {
		return quoted
	}

	parts := separators.Split(name, -1)
	for i := len(parts) - 1; i >= 0; i-- {
		if seg := strings.TrimSpace(parts[i]); seg != "" {
			return seg
		}
	}
	return ""
}

func innermostQuoted(s string) (string, bool) {
	found := false
	for {
		m := doubleQuoted.FindStringSubmatch(s)
		if m == nil {
			m = singleQuoted.FindStringSubmatch(s)
		}
		if m == nil {
			return s, found
		}
		inner := strings.TrimSpace(m[1])
		if inner == "" || inner == s {
			return s, found
		}
		s, found = inner, true
	}
}

// shorter reports whether candidate has fewer runes than name.
func shorter(candidate, name string) bool {
	return utf8.RuneCountInString(candidate) < utf8.RuneCountInString(name)
}

// attrSafe matches how attribute values are written back.
func attrSafe(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), `"`, `'`)
}

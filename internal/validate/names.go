package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxCleanNameLength is the longest tvg-name considered clean.
const MaxCleanNameLength = 50

var (
	numericName    = regexp.MustCompile(`^\d+$`)
	descriptionSep = regexp.MustCompile(`\s+--\s+|:\s+`)
	trailingParens = regexp.MustCompile(`\([^)]*\)\s*$`)
)

// UncleanName reports whether an existing tvg-name looks like it carries
// more than a channel name: purely numeric, overly long, embedded commas or
// quotes, a description separator, or a trailing parenthesised segment.
func UncleanName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	return numericName.MatchString(name) ||
		utf8.RuneCountInString(name) > MaxCleanNameLength ||
		strings.ContainsAny(name, `,"'`) ||
		descriptionSep.MatchString(name) ||
		trailingParens.MatchString(name)
}

// PreferredStream reports whether a stream URL points at HLS or MPEG-TS,
// the formats DVR clients handle best.
func PreferredStream(url string) bool {
	u := strings.ToLower(strings.TrimSpace(url))
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		if strings.HasSuffix(u[:i], ".m3u8") {
			return true
		}
	}
	return strings.HasSuffix(u, ".m3u8") || strings.Contains(u, ".ts") || strings.Contains(u, "/hls/")
}

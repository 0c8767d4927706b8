package xmltv

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrInvalidTime is returned for timestamps that do not follow the XMLTV
// "YYYYMMDDhhmmss [+-]hhmm" layout.
var ErrInvalidTime = errors.New("invalid XMLTV timestamp")

// timestampRegex matches 14 digits optionally followed by a signed 4-digit offset.
var timestampRegex = regexp.MustCompile(`^(\d{14})(?:\s*([+-]\d{4}))?$`)

// Timestamp is a parsed XMLTV time that keeps its original text.
type Timestamp struct {
	// Raw is the attribute value exactly as it appeared in the document.
	Raw string
	// Time is the instant, in the zone given by Offset (UTC when absent).
	Time time.Time
	// Offset is the "+hhmm"/"-hhmm" suffix, empty if not present.
	Offset string
}

// IsZero reports whether the timestamp was never set.
func (t Timestamp) IsZero() bool {
	return t.Raw == "" && t.Time.IsZero()
}

// String returns the original text.
func (t Timestamp) String() string {
	return t.Raw
}

// ParseTime parses an XMLTV timestamp: "20240101120000 +0000".
// A missing offset is interpreted as UTC.
func ParseTime(s string) (Timestamp, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Timestamp{}, fmt.Errorf("%w: empty time string", ErrInvalidTime)
	}

	m := timestampRegex.FindStringSubmatch(trimmed)
	if m == nil {
		return Timestamp{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	var (
		t   time.Time
		err error
	)
	if m[2] != "" {
		t, err = time.Parse("20060102150405 -0700", m[1]+" "+m[2])
	} else {
		t, err = time.Parse("20060102150405", m[1])
	}
	if err != nil {
		return Timestamp{}, fmt.Errorf("%w: %q: %v", ErrInvalidTime, s, err)
	}

	return Timestamp{Raw: s, Time: t, Offset: m[2]}, nil
}

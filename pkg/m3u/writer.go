package m3u

import (
	"fmt"
	"io"
	"strings"
)

// Writer provides streaming M3U playlist writing.
type Writer struct {
	w             io.Writer
	header        string
	headerWritten bool
}

// NewWriter creates a new M3U writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, header: HeaderPrefix}
}

// SetHeader overrides the header line, e.g. to keep an original
// `#EXTM3U url-tvg="..."` line. Empty values are ignored.
func (w *Writer) SetHeader(line string) {
	if line != "" {
		w.header = line
	}
}

// WriteHeader writes the M3U header.
// This is automatically called by WriteChannel if not already written.
func (w *Writer) WriteHeader() error {
	if w.headerWritten {
		return nil
	}
	_, err := fmt.Fprintln(w.w, w.header)
	if err != nil {
		return fmt.Errorf("writing M3U header: %w", err)
	}
	w.headerWritten = true
	return nil
}

// WriteChannel writes a single entry: its directive, any attached option
// lines, and its stream URL when it has one. Unmodified channels keep their
// original directive text byte for byte.
func (w *Writer) WriteChannel(ch *Channel) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}

	directive := ch.Directive
	if ch.modified || directive == "" {
		directive = FormatDirective(ch)
	}
	if _, err := fmt.Fprintln(w.w, directive); err != nil {
		return fmt.Errorf("writing EXTINF: %w", err)
	}

	for _, opt := range ch.Options {
		if _, err := fmt.Fprintln(w.w, opt); err != nil {
			return fmt.Errorf("writing option line: %w", err)
		}
	}

	if ch.StreamURL == "" {
		return nil
	}
	if _, err := fmt.Fprintln(w.w, ch.StreamURL); err != nil {
		return fmt.Errorf("writing URL: %w", err)
	}
	return nil
}

// FormatDirective rebuilds an #EXTINF line from the channel record,
// keeping attributes in their original order.
func FormatDirective(ch *Channel) string {
	duration := ch.Duration
	if duration == "" {
		duration = "-1" // Default to -1 for live streams
	}

	attrs := make([]string, 0, len(ch.Attributes))
	for _, a := range ch.Attributes {
		attrs = append(attrs, fmt.Sprintf(`%s="%s"`, a.Key, sanitizeValue(a.Value)))
	}

	if len(attrs) > 0 {
		return fmt.Sprintf("%s%s %s,%s", DirectivePrefix, duration, strings.Join(attrs, " "), ch.DisplayName)
	}
	return fmt.Sprintf("%s%s,%s", DirectivePrefix, duration, ch.DisplayName)
}

// sanitizeValue replaces double quotes, which cannot be escaped inside an
// M3U attribute value, with single quotes.
func sanitizeValue(s string) string {
	return strings.ReplaceAll(s, `"`, `'`)
}

// Write serialises a whole playlist: header first, then every channel in order.
func Write(w io.Writer, header string, channels []*Channel) error {
	mw := NewWriter(w)
	mw.SetHeader(header)
	if err := mw.WriteHeader(); err != nil {
		return err
	}
	for _, ch := range channels {
		if err := mw.WriteChannel(ch); err != nil {
			return err
		}
	}
	return nil
}

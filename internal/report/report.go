// Package report renders analysis results for terminals and scripts.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/nuken/m3u-epg-checker/internal/analyzer"
	"github.com/nuken/m3u-epg-checker/pkg/format"
	"github.com/nuken/m3u-epg-checker/pkg/issue"
)

// Format selects the output encoding.
type Format string

// Formats.
const (
	Text Format = "text"
	JSON Format = "json"
)

// NoIssues is printed for a section that has nothing to report.
const NoIssues = "No issues found."

// ParseFormat converts a flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", Text:
		return Text, nil
	case JSON:
		return JSON, nil
	}
	return "", fmt.Errorf("unknown report format %q (expected %q or %q)", s, Text, JSON)
}

// Options tune text output.
type Options struct {
	// Channels lists every playlist and guide channel.
	Channels bool
	// FixPath is where the fixed playlist was written, if anywhere.
	FixPath string
}

// Write renders res to w.
func Write(w io.Writer, res *analyzer.Result, f Format, opts Options) error {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case Text, "":
		return writeText(w, res, opts)
	}
	return fmt.Errorf("unknown report format %q", f)
}

// errWriter keeps the first write error so rendering code can stay linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func writeText(w io.Writer, res *analyzer.Result, opts Options) error {
	out := &errWriter{w: w}

	out.printf("M3U / EPG analysis (mode: %s)\n", res.Mode)

	out.printf("\n== Playlist ==\n")
	if res.M3U == nil {
		out.printf("  Not provided.\n")
	} else {
		m := res.M3U
		out.printf("  Source: %s, %s, %s (%s well-formed)\n", m.Origin, format.Bytes(int64(m.Bytes)),
			format.Count(m.ChannelCount(), "channel", "channels"), format.Number(int64(m.WellFormed)))
		writeIssues(out, m.Issues)
		if opts.Channels && len(m.Channels) > 0 {
			writePlaylistChannels(out, m.Channels)
		}
	}

	out.printf("\n== Guide ==\n")
	if res.EPG == nil {
		out.printf("  Not provided.\n")
	} else {
		e := res.EPG
		if e.Parsed {
			out.printf("  Source: %s, %s, %s, %s\n", e.Origin, format.Bytes(int64(e.Bytes)),
				format.Count(len(e.Channels), "channel", "channels"),
				format.Count(e.Programmes, "programme", "programmes"))
			if !e.FirstStart.IsZero() {
				out.printf("  Covers: %s to %s\n", e.FirstStart.Format("2006-01-02 15:04 MST"), e.LastStop.Format("2006-01-02 15:04 MST"))
			}
		} else {
			out.printf("  Source: %s (not analysed)\n", e.Origin)
		}
		writeIssues(out, e.Issues)
		if opts.Channels && len(e.Channels) > 0 {
			writeGuideChannels(out, e)
		}
	}

	out.printf("\n== Compatibility ==\n")
	if c := res.Coverage; c != nil && c.GuideAvailable {
		out.printf("  %s of %s playlist ids matched (%s)\n",
			format.Number(int64(c.Matched)), format.Number(int64(c.PlaylistIDs)), format.Ratio(c.Matched, c.PlaylistIDs))
	}
	writeIssues(out, res.Compatibility)

	if len(res.Advice) > 0 {
		out.printf("\n== Advice ==\n")
		for _, a := range res.Advice {
			out.printf("  - %s\n", a)
		}
	}

	if res.M3U != nil {
		out.printf("\n== Fixes ==\n")
		writeFixes(out, res, opts)
	}

	s := res.Summary
	out.printf("\nSummary: %s, %s, %s, %s\n",
		format.Count(s.Errors, "error", "errors"),
		format.Count(s.Warnings, "warning", "warnings"),
		format.Count(s.Suggestions, "suggestion", "suggestions"),
		format.Count(s.Notes, "note", "notes"))
	return out.err
}

func writeIssues(out *errWriter, issues issue.List) {
	if len(issues) == 0 {
		out.printf("  %s\n", NoIssues)
		return
	}
	for _, sev := range []issue.Severity{issue.Error, issue.Warning, issue.Suggestion, issue.Note} {
		for _, i := range issues.Filter(sev) {
			out.printf("  %s\n", i)
		}
	}
}

func writeFixes(out *errWriter, res *analyzer.Result, opts Options) {
	if res.FixCount == 0 && len(res.Skipped) == 0 {
		out.printf("  No fixes needed.\n")
		return
	}
	if res.FixCount > 0 {
		out.printf("  %s applied.\n", format.Count(res.FixCount, "fix", "fixes"))
		for _, f := range res.Fixes {
			desc := string(f.Action)
			if f.Channel != "" {
				desc += " for '" + f.Channel + "'"
			}
			if f.To != "" {
				desc += ": " + f.To
			}
			if f.Line > 0 {
				out.printf("  - line %d: %s\n", f.Line, desc)
			} else {
				out.printf("  - %s\n", desc)
			}
		}
	}
	for _, i := range res.Skipped {
		out.printf("  %s\n", i)
	}
	if opts.FixPath != "" {
		out.printf("  Fixed playlist written to %s\n", opts.FixPath)
	}
	if res.FixID != "" {
		out.printf("  Download id: %s\n", res.FixID)
	}
}

func writePlaylistChannels(out *errWriter, channels []analyzer.ChannelSummary) {
	if out.err != nil {
		return
	}
	out.printf("\n")
	tw := tabwriter.NewWriter(out.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  LINE\tNAME\tTVG-ID\tGROUP\tSTATUS")
	for _, ch := range channels {
		status := "ok"
		if ch.Malformed {
			status = "malformed"
		}
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\n", ch.Line, dash(ch.Name), dash(ch.TvgID), dash(ch.GroupTitle), status)
	}
	out.err = tw.Flush()
}

func writeGuideChannels(out *errWriter, e *analyzer.EPGReport) {
	if out.err != nil {
		return
	}
	out.printf("\n")
	tw := tabwriter.NewWriter(out.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tNAMES\tPROGRAMMES")
	for _, ch := range e.Channels {
		fmt.Fprintf(tw, "  %s\t%s\t%d\n", ch.ID, dash(strings.Join(ch.DisplayNames, ", ")), ch.Programmes)
	}
	out.err = tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

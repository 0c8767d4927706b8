// Package fixer produces a corrected copy of an M3U playlist.
//
// Generation is deterministic and idempotent: running it on its own output
// applies no further fixes. Channels that cannot be corrected safely are
// left as they were and reported as fix_skip notes.
package fixer

import (
	"bytes"

	"github.com/nuken/m3u-epg-checker/internal/validate"
	"github.com/nuken/m3u-epg-checker/pkg/issue"
	"github.com/nuken/m3u-epg-checker/pkg/m3u"
)

// DefaultGroup is assigned to channels without a group-title in advanced mode.
const DefaultGroup = "Unsorted"

// Action names a kind of fix.
type Action string

// Fix actions.
const (
	ActionAddTvgID      Action = "add_tvg_id"
	ActionSetTvgName    Action = "set_tvg_name"
	ActionAddGroupTitle Action = "add_group_title"
	ActionReorderURL    Action = "reorder_url"
	ActionDropDuplicate Action = "drop_duplicate_directive"
	ActionDropUnmatched Action = "drop_unmatched_line"
	ActionAddHeader     Action = "add_header"
)

// Skip codes.
const (
	CodeCannotDeriveID     = "fix.cannot_derive_tvg_id"
	CodeMalformedEntry     = "fix.malformed_entry"
	CodeMalformedDirective = "fix.malformed_directive"
)

// Fix describes one change made to the playlist.
type Fix struct {
	Action  Action `json:"action"`
	Line    int    `json:"line,omitempty"`
	Channel string `json:"channel,omitempty"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
}

// Result is the outcome of fix generation. Count is the number of fixes
// applied; Skipped lists channels that were left unmodified.
type Result struct {
	Text    string     `json:"-"`
	Count   int        `json:"count"`
	Fixes   []Fix      `json:"fixes,omitempty"`
	Skipped issue.List `json:"skipped,omitempty"`
}

type generator struct {
	mode   validate.Mode
	result Result
}

func (g *generator) record(f Fix) {
	g.result.Fixes = append(g.result.Fixes, f)
	g.result.Count++
}

func (g *generator) skip(ch *m3u.Channel, code, msg string, args ...any) {
	g.result.Skipped = append(g.result.Skipped,
		issue.New(issue.Note, issue.KindFixSkip, issue.SourceM3U, code, msg, args...).At(ch.Line).For(ch.Name()))
}

// Generate corrects a parsed playlist. The input playlist is not modified.
func Generate(pl *m3u.Playlist, mode validate.Mode) Result {
	g := &generator{mode: mode}

	header := pl.Header
	if header == "" {
		header = m3u.HeaderPrefix
		g.record(Fix{Action: ActionAddHeader, Line: 1, To: header})
	}

	for _, o := range pl.Orphans {
		g.record(Fix{Action: ActionDropUnmatched, Line: o.Line, From: o.Text})
	}

	out := make([]*m3u.Channel, 0, len(pl.Channels))
	for i, ch := range pl.Channels {
		if ch.Malformed {
			if i+1 < len(pl.Channels) && pl.Channels[i+1].Directive == ch.Directive {
				g.record(Fix{Action: ActionDropDuplicate, Line: ch.Line, Channel: ch.Name(), From: ch.Directive})
				continue
			}
			g.skip(ch, CodeMalformedEntry, "Channel '%s' (line %d) has no stream URL and was left unchanged.", ch.Name(), ch.Line)
			out = append(out, ch)
			continue
		}
		if ch.MalformedDirective {
			g.skip(ch, CodeMalformedDirective, "Channel on line %d has a malformed directive and was left unchanged.", ch.Line)
			out = append(out, ch)
			continue
		}
		out = append(out, g.fixChannel(ch))
	}

	var buf bytes.Buffer
	// Writes to a bytes.Buffer cannot fail.
	_ = m3u.Write(&buf, header, out)
	g.result.Text = buf.String()
	return g.result
}

// GenerateText parses text and corrects it.
func GenerateText(text string, mode validate.Mode) Result {
	return Generate(m3u.ParseString(text), mode)
}

func (g *generator) fixChannel(orig *m3u.Channel) *m3u.Channel {
	ch := orig.Clone()
	name := ch.Name()

	if ch.TvgID == "" {
		source := ch.DisplayName
		if source == "" {
			source = ch.TvgName
		}
		if id := SynthesizeID(source); id != "" {
			ch.SetAttr(m3u.AttrTvgID, id)
			g.record(Fix{Action: ActionAddTvgID, Line: ch.Line, Channel: name, To: id})
		} else {
			g.skip(ch, CodeCannotDeriveID, "Channel on line %d has no name to derive a 'tvg-id' from.", ch.Line)
		}
	}

	if ch.TvgName == "" || validate.UncleanName(ch.TvgName) {
		aux, _ := ch.Attr(m3u.AttrGuideTitle)
		candidate := attrSafe(ExtractName(ch.DisplayName, aux))
		if candidate != "" && shorter(candidate, ch.DisplayName) && candidate != ch.TvgName {
			from := ch.TvgName
			ch.SetAttr(m3u.AttrTvgName, candidate)
			g.record(Fix{Action: ActionSetTvgName, Line: ch.Line, Channel: name, From: from, To: candidate})
		}
	}

	if g.mode.Enables(validate.Advanced) && ch.GroupTitle == "" {
		ch.SetAttr(m3u.AttrGroupTitle, DefaultGroup)
		g.record(Fix{Action: ActionAddGroupTitle, Line: ch.Line, Channel: name, To: DefaultGroup})
	}

	if ch.Displaced {
		ch.Displaced = false
		g.record(Fix{Action: ActionReorderURL, Line: ch.URLLine, Channel: name, To: ch.StreamURL})
	}

	return ch
}

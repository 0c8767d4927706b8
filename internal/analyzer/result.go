package analyzer

import (
	"time"

	"github.com/nuken/m3u-epg-checker/internal/compat"
	"github.com/nuken/m3u-epg-checker/internal/fixer"
	"github.com/nuken/m3u-epg-checker/internal/validate"
	"github.com/nuken/m3u-epg-checker/pkg/issue"
	"github.com/nuken/m3u-epg-checker/pkg/m3u"
	"github.com/nuken/m3u-epg-checker/pkg/xmltv"
)

// Result is the outcome of one analysis run. It is built per request and
// never shared.
type Result struct {
	Mode validate.Mode `json:"mode"`

	// M3U is nil when no playlist was supplied.
	M3U *M3UReport `json:"m3u,omitempty"`
	// EPG is nil when no guide was supplied.
	EPG *EPGReport `json:"epg,omitempty"`

	Compatibility issue.List       `json:"compatibility"`
	Coverage      *compat.Coverage `json:"coverage,omitempty"`
	Advice        []string         `json:"advice"`

	// FixedM3U is the corrected playlist, empty when no fixes were applied.
	FixedM3U string      `json:"fixed_m3u,omitempty"`
	FixCount int         `json:"fix_count"`
	Fixes    []fixer.Fix `json:"fixes,omitempty"`
	Skipped  issue.List  `json:"fix_skipped,omitempty"`
	// FixID identifies the stored FixedM3U for download; empty when nothing
	// was stored.
	FixID string `json:"fix_id,omitempty"`

	// Passed is set when the run produced no issues at all.
	Passed bool `json:"clean"`

	Summary  issue.Counts  `json:"summary"`
	Duration time.Duration `json:"duration_ns"`
}

// Issues returns every issue in report order: playlist, guide, compatibility.
func (r *Result) Issues() issue.List {
	var all issue.List
	if r.M3U != nil {
		all = append(all, r.M3U.Issues...)
	}
	if r.EPG != nil {
		all = append(all, r.EPG.Issues...)
	}
	return append(all, r.Compatibility...)
}

// Clean reports whether the run produced no issues at all.
func (r *Result) Clean() bool {
	return r.Summary.Total() == 0
}

// ChannelSummary is the display view of a playlist entry.
type ChannelSummary struct {
	Line       int    `json:"line"`
	Name       string `json:"name"`
	TvgID      string `json:"tvg_id,omitempty"`
	TvgName    string `json:"tvg_name,omitempty"`
	GroupTitle string `json:"group_title,omitempty"`
	StreamURL  string `json:"stream_url,omitempty"`
	Malformed  bool   `json:"malformed,omitempty"`
}

// M3UReport holds the playlist findings.
type M3UReport struct {
	Origin     string           `json:"origin"`
	Bytes      int              `json:"bytes"`
	WellFormed int              `json:"well_formed"`
	Channels   []ChannelSummary `json:"channels"`
	Issues     issue.List       `json:"issues"`
}

// ChannelCount returns the number of directive entries.
func (r *M3UReport) ChannelCount() int { return len(r.Channels) }

// Errors returns the Error issues.
func (r *M3UReport) Errors() issue.List { return r.Issues.Filter(issue.Error) }

// Warnings returns the Warning issues.
func (r *M3UReport) Warnings() issue.List { return r.Issues.Filter(issue.Warning) }

// Suggestions returns the Suggestion issues.
func (r *M3UReport) Suggestions() issue.List { return r.Issues.Filter(issue.Suggestion) }

// Notes returns the Note issues.
func (r *M3UReport) Notes() issue.List { return r.Issues.Filter(issue.Note) }

// GuideChannelSummary is the display view of a guide channel.
type GuideChannelSummary struct {
	ID           string   `json:"id"`
	DisplayNames []string `json:"display_names"`
	Icon         string   `json:"icon,omitempty"`
	Programmes   int      `json:"programmes"`
}

// EPGReport holds the guide findings.
type EPGReport struct {
	Origin     string                `json:"origin"`
	Bytes      int                   `json:"bytes"`
	Parsed     bool                  `json:"parsed"`
	Channels   []GuideChannelSummary `json:"channels"`
	Programmes int                   `json:"programmes"`
	// FirstStart and LastStop bound the guide, zero when it has no programmes.
	FirstStart time.Time  `json:"first_start,omitzero"`
	LastStop   time.Time  `json:"last_stop,omitzero"`
	Issues     issue.List `json:"issues"`
}

// Errors returns the Error issues.
func (r *EPGReport) Errors() issue.List { return r.Issues.Filter(issue.Error) }

// Warnings returns the Warning issues.
func (r *EPGReport) Warnings() issue.List { return r.Issues.Filter(issue.Warning) }

// Suggestions returns the Suggestion issues.
func (r *EPGReport) Suggestions() issue.List { return r.Issues.Filter(issue.Suggestion) }

// Notes returns the Note issues.
func (r *EPGReport) Notes() issue.List { return r.Issues.Filter(issue.Note) }

func summarizePlaylist(pl *m3u.Playlist) []ChannelSummary {
	out := make([]ChannelSummary, 0, len(pl.Channels))
	for _, ch := range pl.Channels {
		out = append(out, ChannelSummary{
			Line:       ch.Line,
			Name:       ch.DisplayName,
			TvgID:      ch.TvgID,
			TvgName:    ch.TvgName,
			GroupTitle: ch.GroupTitle,
			StreamURL:  ch.StreamURL,
			Malformed:  !ch.WellFormed(),
		})
	}
	return out
}

func summarizeGuide(g *xmltv.Guide, r *EPGReport) {
	perChannel := make(map[string]int, len(g.Channels))
	for _, p := range g.Programmes {
		perChannel[p.Channel]++
		if p.Start.Time.IsZero() || p.Stop.Time.IsZero() || !p.Stop.Time.After(p.Start.Time) {
			continue
		}
		if r.FirstStart.IsZero() || p.Start.Time.Before(r.FirstStart) {
			r.FirstStart = p.Start.Time.UTC()
		}
		if p.Stop.Time.After(r.LastStop) {
			r.LastStop = p.Stop.Time.UTC()
		}
	}

	r.Programmes = len(g.Programmes)
	r.Channels = make([]GuideChannelSummary, 0, len(g.Channels))
	for _, id := range g.IDs() {
		ch := g.Channels[id]
		r.Channels = append(r.Channels, GuideChannelSummary{
			ID:           ch.ID,
			DisplayNames: ch.DisplayNames,
			Icon:         ch.Icon,
			Programmes:   perChannel[ch.ID],
		})
	}
}

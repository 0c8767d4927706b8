package validate

import (
	"github.com/nuken/m3u-epg-checker/pkg/format"
	"github.com/nuken/m3u-epg-checker/pkg/issue"
	"github.com/nuken/m3u-epg-checker/pkg/xmltv"
)

// Guide rule codes.
const (
	CodeDuplicateChannelID = "epg.duplicate_channel_id"
	CodeMissingDisplayName = "epg.missing_display_name"
	CodeInvalidInterval    = "epg.invalid_interval"
	CodeOverlap            = "epg.overlap"
	CodeUnknownChannel     = "epg.unknown_channel"
	CodeMissingTitle       = "epg.missing_title"
	CodeMissingDescription = "epg.missing_description"
	CodeMissingSeriesID    = "epg.missing_series_id"
	CodeMissingEpisodeNum  = "epg.missing_episode_num"
)

// Structural and temporal guide rules run in every mode. Missing programme
// metadata is listed per programme in Advanced mode and summarised per
// field in Basic mode.
var epgRules = []rule[*xmltv.Guide]{
	{code: CodeDuplicateChannelID, min: Basic, check: duplicateChannelIDs},
	{code: CodeMissingDisplayName, min: Basic, check: missingDisplayNames},
	{code: CodeInvalidInterval, min: Basic, check: invalidIntervals},
	{code: CodeOverlap, min: Basic, check: overlaps},
	{code: CodeUnknownChannel, min: Basic, check: unknownChannels},
	{code: "epg.metadata_summary", min: Basic, max: Basic, check: metadataSummary},
	{code: "epg.metadata", min: Advanced, check: metadataPerProgramme},
}

func epgIssue(sev issue.Severity, code, msg string, args ...any) issue.Issue {
	return issue.New(sev, issue.KindSemantic, issue.SourceEPG, code, msg, args...)
}

func duplicateChannelIDs(_ *Validator, g *xmltv.Guide) issue.List {
	seen := make(map[string]int)
	var out issue.List
	for _, ch := range g.ChannelList {
		seen[ch.ID]++
		if seen[ch.ID] == 2 {
			out = append(out, epgIssue(issue.Warning, CodeDuplicateChannelID,
				"Duplicate channel id '%s' (line %d); the later definition is used.", ch.ID, ch.Line).At(ch.Line).For(ch.ID))
		}
	}
	return out
}

func missingDisplayNames(_ *Validator, g *xmltv.Guide) issue.List {
	var out issue.List
	for _, ch := range g.ChannelList {
		if len(ch.DisplayNames) == 0 {
			out = append(out, epgIssue(issue.Warning, CodeMissingDisplayName,
				"Channel '%s' (line %d) has no 'display-name'.", ch.ID, ch.Line).At(ch.Line).For(ch.ID))
		}
	}
	return out
}

func invalidIntervals(_ *Validator, g *xmltv.Guide) issue.List {
	var out issue.List
	for _, p := range g.Programmes {
		if p.Stop.Time.After(p.Start.Time) {
			continue
		}
		out = append(out, epgIssue(issue.Error, CodeInvalidInterval,
			"Programme '%s' on channel '%s': start time (%s) is equal to or after stop time (%s).",
			p.Label(), p.Channel, p.Start.Raw, p.Stop.Raw).At(p.Line).For(p.Label()))
	}
	return out
}

func overlaps(_ *Validator, g *xmltv.Guide) issue.List {
	var out issue.List
	for _, o := range xmltv.FindOverlaps(g.Programmes) {
		out = append(out, epgIssue(issue.Warning, CodeOverlap,
			"Overlapping programmes on channel '%s': '%s' (%s - %s) overlaps with '%s' (%s - %s).",
			o.Channel,
			o.First.Label(), o.First.Start.Raw, o.First.Stop.Raw,
			o.Second.Label(), o.Second.Start.Raw, o.Second.Stop.Raw).At(o.Second.Line).For(o.Channel))
	}
	return out
}

// unknownChannels reports each unknown id once, with the number of
// programmes referring to it.
func unknownChannels(_ *Validator, g *xmltv.Guide) issue.List {
	counts := make(map[string]int)
	first := make(map[string]*xmltv.Programme)
	var order []string
	for _, p := range g.Programmes {
		if _, ok := g.Channels[p.Channel]; ok {
			continue
		}
		if counts[p.Channel] == 0 {
			order = append(order, p.Channel)
			first[p.Channel] = p
		}
		counts[p.Channel]++
	}

	var out issue.List
	for _, id := range order {
		out = append(out, epgIssue(issue.Warning, CodeUnknownChannel,
			"Found %s referring to unknown channel id '%s'.",
			format.Count(counts[id], "programme", "programmes"), id).At(first[id].Line).For(id))
	}
	return out
}

type metadataField struct {
	code   string
	name   string
	advice string
	// series marks fields that do not apply to movies.
	series  bool
	missing func(p *xmltv.Programme) bool
}

var metadataFields = []metadataField{
	{
		code: CodeMissingTitle, name: "title", advice: "essential for guide display",
		missing: func(p *xmltv.Programme) bool { return p.Title == "" },
	},
	{
		code: CodeMissingDescription, name: "desc", advice: "shown as the programme description",
		missing: func(p *xmltv.Programme) bool { return p.Description == "" },
	},
	{
		code: CodeMissingSeriesID, name: "series-id", advice: "used to group recordings of a show", series: true,
		missing: func(p *xmltv.Programme) bool { return p.SeriesID == "" },
	},
	{
		code: CodeMissingEpisodeNum, name: "episode-num", advice: "used to tell episodes apart", series: true,
		missing: func(p *xmltv.Programme) bool { return p.EpisodeNum == "" },
	},
}

func (f metadataField) appliesTo(p *xmltv.Programme) bool {
	return !f.series || !p.IsMovie()
}

func metadataPerProgramme(_ *Validator, g *xmltv.Guide) issue.List {
	var out issue.List
	for _, p := range g.Programmes {
		for _, f := range metadataFields {
			if !f.appliesTo(p) || !f.missing(p) {
				continue
			}
			out = append(out, epgIssue(issue.Suggestion, f.code,
				"Programme '%s' on channel '%s' (%s) is missing '%s'; %s.",
				p.Label(), p.Channel, p.Start.Raw, f.name, f.advice).At(p.Line).For(p.Label()))
		}
	}
	return out
}

func metadataSummary(_ *Validator, g *xmltv.Guide) issue.List {
	var out issue.List
	for _, f := range metadataFields {
		n := 0
		for _, p := range g.Programmes {
			if f.appliesTo(p) && f.missing(p) {
				n++
			}
		}
		if n == 0 {
			continue
		}
		out = append(out, epgIssue(issue.Suggestion, f.code,
			"Missing '%s' in %s of %s (%s); %s. Use advanced mode to list them.",
			f.name, format.Count(n, "programme", "programmes"), format.Number(int64(len(g.Programmes))),
			format.Ratio(n, len(g.Programmes)), f.advice))
	}
	return out
}

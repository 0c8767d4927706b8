package validate

import (
	"fmt"
	"strings"

	"github.com/nuken/m3u-epg-checker/pkg/format"
	"github.com/nuken/m3u-epg-checker/pkg/issue"
	"github.com/nuken/m3u-epg-checker/pkg/m3u"
)

// Playlist rule codes.
const (
	CodeMissingTvgID        = "m3u.missing_tvg_id"
	CodeMissingStreamURL    = "m3u.missing_stream_url"
	CodeTooManyChannels     = "m3u.too_many_channels"
	CodeDuplicateTvgID      = "m3u.duplicate_tvg_id"
	CodeDuplicateName       = "m3u.duplicate_display_name"
	CodeMissingName         = "m3u.missing_display_name"
	CodeMissingTvgName      = "m3u.missing_tvg_name"
	CodeDuplicateTvgName    = "m3u.duplicate_tvg_name"
	CodeUncleanTvgName      = "m3u.unclean_tvg_name"
	CodeMissingGroupTitle   = "m3u.missing_group_title"
	CodeDuplicateGroupTitle = "m3u.duplicate_group_title"
	CodeNonPreferredStream  = "m3u.non_preferred_stream"
)

var m3uRules = []rule[*m3u.Playlist]{
	{code: CodeMissingTvgID, min: Basic, check: perChannel(missingTvgID)},
	{code: CodeMissingStreamURL, min: Basic, check: perChannel(missingStreamURL)},
	{code: CodeMissingName, min: Basic, check: perChannel(missingDisplayName)},
	{code: CodeDuplicateTvgID, min: Basic, check: duplicateTvgIDs},
	{code: CodeDuplicateName, min: Basic, check: duplicateDisplayNames},
	{code: CodeTooManyChannels, min: Basic, check: tooManyChannels},

	{code: CodeMissingTvgName, min: Advanced, check: perChannel(missingTvgName)},
	{code: CodeDuplicateTvgName, min: Advanced, check: perChannel(duplicateKey(m3u.AttrTvgName, CodeDuplicateTvgName))},
	{code: CodeUncleanTvgName, min: Advanced, check: perChannel(uncleanTvgName)},
	{code: CodeMissingGroupTitle, min: Advanced, check: perChannel(missingGroupTitle)},
	{code: CodeDuplicateGroupTitle, min: Advanced, check: perChannel(duplicateKey(m3u.AttrGroupTitle, CodeDuplicateGroupTitle))},
	{code: CodeNonPreferredStream, min: Advanced, check: perChannel(nonPreferredStream)},
}

type channelCheck func(ch *m3u.Channel) (issue.Issue, bool)

func perChannel(fn channelCheck) func(*Validator, *m3u.Playlist) issue.List {
	return func(_ *Validator, pl *m3u.Playlist) issue.List {
		var out issue.List
		for _, ch := range pl.Channels {
			if i, ok := fn(ch); ok {
				out = append(out, i.At(ch.Line).For(ch.Name()))
			}
		}
		return out
	}
}

func semantic(sev issue.Severity, code, msg string, args ...any) issue.Issue {
	return issue.New(sev, issue.KindSemantic, issue.SourceM3U, code, msg, args...)
}

func missingTvgID(ch *m3u.Channel) (issue.Issue, bool) {
	if ch.TvgID != "" {
		return issue.Issue{}, false
	}
	return semantic(issue.Warning, CodeMissingTvgID,
		"Channel '%s' (line %d) is missing 'tvg-id'; guide data cannot be matched to it.", ch.Name(), ch.Line), true
}

func missingStreamURL(ch *m3u.Channel) (issue.Issue, bool) {
	if ch.StreamURL != "" {
		return issue.Issue{}, false
	}
	return semantic(issue.Error, CodeMissingStreamURL,
		"Channel '%s' (line %d) has no stream URL.", ch.Name(), ch.Line), true
}

func missingDisplayName(ch *m3u.Channel) (issue.Issue, bool) {
	// A directive without a comma is already reported by the parser.
	if ch.DisplayName != "" || ch.MalformedDirective {
		return issue.Issue{}, false
	}
	return semantic(issue.Error, CodeMissingName,
		"Channel on line %d has no display name after the comma.", ch.Line), true
}

func missingTvgName(ch *m3u.Channel) (issue.Issue, bool) {
	if ch.TvgName != "" {
		return issue.Issue{}, false
	}
	return semantic(issue.Warning, CodeMissingTvgName,
		"Channel '%s' (line %d) is missing 'tvg-name'; DVR clients often use it for display.", ch.Name(), ch.Line), true
}

func uncleanTvgName(ch *m3u.Channel) (issue.Issue, bool) {
	if !UncleanName(ch.TvgName) {
		return issue.Issue{}, false
	}
	return semantic(issue.Suggestion, CodeUncleanTvgName,
		"Channel '%s' (line %d) has an unclean 'tvg-name' ('%s'); use a short channel name without descriptions.",
		ch.Name(), ch.Line, ch.TvgName), true
}

func missingGroupTitle(ch *m3u.Channel) (issue.Issue, bool) {
	if ch.GroupTitle != "" {
		return issue.Issue{}, false
	}
	return semantic(issue.Suggestion, CodeMissingGroupTitle,
		"Channel '%s' (line %d) has no 'group-title'; grouping channels makes large playlists easier to browse.", ch.Name(), ch.Line), true
}

func duplicateKey(key, code string) channelCheck {
	return func(ch *m3u.Channel) (issue.Issue, bool) {
		for _, k := range ch.DuplicateKeys {
			if k == key {
				v, _ := ch.Attr(key)
				return semantic(issue.Warning, code,
					"Channel '%s' (line %d) declares '%s' more than once; only the last value ('%s') is used.",
					ch.Name(), ch.Line, key, v), true
			}
		}
		return issue.Issue{}, false
	}
}

func nonPreferredStream(ch *m3u.Channel) (issue.Issue, bool) {
	if ch.StreamURL == "" || PreferredStream(ch.StreamURL) {
		return issue.Issue{}, false
	}
	return semantic(issue.Suggestion, CodeNonPreferredStream,
		"Channel '%s' (line %d) stream is not HLS (.m3u8) or MPEG-TS (.ts); these formats are the most reliable for DVR recording.",
		ch.Name(), ch.Line), true
}

// duplicates groups channels by key and returns, in order of first
// appearance, the keys shared by more than one channel.
func duplicates(channels []*m3u.Channel, key func(*m3u.Channel) string) ([]string, map[string][]*m3u.Channel) {
	groups := make(map[string][]*m3u.Channel)
	var order []string
	for _, ch := range channels {
		k := key(ch)
		if k == "" {
			continue
		}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], ch)
	}

	var dups []string
	for _, k := range order {
		if len(groups[k]) > 1 {
			dups = append(dups, k)
		}
	}
	return dups, groups
}

func lineList(channels []*m3u.Channel) string {
	lines := make([]string, len(channels))
	for i, ch := range channels {
		lines[i] = fmt.Sprint(ch.Line)
	}
	return strings.Join(lines, ", ")
}

func duplicateTvgIDs(_ *Validator, pl *m3u.Playlist) issue.List {
	dups, groups := duplicates(pl.Channels, func(ch *m3u.Channel) string { return ch.TvgID })
	var out issue.List
	for _, id := range dups {
		chs := groups[id]
		out = append(out, semantic(issue.Warning, CodeDuplicateTvgID,
			"Duplicate 'tvg-id' '%s' is used by %s (lines %s); each channel should have a unique id.",
			id, format.Count(len(chs), "channel", "channels"), lineList(chs)).At(chs[1].Line).For(id))
	}
	return out
}

func duplicateDisplayNames(_ *Validator, pl *m3u.Playlist) issue.List {
	dups, groups := duplicates(pl.Channels, func(ch *m3u.Channel) string { return ch.DisplayName })
	var out issue.List
	for _, name := range dups {
		chs := groups[name]
		out = append(out, semantic(issue.Warning, CodeDuplicateName,
			"Duplicate channel name '%s' appears %d times (lines %s).", name, len(chs), lineList(chs)).At(chs[1].Line).For(name))
	}
	return out
}

func tooManyChannels(v *Validator, pl *m3u.Playlist) issue.List {
	n := len(pl.Channels)
	if n <= v.opts.ChannelLimit {
		return nil
	}
	return issue.List{semantic(issue.Warning, CodeTooManyChannels,
		"Playlist contains %s; DVR clients may slow down or truncate playlists with more than ~%s channels.",
		format.Count(n, "channel", "channels"), format.Number(int64(v.opts.ChannelLimit)))}
}

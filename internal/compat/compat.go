// Package compat cross-references playlist tvg-id values with guide channel ids.
package compat

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/nuken/m3u-epg-checker/pkg/issue"
	"github.com/nuken/m3u-epg-checker/pkg/m3u"
	"github.com/nuken/m3u-epg-checker/pkg/xmltv"
)

// Issue codes.
const (
	CodeUnmatchedInEPG = "compat.unmatched_in_epg"
	CodeUnmatchedInM3U = "compat.unmatched_in_m3u"
	CodePossibleMatch  = "compat.possible_match"
	CodeGracenoteIDs   = "compat.gracenote_ids"
)

// gracenoteID matches provider guide identifiers that some DVR clients
// resolve without an external guide.
var gracenoteID = regexp.MustCompile(`^(EP|MV|SH|GR)\d{8,}(\.[FS]\.EP)?$|^\d{8,12}$`)

// Advice is appended to every compatibility report regardless of content.
var Advice = []string{
	"For guide data to appear, each 'tvg-id' in the playlist must exactly match a channel 'id' in the EPG (case-sensitive).",
	"Missing or inconsistent 'tvg-id' attributes are the most common reason guide data does not show up.",
	"Duplicate 'tvg-id' values in a playlist can make channel import unpredictable.",
	"Include programme details such as <title>, <desc>, series-id (for TV shows) and episode-num in the EPG for the best recording experience.",
	"Overlapping programme times on one EPG channel lead to incorrect guide display or recording problems.",
	"HLS (.m3u8) and raw MPEG-TS (.ts) streams are the best supported formats; others may have limited or no support.",
	"Adding a 'group-title' to playlist channels organises them into categories.",
	"Guide data can appear without an EPG file when 'tvg-id' values are Gracenote station or programme ids; otherwise an EPG source is required.",
}

// IsGracenoteID reports whether id looks like a Gracenote identifier.
func IsGracenoteID(id string) bool {
	return gracenoteID.MatchString(strings.TrimSpace(id))
}

// Coverage summarises how the two id sets overlap.
type Coverage struct {
	PlaylistIDs int `json:"playlist_ids"`
	GuideIDs    int `json:"guide_ids"`
	Matched     int `json:"matched"`
	// GuideAvailable is false when no guide was supplied or it failed to parse.
	GuideAvailable bool `json:"guide_available"`
}

// Check compares the distinct non-empty tvg-id values of channels with the
// channel ids of guide. A nil guide means no EPG is available: the id
// comparison is skipped and the Gracenote heuristic applies instead.
// The returned advice is the same for every input.
func Check(channels []*m3u.Channel, guide *xmltv.Guide) (issue.List, []string) {
	advice := append([]string(nil), Advice...)

	ids, first := playlistIDs(channels)
	if guide == nil {
		return gracenoteNote(ids), advice
	}

	var out issue.List
	index := nameIndex(guide)
	for _, id := range ids {
		if _, ok := guide.Channels[id]; ok {
			continue
		}
		ch := first[id]
		out = append(out, issue.New(issue.Warning, issue.KindSemantic, issue.SourceCompat, CodeUnmatchedInEPG,
			"Playlist channel '%s' (tvg-id '%s') has no matching EPG channel; it will not show guide data.",
			ch.Name(), id).At(ch.Line).For(id))

		if epgID, ok := index[normalizeName(ch.DisplayName)]; ok {
			out = append(out, issue.New(issue.Suggestion, issue.KindSemantic, issue.SourceCompat, CodePossibleMatch,
				"EPG channel '%s' has a display name matching playlist channel '%s'; consider tvg-id=\"%s\".",
				epgID, ch.Name(), epgID).At(ch.Line).For(id))
		}
	}

	inPlaylist := make(map[string]bool, len(ids))
	for _, id := range ids {
		inPlaylist[id] = true
	}
	for _, id := range guide.IDs() {
		if inPlaylist[id] {
			continue
		}
		ch := guide.Channels[id]
		names := strings.Join(ch.DisplayNames, ", ")
		if names == "" {
			names = "N/A"
		}
		out = append(out, issue.New(issue.Note, issue.KindSemantic, issue.SourceCompat, CodeUnmatchedInM3U,
			"EPG channel '%s' (id '%s') is not referenced by any playlist tvg-id; its guide data will not be used.",
			names, id).For(id))
	}

	return out, advice
}

// Measure computes coverage figures for display.
func Measure(channels []*m3u.Channel, guide *xmltv.Guide) Coverage {
	ids, _ := playlistIDs(channels)
	c := Coverage{PlaylistIDs: len(ids)}
	if guide == nil {
		return c
	}
	c.GuideAvailable = true
	c.GuideIDs = len(guide.Channels)
	for _, id := range ids {
		if _, ok := guide.Channels[id]; ok {
			c.Matched++
		}
	}
	return c
}

// playlistIDs returns the distinct non-empty tvg-id values in order of first
// appearance and the first channel carrying each.
func playlistIDs(channels []*m3u.Channel) ([]string, map[string]*m3u.Channel) {
	first := make(map[string]*m3u.Channel)
	var ids []string
	for _, ch := range channels {
		if ch.TvgID == "" {
			continue
		}
		if _, ok := first[ch.TvgID]; !ok {
			first[ch.TvgID] = ch
			ids = append(ids, ch.TvgID)
		}
	}
	return ids, first
}

func gracenoteNote(ids []string) issue.List {
	n := 0
	for _, id := range ids {
		if IsGracenoteID(id) {
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return issue.List{issue.New(issue.Note, issue.KindSemantic, issue.SourceCompat, CodeGracenoteIDs,
		"No EPG was provided, but %d tvg-id value(s) look like Gracenote ids; DVR clients that support them may show guide data without an EPG file.", n)}
}

// nameIndex maps normalised display names to the first guide channel id
// carrying them.
func nameIndex(guide *xmltv.Guide) map[string]string {
	index := make(map[string]string)
	for _, id := range guide.IDs() {
		for _, name := range guide.Channels[id].DisplayNames {
			key := normalizeName(name)
			if key == "" {
				continue
			}
			if _, ok := index[key]; !ok {
				index[key] = id
			}
		}
	}
	return index
}

var qualityTokens = map[string]bool{"hd": true, "fhd": true, "uhd": true, "sd": true, "4k": true}

// normalizeName lowercases, splits on anything that is not a letter or digit
// and drops picture-quality tokens.
func normalizeName(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	kept := fields[:0]
	for _, f := range fields {
		if !qualityTokens[f] {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

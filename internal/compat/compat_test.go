package compat

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuken/m3u-epg-checker/pkg/issue"
	"github.com/nuken/m3u-epg-checker/pkg/m3u"
	"github.com/nuken/m3u-epg-checker/pkg/xmltv"
)

func contexts(list issue.List) []string {
	out := make([]string, 0, len(list))
	for _, i := range list {
		out = append(out, i.Context)
	}
	sort.Strings(out)
	return out
}

func TestCheck_UnmatchedSets(t *testing.T) {
	pl := m3u.ParseString(`#EXTM3U
#EXTINF:-1 tvg-id="A",Alpha
http://x/a.m3u8
#EXTINF:-1 tvg-id="B",Beta
http://x/b.m3u8
`)
	guide := xmltv.Parse(`<tv><channel id="B"><display-name>Beta</display-name></channel><channel id="C"><display-name>Gamma</display-name></channel></tv>`)

	issues, advice := Check(pl.Channels, guide)

	inEPG := issues.WithCode(CodeUnmatchedInEPG)
	assert.Equal(t, []string{"A"}, contexts(inEPG))
	for _, i := range inEPG {
		assert.Equal(t, issue.Warning, i.Severity)
		assert.Equal(t, issue.SourceCompat, i.Source)
	}

	inM3U := issues.WithCode(CodeUnmatchedInM3U)
	assert.Equal(t, []string{"C"}, contexts(inM3U))
	for _, i := range inM3U {
		assert.Equal(t, issue.Note, i.Severity)
	}
	assert.Contains(t, inM3U[0].Message, "Gamma")

	assert.Equal(t, Advice, advice)
}

func TestCheck_DuplicateIDsCountedOnce(t *testing.T) {
	pl := m3u.ParseString(`#EXTINF:-1 tvg-id="X",One
http://a
#EXTINF:-1 tvg-id="X",Two
http://b
#EXTINF:-1,NoID
http://c
`)
	guide := xmltv.Parse(`<tv><channel id="Y"/></tv>`)

	issues, _ := Check(pl.Channels, guide)
	inEPG := issues.WithCode(CodeUnmatchedInEPG)
	require.Len(t, inEPG, 1)
	assert.Contains(t, inEPG[0].Message, "'One'")
	assert.Equal(t, 1, inEPG[0].Line)

	cov := Measure(pl.Channels, guide)
	assert.Equal(t, Coverage{PlaylistIDs: 1, GuideIDs: 1, Matched: 0, GuideAvailable: true}, cov)
}

func TestCheck_MatchIsCaseSensitive(t *testing.T) {
	pl := m3u.ParseString("#EXTINF:-1 tvg-id=\"cnn.us\",CNN\nhttp://a\n")
	guide := xmltv.Parse(`<tv><channel id="CNN.us"><display-name>Something Else</display-name></channel></tv>`)

	issues, _ := Check(pl.Channels, guide)
	assert.Len(t, issues.WithCode(CodeUnmatchedInEPG), 1)
	assert.Len(t, issues.WithCode(CodeUnmatchedInM3U), 1)
}

func TestCheck_PossibleMatchByDisplayName(t *testing.T) {
	pl := m3u.ParseString("#EXTINF:-1 tvg-id=\"bbc1\",BBC One HD\nhttp://a\n")
	guide := xmltv.Parse(`<tv><channel id="BBCOne.uk"><display-name>BBC One</display-name></channel></tv>`)

	issues, _ := Check(pl.Channels, guide)
	hints := issues.WithCode(CodePossibleMatch)
	require.Len(t, hints, 1)
	assert.Equal(t, issue.Suggestion, hints[0].Severity)
	assert.Contains(t, hints[0].Message, `tvg-id="BBCOne.uk"`)
}

func TestCheck_NoGuideGracenote(t *testing.T) {
	pl := m3u.ParseString(`#EXTINF:-1 tvg-id="12345678",A
http://a
#EXTINF:-1 tvg-id="EP012345678901.F.EP",B
http://b
#EXTINF:-1 tvg-id="cnn.us",C
http://c
`)

	issues, advice := Check(pl.Channels, nil)
	require.Len(t, issues, 1)
	assert.Equal(t, CodeGracenoteIDs, issues[0].Code)
	assert.Equal(t, issue.Note, issues[0].Severity)
	assert.Contains(t, issues[0].Message, "2 tvg-id")
	assert.NotEmpty(t, advice)

	assert.Equal(t, Coverage{PlaylistIDs: 3}, Measure(pl.Channels, nil))
}

func TestCheck_NoGuideWithoutGracenote(t *testing.T) {
	pl := m3u.ParseString("#EXTINF:-1 tvg-id=\"cnn.us\",C\nhttp://c\n")
	issues, advice := Check(pl.Channels, nil)
	assert.Empty(t, issues)
	assert.Len(t, advice, len(Advice))
}

func TestCheck_AdviceIsACopy(t *testing.T) {
	_, advice := Check(nil, nil)
	advice[0] = "changed"
	assert.NotEqual(t, "changed", Advice[0])
}

func TestIsGracenoteID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"12345678", true},
		{"123456789012", true},
		{"1234567890123", false},
		{"1234567", false},
		{"EP01234567", true},
		{"SH012345678901", true},
		{"MV00123456.S.EP", true},
		{"GR12345678.F.EP", true},
		{"XX12345678", false},
		{"cnn.us", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsGracenoteID(tt.id), "IsGracenoteID(%q)", tt.id)
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "bbc one", normalizeName("BBC One HD"))
	assert.Equal(t, "bbc one", normalizeName("bbc-one"))
	assert.Equal(t, "", normalizeName("  HD "))
}

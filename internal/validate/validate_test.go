package validate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuken/m3u-epg-checker/pkg/issue"
	"github.com/nuken/m3u-epg-checker/pkg/m3u"
	"github.com/nuken/m3u-epg-checker/pkg/xmltv"
)

func codes(list issue.List) []string {
	out := make([]string, 0, len(list))
	for _, i := range list {
		out = append(out, i.Code)
	}
	return out
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Basic, m)

	m, err = ParseMode(" Advanced ")
	require.NoError(t, err)
	assert.Equal(t, Advanced, m)

	_, err = ParseMode("strict")
	assert.Error(t, err)
}

func TestMode_Enables(t *testing.T) {
	assert.True(t, Basic.Enables(Basic))
	assert.False(t, Basic.Enables(Advanced))
	assert.True(t, Advanced.Enables(Basic))
	assert.True(t, Advanced.Enables(Advanced))
}

func TestRuleCodes_AdvancedIsSuperset(t *testing.T) {
	basic := RuleCodes(Basic)
	advanced := RuleCodes(Advanced)

	for _, code := range basic {
		if code == "epg.metadata_summary" {
			continue
		}
		assert.Contains(t, advanced, code)
	}
	assert.Greater(t, len(advanced), len(basic)-1)
}

func TestM3U_MissingTvgIDExample(t *testing.T) {
	pl := m3u.ParseString("#EXTM3U\n#EXTINF:-1,Channel One\nhttp://x/1.m3u8")
	require.Len(t, pl.Channels, 1)
	require.Empty(t, pl.Issues)

	issues := M3U(pl, Basic)
	require.Len(t, issues, 1)
	assert.Equal(t, issue.Warning, issues[0].Severity)
	assert.Equal(t, CodeMissingTvgID, issues[0].Code)
	assert.Equal(t, 2, issues[0].Line)
	assert.Equal(t, "Channel One", issues[0].Context)
}

func TestM3U_MissingStreamURL(t *testing.T) {
	pl := m3u.ParseString("#EXTINF:-1 tvg-id=\"a\",A\n#EXTINF:-1 tvg-id=\"b\",B\nhttp://x/b.m3u8")

	issues := M3U(pl, Basic)
	errs := issues.WithCode(CodeMissingStreamURL)
	require.Len(t, errs, 1)
	assert.Equal(t, issue.Error, errs[0].Severity)
	assert.Equal(t, "A", errs[0].Context)
}

func TestM3U_MissingDisplayName(t *testing.T) {
	pl := m3u.ParseString("#EXTINF:-1 tvg-id=\"a\",\nhttp://a\n#EXTINF:-1 tvg-id=\"b\"\nhttp://b\n")

	issues := M3U(pl, Basic).WithCode(CodeMissingName)
	require.Len(t, issues, 1, "directive without a comma is left to the parser")
	assert.Equal(t, 1, issues[0].Line)
	assert.Equal(t, issue.Error, issues[0].Severity)
}

func TestM3U_Duplicates(t *testing.T) {
	pl := m3u.ParseString(strings.Join([]string{
		"#EXTM3U",
		`#EXTINF:-1 tvg-id="news",News`,
		"http://a",
		`#EXTINF:-1 tvg-id="news",News`,
		"http://b",
		`#EXTINF:-1 tvg-id="sport",Sport`,
		"http://c",
	}, "\n"))

	issues := M3U(pl, Basic)

	ids := issues.WithCode(CodeDuplicateTvgID)
	require.Len(t, ids, 1)
	assert.Equal(t, issue.Warning, ids[0].Severity)
	assert.Equal(t, 4, ids[0].Line)
	assert.Contains(t, ids[0].Message, "lines 2, 4")

	names := issues.WithCode(CodeDuplicateName)
	require.Len(t, names, 1)
	assert.Equal(t, "News", names[0].Context)
}

func TestM3U_ChannelLimit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&sb, "#EXTINF:-1 tvg-id=\"c%d\",C%d\nhttp://x/%d.m3u8\n", i, i, i)
	}
	pl := m3u.ParseString(sb.String())

	assert.Empty(t, M3U(pl, Basic).WithCode(CodeTooManyChannels), "default limit is far above 12")

	issues := New(Options{ChannelLimit: 10}).M3U(pl, Basic).WithCode(CodeTooManyChannels)
	require.Len(t, issues, 1)
	assert.Equal(t, issue.Warning, issues[0].Severity)
	assert.Contains(t, issues[0].Message, "12 channels")

	assert.Empty(t, New(Options{ChannelLimit: 12}).M3U(pl, Basic).WithCode(CodeTooManyChannels))
}

func TestM3U_DefaultChannelLimitMessage(t *testing.T) {
	var sb strings.Builder
	for i := 0; i <= DefaultChannelLimit; i++ {
		fmt.Fprintf(&sb, "#EXTINF:-1 tvg-id=\"c%d\",C%d\nhttp://x/%d.m3u8\n", i, i, i)
	}
	issues := M3U(m3u.ParseString(sb.String()), Basic).WithCode(CodeTooManyChannels)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "751 channels")
	assert.Contains(t, issues[0].Message, "~750")
}

func TestM3U_AdvancedRules(t *testing.T) {
	pl := m3u.ParseString(strings.Join([]string{
		"#EXTM3U",
		`#EXTINF:-1 tvg-id="a" tvg-name="A" group-title="News",A`,
		"http://x/a.m3u8",
		`#EXTINF:-1 tvg-id="b",B`,
		"http://x/b.mp4",
		`#EXTINF:-1 tvg-id="c" tvg-name="C" tvg-name="C2" group-title="X" group-title="Y",C`,
		"http://x/hls/c",
		`#EXTINF:-1 tvg-id="d" tvg-name="12345" group-title="Z",D`,
		"http://x/d.ts",
	}, "\n"))

	basic := M3U(pl, Basic)
	assert.Empty(t, basic, "all channels pass basic rules")

	issues := M3U(pl, Advanced)

	missingName := issues.WithCode(CodeMissingTvgName)
	require.Len(t, missingName, 1)
	assert.Equal(t, "B", missingName[0].Context)
	assert.Equal(t, issue.Warning, missingName[0].Severity)

	missingGroup := issues.WithCode(CodeMissingGroupTitle)
	require.Len(t, missingGroup, 1)
	assert.Equal(t, issue.Suggestion, missingGroup[0].Severity)

	assert.Len(t, issues.WithCode(CodeDuplicateTvgName), 1)
	assert.Len(t, issues.WithCode(CodeDuplicateGroupTitle), 1)

	streams := issues.WithCode(CodeNonPreferredStream)
	require.Len(t, streams, 1)
	assert.Equal(t, "B", streams[0].Context)
	assert.Equal(t, issue.Suggestion, streams[0].Severity)

	unclean := issues.WithCode(CodeUncleanTvgName)
	require.Len(t, unclean, 1)
	assert.Equal(t, "D", unclean[0].Context)
}

func TestM3U_DoesNotMutatePlaylist(t *testing.T) {
	pl := m3u.ParseString("#EXTINF:-1,A\nhttp://a\n")
	before := *pl.Channels[0]
	_ = M3U(pl, Advanced)
	assert.Equal(t, before, *pl.Channels[0])
}

func TestUncleanName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"", false},
		{"CNN", false},
		{"BBC One HD", false},
		{"115455", true},
		{strings.Repeat("x", 51), true},
		{"News, Weather", true},
		{`The "Best" Channel`, true},
		{"Kid's Channel", true},
		{"Movies -- all day", true},
		{"Sports: Live Football", true},
		{"ESPN (East)", true},
		{"ESPN (East) 2", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UncleanName(tt.name), "UncleanName(%q)", tt.name)
	}
}

func TestPreferredStream(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"http://x/live.m3u8", true},
		{"http://x/live.M3U8?token=1", true},
		{"http://x/stream.ts", true},
		{"http://x/hls/stream", true},
		{"http://x/movie.mp4", false},
		{"rtmp://x/live", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PreferredStream(tt.url), "PreferredStream(%q)", tt.url)
	}
}

const guideFixture = `<tv>
<channel id="a"><display-name>A</display-name></channel>
<channel id="b"></channel>
<channel id="a"><display-name>A again</display-name></channel>
<programme start="20240101000000 +0000" stop="20240101010000 +0000" channel="a" series-id="SH1">
  <title>One</title><desc>d</desc><episode-num>1</episode-num>
</programme>
<programme start="20240101003000 +0000" stop="20240101013000 +0000" channel="a">
  <title>Two</title><desc>d</desc>
</programme>
<programme start="20240101013000 +0000" stop="20240101013000 +0000" channel="a">
  <title>Zero</title><desc>d</desc><episode-num>1</episode-num><series-id>SH2</series-id>
</programme>
<programme start="20240101000000 +0000" stop="20240101020000 +0000" channel="ghost">
  <title>Film</title><category>Movie</category>
</programme>
<programme start="20240101020000 +0000" stop="20240101030000 +0000" channel="ghost">
  <desc>untitled</desc><category>movie</category>
</programme>
</tv>`

func TestEPG_StructuralRules(t *testing.T) {
	g := xmltv.Parse(guideFixture)
	require.Empty(t, g.Issues)

	for _, mode := range []Mode{Basic, Advanced} {
		issues := EPG(g, mode)

		dup := issues.WithCode(CodeDuplicateChannelID)
		require.Len(t, dup, 1, mode)
		assert.Equal(t, issue.Warning, dup[0].Severity)
		assert.Equal(t, 4, dup[0].Line)

		noName := issues.WithCode(CodeMissingDisplayName)
		require.Len(t, noName, 1, mode)
		assert.Equal(t, "b", noName[0].Context)

		invalid := issues.WithCode(CodeInvalidInterval)
		require.Len(t, invalid, 1, mode)
		assert.Equal(t, issue.Error, invalid[0].Severity)
		assert.Equal(t, "Zero", invalid[0].Context)

		overlap := issues.WithCode(CodeOverlap)
		require.Len(t, overlap, 1, mode)
		assert.Equal(t, issue.Warning, overlap[0].Severity)
		assert.Contains(t, overlap[0].Message, "'One' (20240101000000 +0000 - 20240101010000 +0000)")
		assert.Contains(t, overlap[0].Message, "'Two' (20240101003000 +0000 - 20240101013000 +0000)")

		unknown := issues.WithCode(CodeUnknownChannel)
		require.Len(t, unknown, 1, mode)
		assert.Contains(t, unknown[0].Message, "2 programmes")
		assert.Equal(t, "ghost", unknown[0].Context)
	}
}

func TestEPG_MetadataAdvancedPerProgramme(t *testing.T) {
	g := xmltv.Parse(guideFixture)
	issues := EPG(g, Advanced)

	// "Two" lacks series-id and episode-num; the movies lack only what is
	// not series-specific.
	series := issues.WithCode(CodeMissingSeriesID)
	require.Len(t, series, 1)
	assert.Equal(t, "Two", series[0].Context)
	assert.Equal(t, issue.Suggestion, series[0].Severity)

	episodes := issues.WithCode(CodeMissingEpisodeNum)
	require.Len(t, episodes, 1)

	assert.Len(t, issues.WithCode(CodeMissingDescription), 1)
	titles := issues.WithCode(CodeMissingTitle)
	require.Len(t, titles, 1)
	assert.Equal(t, "Unknown Title", titles[0].Context)
}

func TestEPG_MetadataBasicSummarised(t *testing.T) {
	g := xmltv.Parse(guideFixture)
	issues := EPG(g, Basic)

	series := issues.WithCode(CodeMissingSeriesID)
	require.Len(t, series, 1)
	assert.Contains(t, series[0].Message, "1 programme of 5")
	assert.Zero(t, series[0].Line)
}

func TestEPG_CleanGuide(t *testing.T) {
	g := xmltv.Parse(`<tv>
<channel id="a"><display-name>A</display-name></channel>
<programme start="20240101000000 +0000" stop="20240101010000 +0000" channel="a" series-id="S"><title>x</title><desc>y</desc><episode-num>1</episode-num></programme>
<programme start="20240101010000 +0000" stop="20240101020000 +0000" channel="a" series-id="S"><title>x</title><desc>y</desc><episode-num>2</episode-num></programme>
</tv>`)
	assert.Empty(t, EPG(g, Advanced))
	assert.Empty(t, EPG(g, Basic))
}

func TestNilInputs(t *testing.T) {
	assert.Nil(t, M3U(nil, Advanced))
	assert.Nil(t, EPG(nil, Advanced))
}

func TestEPG_StackedProgrammesBoundOverlapWarnings(t *testing.T) {
	const n = 3000
	var b strings.Builder
	b.WriteString(`<tv><channel id="c"><display-name>C</display-name></channel>`)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<programme channel="c" start="20240101000000 +0000" stop="20240102000000 +0000"><title>P%d</title></programme>`, i)
	}
	b.WriteString(`</tv>`)

	g := xmltv.Parse(b.String())
	require.Len(t, g.Programmes, n)

	for _, mode := range []Mode{Basic, Advanced} {
		overlap := EPG(g, mode).WithCode(CodeOverlap)
		assert.Len(t, overlap, n-1, mode)
	}
}

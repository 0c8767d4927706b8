package issue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverity_String(t *testing.T) {
	assert.Equal(t, "error", Error.String())
	assert.Equal(t, "note", Note.String())
	assert.Equal(t, "severity(9)", Severity(9).String())
}

func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity("Warning")
	require.NoError(t, err)
	assert.Equal(t, Warning, sev)

	_, err = ParseSeverity("fatal")
	assert.Error(t, err)
}

func TestIssue_JSON(t *testing.T) {
	in := New(Suggestion, KindSemantic, SourceM3U, "m3u.missing_group_title", "Channel '%s' has no group", "One").
		At(3).For("One")

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"severity": "suggestion",
		"kind": "semantic",
		"source": "m3u",
		"code": "m3u.missing_group_title",
		"message": "Channel 'One' has no group",
		"line": 3,
		"context": "One"
	}`, string(data))

	var out Issue
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	assert.Error(t, json.Unmarshal([]byte(`{"severity":"fatal"}`), &out))
}

func TestIssue_String(t *testing.T) {
	i := New(Error, KindStructural, SourceM3U, "m3u.orphan_url", "URL without #EXTINF")
	assert.Equal(t, "ERROR: URL without #EXTINF", i.String())
	assert.Equal(t, "ERROR (line 7): URL without #EXTINF", i.At(7).String())
	assert.Zero(t, i.Line, "At returns a copy")
}

func TestList(t *testing.T) {
	l := List{
		New(Error, KindParse, SourceEPG, "epg.parse_error", "bad"),
		New(Warning, KindSemantic, SourceM3U, "m3u.missing_tvg_id", "a"),
		New(Warning, KindSemantic, SourceM3U, "m3u.missing_tvg_id", "b"),
		New(Note, KindSemantic, SourceCompat, "analyzer.no_epg", "n"),
	}

	assert.Len(t, l.Filter(Warning), 2)
	assert.Empty(t, l.Filter(Suggestion))
	assert.Len(t, l.WithCode("m3u.missing_tvg_id"), 2)
	assert.True(t, l.HasErrors())
	assert.False(t, l[1:].HasErrors())

	c := l.Counts()
	assert.Equal(t, Counts{Errors: 1, Warnings: 2, Notes: 1}, c)
	assert.Equal(t, 4, c.Total())
	assert.Equal(t, Counts{Errors: 2, Warnings: 4, Notes: 2}, c.Add(c))
}

func TestList_MarshalEmpty(t *testing.T) {
	data, err := json.Marshal(struct {
		Issues List `json:"issues"`
	}{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"issues":[]}`, string(data))

	data, err = json.Marshal(List{New(Note, KindSemantic, SourceCompat, "x", "hi")})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hi"`)
}

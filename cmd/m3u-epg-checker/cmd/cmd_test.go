package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuken/m3u-epg-checker/internal/analyzer"
)

const playlist = "#EXTM3U\n#EXTINF:-1,Channel One\nhttp://x/1.m3u8\n"

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func writePlaylist(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(playlist), 0o600))
	return path
}

func TestCheck_WritesReportAndFix(t *testing.T) {
	in := writePlaylist(t, "playlist.m3u")
	fixOut := filepath.Join(t.TempDir(), "fixed.m3u")

	out, err := run(t, "check", "--m3u", in, "--epg", "", "--mode", "basic",
		"--format", "text", "--fix-out", fixOut, "--strict=false")
	require.NoError(t, err)

	assert.Contains(t, out, "== Playlist ==")
	assert.Contains(t, out, "Fixed playlist written to "+fixOut)

	fixed, err := os.ReadFile(fixOut)
	require.NoError(t, err)
	assert.Contains(t, string(fixed), `tvg-id="channelone"`)
}

func TestCheck_StrictFailsOnWarnings(t *testing.T) {
	in := writePlaylist(t, "playlist.m3u")

	_, err := run(t, "check", "--m3u", in, "--epg", "", "--mode", "basic",
		"--format", "text", "--fix-out", "", "--strict")
	assert.ErrorIs(t, err, errFindings)
}

func TestCheck_JSON(t *testing.T) {
	in := writePlaylist(t, "playlist.m3u8")

	out, err := run(t, "check", "--m3u", in, "--epg", "", "--mode", "advanced",
		"--format", "json", "--fix-out", "", "--strict=false")
	require.NoError(t, err)

	var res analyzer.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotNil(t, res.M3U)
	assert.Equal(t, 1, res.M3U.ChannelCount())
	assert.Empty(t, res.FixedM3U)
}

func TestCheck_RequiresInput(t *testing.T) {
	_, err := run(t, "check", "--m3u", "", "--epg", "", "--strict=false")
	assert.ErrorContains(t, err, "at least one of --m3u or --epg")
}

func TestCheck_RejectsBadFlags(t *testing.T) {
	in := writePlaylist(t, "playlist.m3u")

	_, err := run(t, "check", "--m3u", in, "--epg", "", "--mode", "expert", "--format", "text")
	assert.ErrorContains(t, err, "unknown analysis mode")

	_, err = run(t, "check", "--m3u", in, "--epg", "", "--mode", "basic", "--format", "xml")
	assert.ErrorContains(t, err, "unknown report format")
}

func TestSourceFromArg(t *testing.T) {
	src, err := sourceFromArg("", nil)
	require.NoError(t, err)
	assert.False(t, src.Supplied())

	src, err = sourceFromArg("https://example.com/list.m3u", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/list.m3u", src.URL)

	src, err = sourceFromArg("-", strings.NewReader(playlist))
	require.NoError(t, err)
	assert.Equal(t, playlist, src.Text)

	path := writePlaylist(t, "my list.m3u")
	src, err = sourceFromArg(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "my list.m3u", src.Filename)
	assert.Equal(t, []byte(playlist), src.File)

	_, err = sourceFromArg(filepath.Join(t.TempDir(), "missing.m3u"), nil)
	assert.Error(t, err)
}

func TestConfigDump(t *testing.T) {
	out, err := run(t, "config", "dump")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "# m3u-epg-checker configuration"))
	assert.Contains(t, out, "server:")
	assert.Contains(t, out, "purge_schedule:")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version", "--json=false")
	require.NoError(t, err)
	assert.Contains(t, out, "m3u-epg-checker version")
}

func TestMigrate(t *testing.T) {
	t.Setenv("M3UEPG_DATABASE_DRIVER", "sqlite")
	t.Setenv("M3UEPG_DATABASE_DSN", filepath.Join(t.TempDir(), "checker.db"))

	out, err := run(t, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "001")
	assert.Contains(t, out, "pending")

	out, err = run(t, "migrate", "up")
	require.NoError(t, err)
	assert.NotContains(t, out, "pending")

	out, err = run(t, "migrate", "down")
	require.NoError(t, err)
	assert.Contains(t, out, "pending")
}

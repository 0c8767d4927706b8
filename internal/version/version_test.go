package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	assert.NotEmpty(t, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestString(t *testing.T) {
	s := String()
	assert.True(t, strings.HasPrefix(s, ApplicationName+" version "))
}

func TestShort(t *testing.T) {
	original, originalCommit := Version, Commit
	defer func() { Version, Commit = original, originalCommit }()

	Version = "1.4.0"
	Commit = "0123456789abcdef"
	assert.Equal(t, "1.4.0 (01234567)", Short())
}

func TestShortCommit(t *testing.T) {
	assert.Empty(t, Info{Commit: "unknown"}.ShortCommit())
	assert.Empty(t, Info{Commit: "abc"}.ShortCommit())
	assert.Equal(t, "deadbeef", Info{Commit: "deadbeefcafe"}.ShortCommit())
}

func TestUserAgent(t *testing.T) {
	original := Version
	defer func() { Version = original }()

	Version = "2.0.0"
	assert.Equal(t, "m3u-epg-checker/2.0.0", UserAgent())
}

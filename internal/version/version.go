// Package version reports build information for m3u-epg-checker.
//
// Version, Commit and Date are injected at build time:
//
//	go build -ldflags "-X github.com/nuken/m3u-epg-checker/internal/version.Version=x.y.z \
//	                   -X github.com/nuken/m3u-epg-checker/internal/version.Commit=$(git rev-parse HEAD) \
//	                   -X github.com/nuken/m3u-epg-checker/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Builds without ldflags fall back to the VCS stamp recorded by the Go
// toolchain.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build-time variables injected via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// ApplicationName is the binary and User-Agent product name.
const ApplicationName = "m3u-epg-checker"

// Info contains structured version information.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Date      string `json:"date" yaml:"date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// GetInfo returns the build information, filling gaps from the embedded
// VCS stamp when available.
func GetInfo() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "unknown" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.Date == "unknown" {
					info.Date = s.Value
				}
			}
		}
	}
	return info
}

// ShortCommit returns the first eight characters of the commit, or "".
func (i Info) ShortCommit() string {
	if i.Commit == "unknown" || len(i.Commit) < 8 {
		return ""
	}
	return i.Commit[:8]
}

// String returns a human-readable version line.
func String() string {
	info := GetInfo()
	if c := info.ShortCommit(); c != "" {
		return fmt.Sprintf("%s version %s (commit: %s, built: %s, %s, %s)",
			ApplicationName, info.Version, c, info.Date, info.GoVersion, info.Platform)
	}
	return fmt.Sprintf("%s version %s (%s, %s)", ApplicationName, info.Version, info.GoVersion, info.Platform)
}

// Short returns the version for cobra's --version flag.
func Short() string {
	if c := GetInfo().ShortCommit(); c != "" {
		return fmt.Sprintf("%s (%s)", Version, c)
	}
	return Version
}

// UserAgent returns the User-Agent sent when fetching remote sources.
func UserAgent() string {
	return ApplicationName + "/" + Version
}

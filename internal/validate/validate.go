package validate

import (
	"github.com/nuken/m3u-epg-checker/pkg/issue"
	"github.com/nuken/m3u-epg-checker/pkg/m3u"
	"github.com/nuken/m3u-epg-checker/pkg/xmltv"
)

// DefaultChannelLimit is the playlist size above which DVR clients are
// known to struggle.
const DefaultChannelLimit = 750

// Options tune thresholds used by the rules.
type Options struct {
	// ChannelLimit is the channel count above which a Warning is raised.
	ChannelLimit int
}

// DefaultOptions returns the stock thresholds.
func DefaultOptions() Options {
	return Options{ChannelLimit: DefaultChannelLimit}
}

// Validator runs the rule tables. It holds no state between calls and is
// safe for concurrent use.
type Validator struct {
	opts Options
}

// New creates a validator. Zero thresholds fall back to defaults.
func New(opts Options) *Validator {
	if opts.ChannelLimit <= 0 {
		opts.ChannelLimit = DefaultChannelLimit
	}
	return &Validator{opts: opts}
}

// rule is one entry of a rule table. A rule runs when the requested mode
// enables min and, if max is set, max enables the requested mode.
type rule[T any] struct {
	code  string
	min   Mode
	max   Mode
	check func(v *Validator, in T) issue.List
}

func (r rule[T]) enabled(mode Mode) bool {
	if !mode.Enables(r.min) {
		return false
	}
	return r.max == "" || r.max.Enables(mode)
}

func run[T any](v *Validator, rules []rule[T], in T, mode Mode) issue.List {
	var out issue.List
	for _, r := range rules {
		if r.enabled(mode) {
			out = append(out, r.check(v, in)...)
		}
	}
	return out
}

// M3U applies the playlist rules enabled by mode.
func (v *Validator) M3U(pl *m3u.Playlist, mode Mode) issue.List {
	if pl == nil {
		return nil
	}
	return run(v, m3uRules, pl, mode)
}

// EPG applies the guide rules enabled by mode.
func (v *Validator) EPG(g *xmltv.Guide, mode Mode) issue.List {
	if g == nil {
		return nil
	}
	return run(v, epgRules, g, mode)
}

// M3U validates a playlist with default thresholds.
func M3U(pl *m3u.Playlist, mode Mode) issue.List {
	return New(DefaultOptions()).M3U(pl, mode)
}

// EPG validates a guide with default thresholds.
func EPG(g *xmltv.Guide, mode Mode) issue.List {
	return New(DefaultOptions()).EPG(g, mode)
}

// RuleCodes lists the codes of the rules enabled by mode, in table order.
func RuleCodes(mode Mode) []string {
	var codes []string
	for _, r := range m3uRules {
		if r.enabled(mode) {
			codes = append(codes, r.code)
		}
	}
	for _, r := range epgRules {
		if r.enabled(mode) {
			codes = append(codes, r.code)
		}
	}
	return codes
}

// Package analyzer runs the full check pipeline for one request: resolve the
// playlist and guide inputs, parse and validate each, cross-reference them
// and optionally produce and store a corrected playlist.
//
// Every failure is reported as an issue in the Result. Analyze never returns
// an error and never fails the whole run because one source is unusable.
package analyzer

import (
	"context"
	"log/slog"
	"time"

	"github.com/nuken/m3u-epg-checker/internal/compat"
	"github.com/nuken/m3u-epg-checker/internal/fixer"
	"github.com/nuken/m3u-epg-checker/internal/metrics"
	"github.com/nuken/m3u-epg-checker/internal/observability"
	"github.com/nuken/m3u-epg-checker/internal/validate"
	"github.com/nuken/m3u-epg-checker/pkg/format"
	"github.com/nuken/m3u-epg-checker/pkg/issue"
	"github.com/nuken/m3u-epg-checker/pkg/m3u"
	"github.com/nuken/m3u-epg-checker/pkg/xmltv"
)

// Fetcher retrieves remote source content.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// FixWriter persists a fixed playlist and returns its download id.
type FixWriter interface {
	Put(ctx context.Context, data []byte) (string, error)
}

// Request describes one analysis run.
type Request struct {
	Mode validate.Mode
	M3U  Source
	EPG  Source
	// GenerateFixes enables the fix generator for the playlist.
	GenerateFixes bool
}

// Analyzer holds the collaborators shared by all runs. It is safe for
// concurrent use.
type Analyzer struct {
	fetcher      Fetcher
	store        FixWriter
	validator    *validate.Validator
	metrics      *metrics.Metrics
	logger       *slog.Logger
	maxInputSize int64
}

// New creates an analyzer. A nil store disables persisting fixes; the fixed
// text is still returned in the Result.
func New(fetcher Fetcher, store FixWriter) *Analyzer {
	return &Analyzer{
		fetcher:   fetcher,
		store:     store,
		validator: validate.New(validate.DefaultOptions()),
		logger:    slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (a *Analyzer) WithLogger(logger *slog.Logger) *Analyzer {
	a.logger = observability.WithComponent(logger, "analyzer")
	return a
}

// WithMetrics records run statistics into m.
func (a *Analyzer) WithMetrics(m *metrics.Metrics) *Analyzer {
	a.metrics = m
	return a
}

// WithValidator replaces the rule thresholds.
func (a *Analyzer) WithValidator(v *validate.Validator) *Analyzer {
	a.validator = v
	return a
}

// WithMaxInputSize bounds the size of pasted or uploaded input. Zero
// disables the check.
func (a *Analyzer) WithMaxInputSize(n int64) *Analyzer {
	a.maxInputSize = n
	return a
}

// Analyze runs the pipeline. The playlist and guide branches are
// independent: a failure in one still yields a full report for the other.
func (a *Analyzer) Analyze(ctx context.Context, req Request) *Result {
	start := time.Now()
	mode := req.Mode
	if mode == "" {
		mode = validate.Basic
	}

	logger := a.logger.With(slog.String("mode", mode.String()))
	if id := observability.RequestIDFromContext(ctx); id != "" {
		logger = logger.With(slog.String("request_id", id))
	}
	ctx = observability.ContextWithLogger(ctx, logger)

	done := observability.TimedOperation(ctx, logger, "analyze", nil)
	defer done()

	result := &Result{
		Mode:   mode,
		Advice: append([]string(nil), compat.Advice...),
	}

	playlist := a.playlistBranch(ctx, req, mode, result)
	guide, guideSupplied := a.guideBranch(ctx, req, mode, result)

	switch {
	case result.M3U == nil && result.EPG == nil:
		result.Compatibility = issue.List{issue.New(issue.Error, issue.KindFetch, issue.SourceCompat, CodeNoInput,
			"No playlist or guide was provided; supply M3U and/or EPG text, a file or a URL.")}
	case playlist != nil && !guideSupplied:
		result.Compatibility = append(issue.List{issue.New(issue.Note, issue.KindSemantic, issue.SourceCompat, CodeNoEPG,
			"No EPG was provided; channel ids could not be matched against a guide.")}, a.compat(playlist, nil, result)...)
	case playlist != nil && guide != nil:
		result.Compatibility = a.compat(playlist, guide, result)
	case result.M3U == nil && guide != nil:
		result.Compatibility = issue.List{issue.New(issue.Note, issue.KindSemantic, issue.SourceCompat, CodeNoM3U,
			"No M3U was provided; guide data is only used once it is linked to playlist channels through tvg-id.")}
	}

	if req.GenerateFixes && playlist != nil {
		a.fix(ctx, playlist, mode, result)
	}

	all := result.Issues()
	result.Summary = all.Counts()
	result.Passed = result.Clean()
	if result.Advice == nil {
		result.Advice = []string{}
	}
	result.Duration = time.Since(start)

	a.metrics.RecordIssues(all)
	a.metrics.ObserveAnalysis(mode.String(), result.Duration)

	logger.InfoContext(ctx, "analysis finished",
		slog.String("issues", format.Count(result.Summary.Total(), "issue", "issues")),
		slog.Int("errors", result.Summary.Errors),
		slog.Int("fixes", result.FixCount),
	)
	return result
}

// playlistBranch resolves, parses and validates the playlist. It returns
// nil when no usable playlist text was obtained.
func (a *Analyzer) playlistBranch(ctx context.Context, req Request, mode validate.Mode, result *Result) *m3u.Playlist {
	if !req.M3U.Supplied() {
		return nil
	}

	report := &M3UReport{Origin: req.M3U.origin()}
	result.M3U = report

	data, issues := a.resolve(ctx, req.M3U, issue.SourceM3U)
	if data == nil {
		report.Issues = issues
		return nil
	}

	pl := m3u.ParseBytes(data)
	report.Bytes = len(data)
	report.WellFormed = pl.WellFormedCount()
	report.Channels = summarizePlaylist(pl)
	report.Issues = append(append(issue.List(nil), pl.Issues...), a.validator.M3U(pl, mode)...)

	observability.LoggerFromContext(ctx).DebugContext(ctx, "playlist analysed",
		slog.String("origin", report.Origin),
		slog.String("size", format.Bytes(int64(len(data)))),
		slog.Int("channels", len(pl.Channels)),
	)
	return pl
}

// guideBranch resolves, parses and validates the guide. The returned guide
// is nil when none was supplied or it could not be fetched or parsed; the
// boolean reports whether one was supplied at all.
func (a *Analyzer) guideBranch(ctx context.Context, req Request, mode validate.Mode, result *Result) (*xmltv.Guide, bool) {
	if !req.EPG.Supplied() {
		return nil, false
	}

	report := &EPGReport{Origin: req.EPG.origin()}
	result.EPG = report

	data, issues := a.resolve(ctx, req.EPG, issue.SourceEPG)
	if data == nil {
		report.Issues = issues
		return nil, true
	}

	g := xmltv.ParseBytes(data)
	report.Bytes = len(data)
	report.Issues = append(issue.List(nil), g.Issues...)
	if len(g.Issues.WithCode(xmltv.CodeParseError)) > 0 {
		return nil, true
	}

	report.Parsed = true
	summarizeGuide(g, report)
	report.Issues = append(report.Issues, a.validator.EPG(g, mode)...)

	observability.LoggerFromContext(ctx).DebugContext(ctx, "guide analysed",
		slog.String("origin", report.Origin),
		slog.String("size", format.Bytes(int64(len(data)))),
		slog.Int("channels", len(g.Channels)),
		slog.Int("programmes", len(g.Programmes)),
	)
	return g, true
}

func (a *Analyzer) compat(pl *m3u.Playlist, g *xmltv.Guide, result *Result) issue.List {
	issues, advice := compat.Check(pl.Channels, g)
	coverage := compat.Measure(pl.Channels, g)
	result.Advice = advice
	result.Coverage = &coverage
	return issues
}

func (a *Analyzer) fix(ctx context.Context, pl *m3u.Playlist, mode validate.Mode, result *Result) {
	fixes := fixer.Generate(pl, mode)
	result.Skipped = fixes.Skipped
	result.FixCount = fixes.Count
	result.Fixes = fixes.Fixes
	if fixes.Count == 0 {
		return
	}

	result.FixedM3U = fixes.Text
	a.metrics.RecordFixGenerated()

	if a.store == nil {
		return
	}
	id, err := a.store.Put(ctx, []byte(fixes.Text))
	if err != nil {
		observability.LoggerFromContext(ctx).ErrorContext(ctx, "storing fixed playlist failed",
			slog.String("error", err.Error()))
		result.M3U.Issues = append(result.M3U.Issues, issue.New(issue.Warning, issue.KindFixSkip, issue.SourceM3U,
			CodeFixStoreFailed, "The fixed playlist could not be saved for download: %v.", err))
		return
	}
	result.FixID = id
}

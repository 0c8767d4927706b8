package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nuken/m3u-epg-checker/internal/analyzer"
	"github.com/nuken/m3u-epg-checker/internal/config"
	"github.com/nuken/m3u-epg-checker/internal/httpclient"
	"github.com/nuken/m3u-epg-checker/internal/observability"
	"github.com/nuken/m3u-epg-checker/internal/report"
	"github.com/nuken/m3u-epg-checker/internal/validate"
	"github.com/nuken/m3u-epg-checker/pkg/format"
)

// errFindings makes check exit non-zero once the report has been printed.
var errFindings = errors.New("analysis found problems")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Analyse a playlist and/or guide and print a report",
	Long: `Analyse an M3U playlist, an XMLTV guide or both.

Each of --m3u and --epg accepts an http(s) URL, a local file path or "-" for
standard input. Local files must carry a recognised extension (.m3u, .m3u8,
.xml, .xmltv, optionally followed by .gz, .bz2 or .xz).

The command exits non-zero when any error is reported, or any warning with
--strict.`,
	Example: `  m3u-epg-checker check --m3u playlist.m3u --epg https://example.com/guide.xml.gz
  m3u-epg-checker check --m3u playlist.m3u --mode advanced --fix-out fixed.m3u
  m3u-epg-checker check --epg guide.xml --format json`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().String("m3u", "", "playlist URL, path or - for stdin")
	checkCmd.Flags().String("epg", "", "guide URL, path or - for stdin")
	checkCmd.Flags().String("mode", "", "analysis mode (basic, advanced); defaults to analysis.default_mode")
	checkCmd.Flags().String("format", string(report.Text), "report format (text, json)")
	checkCmd.Flags().Bool("channels", false, "list every playlist and guide channel")
	checkCmd.Flags().String("fix-out", "", "write the fixed playlist to this path")
	checkCmd.Flags().Bool("strict", false, "exit non-zero on warnings as well as errors")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	flags := cmd.Flags()

	modeFlag, _ := flags.GetString("mode")
	if modeFlag == "" {
		modeFlag = cfg.Analysis.DefaultMode
	}
	mode, err := validate.ParseMode(modeFlag)
	if err != nil {
		return err
	}
	formatFlag, _ := flags.GetString("format")
	f, err := report.ParseFormat(formatFlag)
	if err != nil {
		return err
	}

	m3uArg, _ := flags.GetString("m3u")
	epgArg, _ := flags.GetString("epg")
	if m3uArg == "" && epgArg == "" {
		return errors.New("at least one of --m3u or --epg is required")
	}
	if m3uArg == "-" && epgArg == "-" {
		return errors.New("only one of --m3u and --epg can read standard input")
	}

	stdin := cmd.InOrStdin()
	m3uSrc, err := sourceFromArg(m3uArg, stdin)
	if err != nil {
		return err
	}
	epgSrc, err := sourceFromArg(epgArg, stdin)
	if err != nil {
		return err
	}

	fixOut, _ := flags.GetString("fix-out")
	req := analyzer.Request{
		Mode:          mode,
		M3U:           m3uSrc,
		EPG:           epgSrc,
		GenerateFixes: fixOut != "",
	}

	ctx, stop := withSignals(cmd.Context())
	defer stop()

	res := newAnalyzer(cfg, nil, slog.Default()).Analyze(ctx, req)

	opts := report.Options{}
	opts.Channels, _ = flags.GetBool("channels")
	if fixOut != "" && res.FixedM3U != "" {
		if err := os.WriteFile(fixOut, []byte(res.FixedM3U), 0o644); err != nil {
			return fmt.Errorf("writing fixed playlist: %w", err)
		}
		opts.FixPath = fixOut
	}

	if err := report.Write(cmd.OutOrStdout(), res, f, opts); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	strict, _ := flags.GetBool("strict")
	failing := res.Summary.Errors
	if strict {
		failing += res.Summary.Warnings
	}
	if failing > 0 {
		return fmt.Errorf("%w: %s", errFindings, format.Count(failing, "issue", "issues"))
	}
	return nil
}

// sourceFromArg maps a --m3u/--epg value to an analyzer source.
func sourceFromArg(arg string, stdin io.Reader) (analyzer.Source, error) {
	switch {
	case arg == "":
		return analyzer.Source{}, nil
	case arg == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return analyzer.Source{}, fmt.Errorf("reading standard input: %w", err)
		}
		return analyzer.Source{Text: string(data)}, nil
	case strings.HasPrefix(arg, "http://"), strings.HasPrefix(arg, "https://"):
		return analyzer.Source{URL: arg}, nil
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return analyzer.Source{}, fmt.Errorf("reading %s: %w", arg, err)
	}
	return analyzer.Source{File: data, Filename: filepath.Base(arg)}, nil
}

// newAnalyzer wires an analyzer from configuration. store may be nil.
func newAnalyzer(cfg *config.Config, store analyzer.FixWriter, logger *slog.Logger) *analyzer.Analyzer {
	fetcher := httpclient.New(httpclient.Config{
		Timeout:     cfg.Fetch.Timeout,
		MaxBodySize: cfg.Fetch.MaxBodySize.Bytes(),
		UserAgent:   cfg.Fetch.UserAgent,
		Logger:      observability.WithComponent(logger, "fetch"),
	})

	return analyzer.New(fetcher, store).
		WithLogger(observability.WithComponent(logger, "analyzer")).
		WithValidator(validate.New(validate.Options{ChannelLimit: cfg.Analysis.ChannelLimit})).
		WithMaxInputSize(cfg.Analysis.MaxInputSize.Bytes())
}

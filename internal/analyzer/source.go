package analyzer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/nuken/m3u-epg-checker/internal/httpclient"
	"github.com/nuken/m3u-epg-checker/pkg/format"
	"github.com/nuken/m3u-epg-checker/pkg/issue"
	"github.com/nuken/m3u-epg-checker/pkg/m3u"
)

var errInflatedTooLarge = errors.New("decompressed input exceeds limit")

// Issue codes raised while resolving inputs.
const (
	CodeFetchFailed      = "fetch_failed"
	CodeInvalidExtension = "invalid_extension"
	CodeInputTooLarge    = "input_too_large"
	CodeNoInput          = "analyzer.no_input"
	CodeNoEPG            = "analyzer.no_epg"
	CodeNoM3U            = "analyzer.no_m3u"
	CodeFixStoreFailed   = "fix.store_failed"
)

// compressionExtensions may follow the format extension of an upload.
var compressionExtensions = []string{".gz", ".gzip", ".bz2", ".xz"}

var allowedExtensions = map[issue.Source][]string{
	issue.SourceM3U: {".m3u", ".m3u8"},
	issue.SourceEPG: {".xml", ".xmltv"},
}

// Source is one input supplied in up to three ways. When several are set,
// pasted text wins over an uploaded file, which wins over a URL.
type Source struct {
	Text string
	File []byte
	// Filename is the client-side name of File, used only for extension checks.
	Filename string
	URL      string
}

// Supplied reports whether any form of input is present.
func (s Source) Supplied() bool {
	return strings.TrimSpace(s.Text) != "" || len(s.File) > 0 || strings.TrimSpace(s.URL) != ""
}

// origin describes where the content came from, for logs.
func (s Source) origin() string {
	switch {
	case strings.TrimSpace(s.Text) != "":
		return "text"
	case len(s.File) > 0:
		return "file"
	case strings.TrimSpace(s.URL) != "":
		return "url"
	}
	return "none"
}

// resolve returns the raw bytes for src. A nil slice with issues means the
// source was supplied but could not be read.
func (a *Analyzer) resolve(ctx context.Context, src Source, which issue.Source) ([]byte, issue.List) {
	var data []byte

	switch src.origin() {
	case "text":
		data = []byte(src.Text)
	case "file":
		if src.Filename != "" && !extensionAllowed(src.Filename, allowedExtensions[which]) {
			return nil, issue.List{issue.New(issue.Error, issue.KindFetch, which, string(which)+"."+CodeInvalidExtension,
				"Uploaded file '%s' does not look like %s (expected %s).",
				src.Filename, describe(which), strings.Join(allowedExtensions[which], " or "))}
		}
		data = src.File
	case "url":
		fetched, err := a.fetcher.Fetch(ctx, strings.TrimSpace(src.URL))
		if err != nil {
			a.metrics.RecordFetchFailure(which)
			return nil, issue.List{fetchIssue(which, src.URL, err)}
		}
		data = fetched
	default:
		return nil, nil
	}

	if a.maxInputSize > 0 && int64(len(data)) > a.maxInputSize {
		return nil, issue.List{tooLarge(which, "%s input is %s, above the %s limit.",
			strings.ToUpper(string(which)), format.Bytes(int64(len(data))), format.Bytes(a.maxInputSize))}
	}

	if m3u.IsCompressed(data) {
		inflated, err := inflate(data, a.maxInputSize)
		switch {
		case errors.Is(err, errInflatedTooLarge):
			return nil, issue.List{tooLarge(which, "%s input expands to more than the %s limit when decompressed.",
				strings.ToUpper(string(which)), format.Bytes(a.maxInputSize))}
		case err == nil:
			data = inflated
		}
		// A corrupt stream is left as is; the parser reports the read error.
	}
	return data, nil
}

func tooLarge(which issue.Source, msg string, args ...any) issue.Issue {
	return issue.New(issue.Error, issue.KindFetch, which, string(which)+"."+CodeInputTooLarge, msg, args...)
}

// inflate decompresses data, reading at most limit+1 bytes so an oversized
// stream is detected without expanding it fully. A limit of zero is
// unbounded.
func inflate(data []byte, limit int64) ([]byte, error) {
	r, closeFn, err := m3u.Decompress(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer closeFn()

	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(out)) > limit {
		return nil, errInflatedTooLarge
	}
	return out, nil
}

func fetchIssue(which issue.Source, rawURL string, err error) issue.Issue {
	reason := err.Error()
	switch {
	case errors.Is(err, httpclient.ErrRequestTimeout):
		reason = "the request timed out"
	case errors.Is(err, httpclient.ErrBodyTooLarge):
		reason = "the response was too large"
	}
	return issue.New(issue.Error, issue.KindFetch, which, string(which)+"."+CodeFetchFailed,
		"Could not fetch %s from '%s': %s.", describe(which), httpclient.ObfuscateURL(rawURL), reason)
}

func describe(which issue.Source) string {
	if which == issue.SourceEPG {
		return "an XMLTV guide"
	}
	return "an M3U playlist"
}

func extensionAllowed(name string, allowed []string) bool {
	lower := strings.ToLower(name)
	for _, c := range compressionExtensions {
		if strings.HasSuffix(lower, c) {
			lower = strings.TrimSuffix(lower, c)
			break
		}
	}
	ext := path.Ext(lower)
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

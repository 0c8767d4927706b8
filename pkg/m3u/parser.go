// Package m3u provides a resilient M3U playlist parser and writer.
// It supports extended M3U (#EXTM3U / #EXTINF) playlists as served by IPTV
// providers and consumed by DVR software, and never fails on malformed input:
// structural problems are reported as issues and parsing continues.
package m3u

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/nuken/m3u-epg-checker/pkg/issue"
)

// Line prefixes recognised by the scanner.
const (
	HeaderPrefix    = "#EXTM3U"
	DirectivePrefix = "#EXTINF:"
)

// Well-known attribute keys.
const (
	AttrTvgID         = "tvg-id"
	AttrTvgName       = "tvg-name"
	AttrGroupTitle    = "group-title"
	AttrGuideTitle    = "tvc-guide-title"
	defaultMaxLineLen = 1024 * 1024 // 1MB
)

// Issue codes emitted by the parser.
const (
	CodeMalformedEntry     = "m3u.malformed_entry"
	CodeMalformedDirective = "m3u.malformed_directive"
	CodeInvalidDuration    = "m3u.invalid_duration"
	CodeDisplacedURL       = "m3u.displaced_url"
	CodeOrphanURL          = "m3u.orphan_url"
	CodeUnexpectedLine     = "m3u.unexpected_line"
	CodeDuplicateHeader    = "m3u.duplicate_header"
	CodeReadError          = "m3u.read_error"
)

// optionPrefixes are per-entry comment directives that belong to the channel
// they follow and do not separate a directive from its stream URL.
var optionPrefixes = []string{"#EXTVLCOPT:", "#KODIPROP:", "#EXTGRP:"}

var (
	// Matches the duration at the start of the directive body: -1, 0, 180, 12.5
	durationRegex = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)`)

	// Matches key="value" or key=value patterns
	attrRegex = regexp.MustCompile(`([A-Za-z0-9_:.\-]+)=(?:"([^"]*)"|([^\s,"]+))`)
)

// Attribute is a single key/value pair from a directive line, as written.
type Attribute struct {
	Key   string
	Value string
}

// Channel is one playlist entry: a directive line and its stream URL.
// Malformed entries are retained with whatever data could be recovered.
type Channel struct {
	// Index is the 0-based position of the entry in the playlist.
	Index int
	// Line is the 1-based line number of the directive.
	Line int
	// URLLine is the 1-based line number of the stream URL, 0 if none.
	URLLine int

	// Directive is the raw directive line, trimmed.
	Directive string
	// Duration is the raw duration token, usually "-1".
	Duration string
	// Attributes holds every attribute in order of first appearance.
	// Keys keep the case they were written with; a repeated key keeps its last value.
	Attributes []Attribute
	// DuplicateKeys lists lowercase attribute keys that appeared more than once.
	DuplicateKeys []string

	TvgID      string
	TvgName    string
	GroupTitle string

	// DisplayName is the text following the last unquoted comma.
	DisplayName string
	// StreamURL is the first non-directive, non-comment line after the directive.
	StreamURL string
	// Options are #EXTVLCOPT/#KODIPROP/#EXTGRP lines attached to the entry.
	Options []string

	// Malformed is set when no stream URL followed the directive.
	Malformed bool
	// Displaced is set when stray lines separated the directive from its URL.
	Displaced bool
	// MalformedDirective is set when the directive had no comma separator.
	MalformedDirective bool

	modified bool
}

// Attr returns the value of an attribute, matching the key case-insensitively.
func (c *Channel) Attr(key string) (string, bool) {
	for _, a := range c.Attributes {
		if strings.EqualFold(a.Key, key) {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets an attribute value, appending it when absent, and keeps the
// named fields in sync. The channel is marked modified so writers rebuild
// the directive instead of copying it verbatim.
func (c *Channel) SetAttr(key, value string) {
	found := false
	for i := range c.Attributes {
		if strings.EqualFold(c.Attributes[i].Key, key) {
			c.Attributes[i].Value = value
			found = true
			break
		}
	}
	if !found {
		c.Attributes = append(c.Attributes, Attribute{Key: key, Value: value})
	}
	c.applyKnown(strings.ToLower(key), value)
	c.modified = true
}

// Modified reports whether the channel was changed after parsing.
func (c *Channel) Modified() bool {
	return c.modified
}

// WellFormed reports whether the entry has both a directive and a stream URL.
func (c *Channel) WellFormed() bool {
	return !c.Malformed && c.StreamURL != ""
}

// Clone returns a deep copy of the channel.
func (c *Channel) Clone() *Channel {
	cp := *c
	cp.Attributes = append([]Attribute(nil), c.Attributes...)
	cp.DuplicateKeys = append([]string(nil), c.DuplicateKeys...)
	cp.Options = append([]string(nil), c.Options...)
	return &cp
}

// Name returns the best human label for the channel.
func (c *Channel) Name() string {
	switch {
	case c.DisplayName != "":
		return c.DisplayName
	case c.TvgName != "":
		return c.TvgName
	case c.TvgID != "":
		return c.TvgID
	}
	return fmt.Sprintf("entry #%d", c.Index+1)
}

func (c *Channel) applyKnown(lowerKey, value string) {
	switch lowerKey {
	case AttrTvgID:
		c.TvgID = strings.TrimSpace(value)
	case AttrTvgName:
		c.TvgName = strings.TrimSpace(value)
	case AttrGroupTitle:
		c.GroupTitle = strings.TrimSpace(value)
	}
}

// Orphan is a non-directive line found while no directive was open.
type Orphan struct {
	Line int
	Text string
}

// Playlist is the result of parsing an M3U document.
type Playlist struct {
	// Header is the raw #EXTM3U line, empty when the playlist had none.
	Header   string
	Channels []*Channel
	Orphans  []Orphan
	Issues   issue.List
}

// WellFormedCount returns the number of channels with a paired stream URL.
func (p *Playlist) WellFormedCount() int {
	n := 0
	for _, c := range p.Channels {
		if c.WellFormed() {
			n++
		}
	}
	return n
}

// Parser scans M3U text. The zero value is ready to use.
type Parser struct {
	// OnChannel, when set, is called as each entry is closed.
	// Returning an error aborts parsing.
	OnChannel func(ch *Channel) error

	// MaxLineLength bounds a single line; defaults to 1MB.
	MaxLineLength int
}

// scanState tracks the two-state scanner: expecting a directive, or holding
// an open directive and expecting its stream URL.
type scanState struct {
	pl         *Playlist
	open       *Channel
	strayLines int
	onChannel  func(ch *Channel) error
}

// Parse reads an M3U playlist. The returned error is only non-nil for read
// failures or callback errors; malformed content is reported in Playlist.Issues.
// On a read failure the partial playlist is still returned.
func (p *Parser) Parse(r io.Reader) (*Playlist, error) {
	maxLine := p.MaxLineLength
	if maxLine <= 0 {
		maxLine = defaultMaxLineLen
	}

	initial := 64 * 1024
	if maxLine < initial {
		initial = maxLine
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initial), maxLine)

	st := &scanState{pl: &Playlist{}, onChannel: p.OnChannel}
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if err := st.line(lineNum, strings.TrimSpace(line)); err != nil {
			return st.pl, fmt.Errorf("callback error at line %d: %w", lineNum, err)
		}
	}

	if err := st.close(); err != nil {
		return st.pl, fmt.Errorf("callback error at end of playlist: %w", err)
	}

	if err := scanner.Err(); err != nil {
		st.pl.Issues = append(st.pl.Issues, issue.New(issue.Error, issue.KindStructural, issue.SourceM3U,
			CodeReadError, "Playlist could not be read past line %d: %v", lineNum, err).At(lineNum+1))
		return st.pl, fmt.Errorf("scanning M3U: %w", err)
	}

	return st.pl, nil
}

func (st *scanState) line(lineNum int, line string) error {
	switch {
	case line == "":
		return nil

	case hasPrefixFold(line, HeaderPrefix):
		if st.pl.Header == "" && len(st.pl.Channels) == 0 && st.open == nil {
			st.pl.Header = line
			return nil
		}
		st.pl.Issues = append(st.pl.Issues, issue.New(issue.Warning, issue.KindStructural, issue.SourceM3U,
			CodeDuplicateHeader, "Unexpected %s header line; only the first line of a playlist should carry it.", HeaderPrefix).At(lineNum))
		return nil

	case hasPrefixFold(line, DirectivePrefix):
		if err := st.close(); err != nil {
			return err
		}
		ch, issues := parseDirective(line, lineNum)
		ch.Index = len(st.pl.Channels)
		st.pl.Issues = append(st.pl.Issues, issues...)
		st.open = ch
		st.strayLines = 0
		return nil

	case strings.HasPrefix(line, "#"):
		if st.open == nil {
			return nil
		}
		if isOption(line) {
			st.open.Options = append(st.open.Options, line)
		} else {
			st.strayLines++
		}
		return nil
	}

	if st.open == nil {
		st.pl.Orphans = append(st.pl.Orphans, Orphan{Line: lineNum, Text: line})
		if looksLikeURL(line) {
			st.pl.Issues = append(st.pl.Issues, issue.New(issue.Error, issue.KindStructural, issue.SourceM3U,
				CodeOrphanURL, "Stream URL %q has no preceding %s directive.", line, DirectivePrefix).At(lineNum))
		} else {
			st.pl.Issues = append(st.pl.Issues, issue.New(issue.Warning, issue.KindStructural, issue.SourceM3U,
				CodeUnexpectedLine, "Unexpected line %q (will be ignored).", line).At(lineNum))
		}
		return nil
	}

	ch := st.open
	ch.StreamURL = line
	ch.URLLine = lineNum
	if st.strayLines > 0 {
		ch.Displaced = true
		st.pl.Issues = append(st.pl.Issues, issue.New(issue.Warning, issue.KindStructural, issue.SourceM3U,
			CodeDisplacedURL, "Stream URL for channel '%s' (line %d) is not directly after its directive; found at line %d.",
			ch.Name(), ch.Line, lineNum).At(ch.Line).For(ch.Name()))
	}
	return st.emit()
}

// close finalises a directive that never received a stream URL.
func (st *scanState) close() error {
	if st.open == nil {
		return nil
	}
	ch := st.open
	ch.Malformed = true
	st.pl.Issues = append(st.pl.Issues, issue.New(issue.Warning, issue.KindStructural, issue.SourceM3U,
		CodeMalformedEntry, "Malformed entry: channel '%s' (line %d) has no stream URL before the next directive.",
		ch.Name(), ch.Line).At(ch.Line).For(ch.Name()))
	return st.emit()
}

func (st *scanState) emit() error {
	ch := st.open
	st.open = nil
	st.strayLines = 0
	st.pl.Channels = append(st.pl.Channels, ch)
	if st.onChannel != nil {
		return st.onChannel(ch)
	}
	return nil
}

// parseDirective parses an #EXTINF line into a channel.
func parseDirective(line string, lineNum int) (*Channel, issue.List) {
	var issues issue.List
	ch := &Channel{Line: lineNum, Directive: line}

	body := line[len(DirectivePrefix):]

	attrPart := body
	if idx := lastUnquotedComma(body); idx >= 0 {
		ch.DisplayName = strings.TrimSpace(body[idx+1:])
		attrPart = body[:idx]
	} else {
		ch.MalformedDirective = true
		issues = append(issues, issue.New(issue.Error, issue.KindStructural, issue.SourceM3U,
			CodeMalformedDirective, "Malformed directive: expected '%s<duration> [attributes],<channel name>'.", DirectivePrefix).At(lineNum))
	}

	if m := durationRegex.FindStringSubmatchIndex(attrPart); m != nil {
		ch.Duration = attrPart[m[2]:m[3]]
		attrPart = attrPart[m[1]:]
	} else {
		issues = append(issues, issue.New(issue.Warning, issue.KindStructural, issue.SourceM3U,
			CodeInvalidDuration, "Directive has no numeric duration; live channels normally use -1.").At(lineNum))
	}

	seen := make(map[string]int)
	for _, match := range attrRegex.FindAllStringSubmatch(attrPart, -1) {
		key := match[1]
		value := match[2]
		if value == "" {
			value = match[3]
		}
		lower := strings.ToLower(key)
		if idx, ok := seen[lower]; ok {
			if !contains(ch.DuplicateKeys, lower) {
				ch.DuplicateKeys = append(ch.DuplicateKeys, lower)
			}
			ch.Attributes[idx] = Attribute{Key: key, Value: value}
		} else {
			seen[lower] = len(ch.Attributes)
			ch.Attributes = append(ch.Attributes, Attribute{Key: key, Value: value})
		}
		ch.applyKnown(lower, value)
	}

	return ch, issues
}

// lastUnquotedComma finds the comma that separates attributes from the
// display name, ignoring commas inside double-quoted attribute values.
func lastUnquotedComma(s string) int {
	inQuotes := false
	last := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				last = i
			}
		}
	}
	if last < 0 && inQuotes {
		// Unbalanced quotes: fall back to the last comma anywhere.
		return strings.LastIndexByte(s, ',')
	}
	return last
}

func isOption(line string) bool {
	for _, p := range optionPrefixes {
		if hasPrefixFold(line, p) {
			return true
		}
	}
	return false
}

func looksLikeURL(line string) bool {
	return strings.Contains(line, "://") || strings.HasPrefix(line, "/")
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ParseString parses playlist text held in memory. It never fails: any read
// problem is already recorded in the returned playlist's issues.
func ParseString(text string) *Playlist {
	pl, _ := (&Parser{}).Parse(strings.NewReader(text))
	return pl
}

// ParseBytes parses a possibly compressed playlist held in memory.
// Decompression failures are reported as an issue on an empty playlist.
func ParseBytes(data []byte) *Playlist {
	p := &Parser{}
	pl, err := p.ParseCompressed(bytes.NewReader(data))
	if pl == nil {
		pl = &Playlist{}
	}
	if err != nil && len(pl.Issues.WithCode(CodeReadError)) == 0 {
		pl.Issues = append(pl.Issues, issue.New(issue.Error, issue.KindStructural, issue.SourceM3U,
			CodeReadError, "Playlist could not be read: %v", err))
	}
	return pl
}

// ParseCompressed parses a potentially compressed M3U playlist.
// It auto-detects compression based on magic bytes.
func (p *Parser) ParseCompressed(r io.Reader) (*Playlist, error) {
	reader, closeFn, err := Decompress(r)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return p.Parse(reader)
}

// IsCompressed reports whether data starts with a gzip, bzip2 or xz magic
// number.
func IsCompressed(data []byte) bool {
	return compression(data) != ""
}

func compression(header []byte) string {
	switch {
	case len(header) >= 2 && header[0] == 0x1f && header[1] == 0x8b:
		return "gzip"
	case len(header) >= 3 && header[0] == 'B' && header[1] == 'Z' && header[2] == 'h':
		return "bzip2"
	case len(header) >= 6 && header[0] == 0xfd && header[1] == '7' && header[2] == 'z' && header[3] == 'X' && header[4] == 'Z' && header[5] == 0x00:
		return "xz"
	}
	return ""
}

// Decompress wraps r with a decompressor chosen by magic bytes. The returned
// close function must be called when done reading.
func Decompress(r io.Reader) (io.Reader, func(), error) {
	noop := func() {}
	br := bufio.NewReader(r)

	header, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return nil, noop, fmt.Errorf("peeking header: %w", err)
	}

	switch compression(header) {
	case "gzip":
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return nil, noop, fmt.Errorf("creating gzip reader: %w", err)
		}
		return gzr, func() { _ = gzr.Close() }, nil

	case "bzip2":
		return bzip2.NewReader(br), noop, nil

	case "xz":
		xzr, err := xz.NewReader(br)
		if err != nil {
			return nil, noop, fmt.Errorf("creating xz reader: %w", err)
		}
		return xzr, noop, nil
	}

	return br, noop, nil
}

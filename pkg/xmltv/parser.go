// Package xmltv provides streaming XMLTV parsing for electronic program
// guide data. Structural problems that do not prevent reading the document
// are reported as issues; malformed XML is fatal for the guide only.
package xmltv

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ulikunitz/xz"
	"golang.org/x/net/html/charset"

	"github.com/nuken/m3u-epg-checker/pkg/issue"
)

// ErrSyntax wraps XML well-formedness errors.
var ErrSyntax = errors.New("malformed XMLTV document")

// RootElement is the required document element.
const RootElement = "tv"

// Issue codes emitted by the parser.
const (
	CodeParseError              = "epg.parse_error"
	CodeRootElement             = "epg.root_element"
	CodeChannelMissingID        = "epg.channel_missing_id"
	CodeProgrammeMissingChannel = "epg.programme_missing_channel"
	CodeInvalidTime             = "epg.invalid_time"
)

// Channel represents a channel definition in an XMLTV file.
type Channel struct {
	ID string
	// DisplayNames keeps every non-empty display-name in document order.
	DisplayNames []string
	Icon         string
	URL          string
	// Line is the 1-based line of the element.
	Line int
}

// DisplayName returns the first display name, or "".
func (c *Channel) DisplayName() string {
	if len(c.DisplayNames) == 0 {
		return ""
	}
	return c.DisplayNames[0]
}

// Programme represents a single program entry in an XMLTV file.
type Programme struct {
	// Index is the 0-based position among accepted programmes.
	Index int
	Line  int

	Channel     string
	Start       Timestamp
	Stop        Timestamp
	Title       string
	SubTitle    string
	Description string
	Categories  []string
	SeriesID    string
	EpisodeNum  string
	Icon        string
}

// IsMovie reports whether any category is "movie".
func (p *Programme) IsMovie() bool {
	for _, c := range p.Categories {
		if strings.EqualFold(c, "movie") {
			return true
		}
	}
	return false
}

// Label returns the title, or a placeholder for untitled programmes.
func (p *Programme) Label() string {
	if p.Title != "" {
		return p.Title
	}
	return "Unknown Title"
}

// Guide is the result of parsing an XMLTV document.
type Guide struct {
	// Root is the local name of the document element.
	Root string
	// Channels maps id to channel; a repeated id keeps the later element.
	Channels map[string]*Channel
	// ChannelList holds every accepted channel element in document order,
	// including repeated ids.
	ChannelList []*Channel
	Programmes  []*Programme
	Issues      issue.List
}

func newGuide() *Guide {
	return &Guide{Channels: make(map[string]*Channel)}
}

// IDs returns the distinct channel ids in order of first appearance.
func (g *Guide) IDs() []string {
	seen := make(map[string]bool, len(g.Channels))
	ids := make([]string, 0, len(g.Channels))
	for _, c := range g.ChannelList {
		if !seen[c.ID] {
			seen[c.ID] = true
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Parser provides streaming XMLTV parsing with callback-based processing.
// The zero value is ready to use.
type Parser struct {
	// OnChannel is called for each accepted channel definition.
	OnChannel func(channel *Channel) error

	// OnProgramme is called for each accepted programme.
	OnProgramme func(programme *Programme) error
}

// Parse reads an XMLTV document. Malformed XML returns an error wrapping
// ErrSyntax together with whatever was read before the fault; callers that
// need all-or-nothing semantics should use the package-level Parse.
func (p *Parser) Parse(r io.Reader) (*Guide, error) {
	g := newGuide()

	decoder := xml.NewDecoder(r)
	decoder.Strict = true
	decoder.Entity = xml.HTMLEntity
	decoder.CharsetReader = charset.NewReaderLabel

	sawRoot := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return g, wrapDecodeError(err)
		}

		elem, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		line, _ := decoder.InputPos()

		if !sawRoot {
			sawRoot = true
			g.Root = elem.Name.Local
			if elem.Name.Local != RootElement {
				g.Issues = append(g.Issues, issue.New(issue.Error, issue.KindStructural, issue.SourceEPG,
					CodeRootElement, "Root element is '%s'; expected '<%s>'.", elem.Name.Local, RootElement).At(line))
			}
			continue
		}

		switch elem.Name.Local {
		case "channel":
			channel, err := p.parseChannel(decoder, elem, line)
			if err != nil {
				return g, wrapDecodeError(err)
			}
			if channel.ID == "" {
				g.Issues = append(g.Issues, issue.New(issue.Error, issue.KindStructural, issue.SourceEPG,
					CodeChannelMissingID, "Channel element is missing its 'id' attribute (skipped).").At(line))
				continue
			}
			g.Channels[channel.ID] = channel
			g.ChannelList = append(g.ChannelList, channel)
			if p.OnChannel != nil {
				if err := p.OnChannel(channel); err != nil {
					return g, fmt.Errorf("channel callback: %w", err)
				}
			}

		case "programme":
			prog, problems, err := p.parseProgramme(decoder, elem, line)
			if err != nil {
				return g, wrapDecodeError(err)
			}
			if len(problems) > 0 {
				g.Issues = append(g.Issues, problems...)
				continue
			}
			prog.Index = len(g.Programmes)
			g.Programmes = append(g.Programmes, prog)
			if p.OnProgramme != nil {
				if err := p.OnProgramme(prog); err != nil {
					return g, fmt.Errorf("programme callback: %w", err)
				}
			}

		default:
			if err := decoder.Skip(); err != nil {
				return g, wrapDecodeError(err)
			}
		}
	}

	if !sawRoot {
		return g, fmt.Errorf("%w: document has no root element", ErrSyntax)
	}
	return g, nil
}

func wrapDecodeError(err error) error {
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Errorf("%w: line %d: %s", ErrSyntax, syntaxErr.Line, syntaxErr.Msg)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: unexpected end of document", ErrSyntax)
	}
	return fmt.Errorf("reading XMLTV: %w", err)
}

// parseChannel parses a channel element.
func (p *Parser) parseChannel(decoder *xml.Decoder, start xml.StartElement, line int) (*Channel, error) {
	channel := &Channel{Line: line}

	for _, attr := range start.Attr {
		if attr.Name.Local == "id" {
			channel.ID = strings.TrimSpace(attr.Value)
		}
	}

	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}

		switch elem := token.(type) {
		case xml.StartElement:
			switch elem.Name.Local {
			case "display-name":
				name, err := readText(decoder, &elem)
				if err != nil {
					return nil, err
				}
				if name != "" {
					channel.DisplayNames = append(channel.DisplayNames, name)
				}
			case "icon":
				if channel.Icon == "" {
					channel.Icon = attrValue(elem, "src")
				}
				if err := decoder.Skip(); err != nil {
					return nil, err
				}
			case "url":
				url, err := readText(decoder, &elem)
				if err != nil {
					return nil, err
				}
				if channel.URL == "" {
					channel.URL = url
				}
			default:
				if err := decoder.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if elem.Name.Local == "channel" {
				return channel, nil
			}
		}
	}
}

// parseProgramme parses a programme element. Problems that make the
// programme unusable are returned as issues and the programme is discarded.
func (p *Parser) parseProgramme(decoder *xml.Decoder, start xml.StartElement, line int) (*Programme, issue.List, error) {
	prog := &Programme{Line: line}
	var rawStart, rawStop string
	var hasStart, hasStop bool

	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "start":
			rawStart, hasStart = attr.Value, true
		case "stop":
			rawStop, hasStop = attr.Value, true
		case "channel":
			prog.Channel = strings.TrimSpace(attr.Value)
		case "series-id":
			prog.SeriesID = strings.TrimSpace(attr.Value)
		}
	}

	for done := false; !done; {
		token, err := decoder.Token()
		if err != nil {
			return nil, nil, err
		}

		switch elem := token.(type) {
		case xml.StartElement:
			var target *string
			switch elem.Name.Local {
			case "title":
				target = &prog.Title
			case "sub-title":
				target = &prog.SubTitle
			case "desc":
				target = &prog.Description
			case "episode-num":
				target = &prog.EpisodeNum
			case "series-id":
				target = &prog.SeriesID
			case "category":
				cat, err := readText(decoder, &elem)
				if err != nil {
					return nil, nil, err
				}
				if cat != "" {
					prog.Categories = append(prog.Categories, cat)
				}
				continue
			case "icon":
				if prog.Icon == "" {
					prog.Icon = attrValue(elem, "src")
				}
			}
			if target == nil {
				if err := decoder.Skip(); err != nil {
					return nil, nil, err
				}
				continue
			}
			text, err := readText(decoder, &elem)
			if err != nil {
				return nil, nil, err
			}
			if *target == "" {
				*target = text
			}
		case xml.EndElement:
			if elem.Name.Local == "programme" {
				done = true
			}
		}
	}

	var problems issue.List
	report := func(code, format string, args ...any) {
		problems = append(problems, issue.New(issue.Error, issue.KindStructural, issue.SourceEPG,
			code, format, args...).At(line).For(prog.Label()))
	}

	if prog.Channel == "" {
		report(CodeProgrammeMissingChannel, "Programme '%s' is missing its 'channel' attribute (discarded).", prog.Label())
	}

	var err error
	if !hasStart || strings.TrimSpace(rawStart) == "" {
		report(CodeInvalidTime, "Programme '%s' on channel '%s' is missing its 'start' time (discarded).", prog.Label(), prog.Channel)
	} else if prog.Start, err = ParseTime(rawStart); err != nil {
		report(CodeInvalidTime, "Programme '%s' on channel '%s' has an invalid 'start' time '%s' (discarded).", prog.Label(), prog.Channel, rawStart)
	}
	if !hasStop || strings.TrimSpace(rawStop) == "" {
		report(CodeInvalidTime, "Programme '%s' on channel '%s' is missing its 'stop' time (discarded).", prog.Label(), prog.Channel)
	} else if prog.Stop, err = ParseTime(rawStop); err != nil {
		report(CodeInvalidTime, "Programme '%s' on channel '%s' has an invalid 'stop' time '%s' (discarded).", prog.Label(), prog.Channel, rawStop)
	}

	return prog, problems, nil
}

func readText(decoder *xml.Decoder, elem *xml.StartElement) (string, error) {
	var s string
	if err := decoder.DecodeElement(&s, elem); err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

func attrValue(elem xml.StartElement, name string) string {
	for _, attr := range elem.Attr {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}

// Parse parses XMLTV text held in memory. A malformed document yields an
// empty guide carrying a single Error issue.
func Parse(text string) *Guide {
	g, err := (&Parser{}).Parse(strings.NewReader(text))
	return finish(g, err)
}

// ParseBytes parses a possibly compressed XMLTV document held in memory.
func ParseBytes(data []byte) *Guide {
	g, err := (&Parser{}).ParseCompressed(bytes.NewReader(data))
	return finish(g, err)
}

func finish(g *Guide, err error) *Guide {
	if err == nil {
		return g
	}
	empty := newGuide()
	empty.Issues = issue.List{issue.New(issue.Error, issue.KindParse, issue.SourceEPG,
		CodeParseError, "EPG is not well-formed XML: %v", err)}
	return empty
}

// ParseCompressed parses a potentially compressed XMLTV file.
// It auto-detects compression based on magic bytes.
func (p *Parser) ParseCompressed(r io.Reader) (*Guide, error) {
	br := bufio.NewReader(r)

	header, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("peeking header: %w", err)
	}

	var reader io.Reader = br

	switch {
	case len(header) >= 2 && header[0] == 0x1f && header[1] == 0x8b:
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gzr.Close()
		reader = gzr

	case len(header) >= 3 && header[0] == 'B' && header[1] == 'Z' && header[2] == 'h':
		reader = bzip2.NewReader(br)

	case len(header) >= 6 && header[0] == 0xfd && header[1] == '7' && header[2] == 'z' && header[3] == 'X' && header[4] == 'Z' && header[5] == 0x00:
		xzr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("creating xz reader: %w", err)
		}
		reader = xzr
	}

	return p.Parse(reader)
}

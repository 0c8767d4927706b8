package m3u

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriter_UnmodifiedChannelsRoundTrip(t *testing.T) {
	inputs := []string{
		"#EXTM3U\n#EXTINF:-1 tvg-id=\"a\" group-title=\"News\",A\nhttp://a.m3u8\n#EXTINF:-1,B\nhttp://b.ts\n",
		"#EXTM3U url-tvg=\"http://guide.xml\"\n#EXTINF:-1,A\n#EXTVLCOPT:http-referrer=x\nhttp://a\n",
		"#EXTINF:-1,A\n#EXTINF:-1,B\nhttp://x/b.m3u8\n",
		"#EXTM3U\n#EXTINF:-1 tvg-name=\"X, Y\",Z\n# comment\nhttp://z\nhttp://orphan\n",
	}

	for _, in := range inputs {
		pl := ParseString(in)

		var buf bytes.Buffer
		if err := Write(&buf, pl.Header, pl.Channels); err != nil {
			t.Fatalf("write failed: %v", err)
		}

		again := ParseString(buf.String())
		if got, want := again.WellFormedCount(), pl.WellFormedCount(); got != want {
			t.Errorf("pairing count changed: want %d, got %d\ninput:\n%s\noutput:\n%s", want, got, in, buf.String())
		}
		if len(again.Channels) != len(pl.Channels) {
			t.Errorf("channel count changed: want %d, got %d", len(pl.Channels), len(again.Channels))
		}
	}
}

func TestWriter_PreservesHeaderAndDirective(t *testing.T) {
	in := "#EXTM3U url-tvg=\"http://guide.xml\"\n#EXTINF:-1   tvg-id=ch1 ,Spacing Kept\nhttp://a\n"
	pl := ParseString(in)

	var buf bytes.Buffer
	if err := Write(&buf, pl.Header, pl.Channels); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != `#EXTM3U url-tvg="http://guide.xml"` {
		t.Errorf("header not preserved: %q", lines[0])
	}
	if lines[1] != `#EXTINF:-1   tvg-id=ch1 ,Spacing Kept` {
		t.Errorf("unmodified directive not preserved: %q", lines[1])
	}
}

func TestWriter_DefaultHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteChannel(&Channel{DisplayName: "A", StreamURL: "http://a"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	expected := "#EXTM3U\n#EXTINF:-1,A\nhttp://a\n"
	if buf.String() != expected {
		t.Errorf("expected %q, got %q", expected, buf.String())
	}
}

func TestFormatDirective_ModifiedChannel(t *testing.T) {
	pl := ParseString("#EXTINF:-1 tvg-logo=\"http://l.png\" custom=1,Channel One\nhttp://a\n")
	ch := pl.Channels[0].Clone()
	ch.SetAttr(AttrTvgID, "channelone")
	ch.SetAttr(AttrGroupTitle, `Say "Hi"`)

	got := FormatDirective(ch)
	expected := `#EXTINF:-1 tvg-logo="http://l.png" custom="1" tvg-id="channelone" group-title="Say 'Hi'",Channel One`
	if got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
	if !ch.Modified() || pl.Channels[0].Modified() {
		t.Error("expected only the clone to be marked modified")
	}
	if pl.Channels[0].TvgID != "" {
		t.Error("clone must not alias the original attributes")
	}
}

func TestSetAttr_ReplacesExistingCaseInsensitive(t *testing.T) {
	ch := &Channel{Attributes: []Attribute{{Key: "TVG-NAME", Value: "old"}}}
	ch.SetAttr(AttrTvgName, "new")

	if len(ch.Attributes) != 1 || ch.Attributes[0].Value != "new" || ch.Attributes[0].Key != "TVG-NAME" {
		t.Errorf("expected in-place replacement keeping key case, got %+v", ch.Attributes)
	}
	if ch.TvgName != "new" {
		t.Errorf("expected TvgName to follow, got %q", ch.TvgName)
	}
}

package fixer

import (
	"testing"

	"github.com/nuken/m3u-epg-checker/internal/validate"
	"github.com/nuken/m3u-epg-checker/pkg/m3u"
)

// FuzzGenerateIdempotent checks that fixing a playlist twice applies no
// further fixes and that channel counts match directive lines.
func FuzzGenerateIdempotent(f *testing.F) {
	f.Add("#EXTM3U\n#EXTINF:-1,Channel One\nhttp://x/1.m3u8", true)
	f.Add("#EXTINF:-1,A\n#EXTINF:-1,B\nhttp://x/b.m3u8", false)
	f.Add("#EXTINF:-1 tvg-name=\"a,b\" group-title=Misc,US: \"Quoted\" | Name\n#c\nhttp://u\nstray", true)
	f.Add("", false)
	f.Add("http://orphan\n#EXTM3U\n#EXTINF:abc tvg-id=x\n", true)
	f.Add("#EXTINF:-1 tvc-guide-title=\"Тест\",Unicode Тест\r\nrtsp://stream\r\n", true)

	f.Fuzz(func(t *testing.T, text string, advanced bool) {
		mode := validate.Basic
		if advanced {
			mode = validate.Advanced
		}

		first := GenerateText(text, mode)
		second := GenerateText(first.Text, mode)
		if second.Count != 0 {
			t.Fatalf("second pass applied %d fixes: %+v\ninput: %q\nfirst: %q", second.Count, second.Fixes, text, first.Text)
		}
		if second.Text != first.Text {
			t.Fatalf("second pass changed text\nfirst:  %q\nsecond: %q", first.Text, second.Text)
		}

		pl := m3u.ParseString(first.Text)
		if pl.Header == "" {
			t.Errorf("fixed playlist has no header: %q", first.Text)
		}
	})
}

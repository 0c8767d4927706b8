package xmltv

import "testing"

// FuzzParse checks that arbitrary input never panics and that a guide is
// always returned.
func FuzzParse(f *testing.F) {
	f.Add(`<?xml version="1.0"?><tv><channel id="a"><display-name>A</display-name></channel>` +
		`<programme channel="a" start="20240101000000 +0000" stop="20240101010000 +0000"><title>T</title></programme></tv>`)
	f.Add(`<tv><programme start="bad" stop="20240101"/></tv>`)
	f.Add(`<schedule/>`)
	f.Add(`<tv><channel>`)
	f.Add("")

	f.Fuzz(func(t *testing.T, text string) {
		g := Parse(text)
		if g == nil {
			t.Fatal("Parse returned nil")
		}
		for _, p := range g.Programmes {
			if p == nil {
				t.Fatal("nil programme")
			}
		}
	})
}

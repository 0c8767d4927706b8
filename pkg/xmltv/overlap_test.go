package xmltv

import (
	"testing"
	"time"
)

var base = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func prog(channel, title string, startMin, stopMin int) *Programme {
	start := base.Add(time.Duration(startMin) * time.Minute)
	stop := base.Add(time.Duration(stopMin) * time.Minute)
	return &Programme{
		Channel: channel,
		Title:   title,
		Start:   Timestamp{Raw: start.Format("20060102150405 -0700"), Time: start, Offset: "+0000"},
		Stop:    Timestamp{Raw: stop.Format("20060102150405 -0700"), Time: stop, Offset: "+0000"},
	}
}

func titles(overlaps []Overlap) [][2]string {
	out := make([][2]string, 0, len(overlaps))
	for _, o := range overlaps {
		out = append(out, [2]string{o.First.Title, o.Second.Title})
	}
	return out
}

func TestFindOverlaps_AdjacentIsNotOverlap(t *testing.T) {
	got := FindOverlaps([]*Programme{
		prog("a", "A", 0, 60),
		prog("a", "B", 60, 120),
		prog("a", "C", 150, 180),
	})
	if len(got) != 0 {
		t.Errorf("expected no overlaps, got %v", titles(got))
	}
}

func TestFindOverlaps_ReportsIntersectingPair(t *testing.T) {
	got := FindOverlaps([]*Programme{
		prog("a", "Late", 30, 90),
		prog("a", "Early", 0, 60),
	})
	if len(got) != 1 {
		t.Fatalf("expected 1 overlap, got %d", len(got))
	}
	if got[0].Channel != "a" || got[0].First.Title != "Early" || got[0].Second.Title != "Late" {
		t.Errorf("unexpected overlap %+v", titles(got))
	}
}

func TestFindOverlaps_ContainedProgrammeReportedAgainstAll(t *testing.T) {
	// Long spans both short ones; the short ones do not touch each other.
	got := FindOverlaps([]*Programme{
		prog("a", "Long", 0, 180),
		prog("a", "Short1", 10, 20),
		prog("a", "Short2", 100, 120),
	})
	want := [][2]string{{"Long", "Short1"}, {"Long", "Short2"}}
	if g := titles(got); len(g) != len(want) || g[0] != want[0] || g[1] != want[1] {
		t.Errorf("expected %v, got %v", want, g)
	}
}

func TestFindOverlaps_ReportsEachProgrammeOnce(t *testing.T) {
	const n = 2000
	progs := make([]*Programme, n)
	for i := range progs {
		progs[i] = prog("c", "Same", 0, 1440)
	}
	got := FindOverlaps(progs)
	if len(got) != n-1 {
		t.Fatalf("expected %d overlaps for %d identical slots, got %d", n-1, n, len(got))
	}
	seen := make(map[*Programme]bool)
	for _, o := range got {
		if seen[o.Second] {
			t.Fatalf("programme reported twice")
		}
		seen[o.Second] = true
	}
}

func TestFindOverlaps_PairsWithLatestEnding(t *testing.T) {
	// Short ends before Late starts, but Long is still running.
	got := FindOverlaps([]*Programme{
		prog("a", "Long", 0, 300),
		prog("a", "Short", 10, 20),
		prog("a", "Late", 100, 120),
		prog("a", "After", 300, 360),
	})
	want := [][2]string{{"Long", "Short"}, {"Long", "Late"}}
	if g := titles(got); len(g) != len(want) || g[0] != want[0] || g[1] != want[1] {
		t.Errorf("expected %v, got %v", want, g)
	}
}

func TestFindOverlaps_PerChannel(t *testing.T) {
	got := FindOverlaps([]*Programme{
		prog("a", "A1", 0, 60),
		prog("b", "B1", 30, 90),
		prog("b", "B2", 60, 120),
		prog("a", "A2", 30, 45),
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 overlaps, got %v", titles(got))
	}
	if got[0].Channel != "a" || got[1].Channel != "b" {
		t.Errorf("expected channel order a, b; got %s, %s", got[0].Channel, got[1].Channel)
	}
}

func TestFindOverlaps_IgnoresInvalidIntervals(t *testing.T) {
	got := FindOverlaps([]*Programme{
		prog("a", "Valid", 0, 60),
		prog("a", "Backwards", 50, 10),
		prog("a", "Empty", 30, 30),
		prog("", "NoChannel", 0, 60),
	})
	if len(got) != 0 {
		t.Errorf("expected invalid intervals to be ignored, got %v", titles(got))
	}
}

func TestFindOverlaps_Property(t *testing.T) {
	// Exhaustive over small grids: a pair overlaps iff each starts before
	// the other stops.
	for s1 := 0; s1 < 6; s1++ {
		for e1 := s1 + 1; e1 <= 6; e1++ {
			for s2 := 0; s2 < 6; s2++ {
				for e2 := s2 + 1; e2 <= 6; e2++ {
					got := FindOverlaps([]*Programme{prog("c", "X", s1, e1), prog("c", "Y", s2, e2)})
					want := s1 < e2 && s2 < e1
					if (len(got) == 1) != want || len(got) > 1 {
						t.Fatalf("[%d,%d) vs [%d,%d): want overlap=%v, got %d", s1, e1, s2, e2, want, len(got))
					}
				}
			}
		}
	}
}

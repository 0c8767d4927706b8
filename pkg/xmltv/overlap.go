package xmltv

import "sort"

// Overlap is a pair of programmes on one channel whose [start, stop)
// intervals intersect. First starts no later than Second.
type Overlap struct {
	Channel string
	First   *Programme
	Second  *Programme
}

// FindOverlaps groups programmes by channel, orders each group by start
// time and pairs every programme that starts before an earlier one has
// stopped with the earlier programme that runs latest. Each programme is
// reported at most once, so a channel of n programmes yields at most n-1
// overlaps. Programmes without a channel or with stop <= start are ignored.
// A programme ending exactly when the next one starts does not overlap it.
//
// Results are ordered by channel (first appearance) and then by start time.
func FindOverlaps(programmes []*Programme) []Overlap {
	byChannel := make(map[string][]*Programme)
	var order []string
	for _, p := range programmes {
		if p.Channel == "" || !p.Stop.Time.After(p.Start.Time) {
			continue
		}
		if _, ok := byChannel[p.Channel]; !ok {
			order = append(order, p.Channel)
		}
		byChannel[p.Channel] = append(byChannel[p.Channel], p)
	}

	var overlaps []Overlap
	for _, channel := range order {
		progs := byChannel[channel]
		sort.SliceStable(progs, func(i, j int) bool {
			return progs[i].Start.Time.Before(progs[j].Start.Time)
		})

		// latest is the earlier programme with the furthest stop time.
		var latest *Programme
		for _, p := range progs {
			if latest != nil && latest.Stop.Time.After(p.Start.Time) {
				overlaps = append(overlaps, Overlap{Channel: channel, First: latest, Second: p})
			}
			if latest == nil || p.Stop.Time.After(latest.Stop.Time) {
				latest = p
			}
		}
	}
	return overlaps
}

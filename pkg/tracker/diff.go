package tracker

import (
	"sort"

	"github.com/dotalive/seriesd/pkg/feed"
)

// Diff is the set difference between two consecutive poll observations.
// Match IDs are sorted so the processing order is deterministic.
type Diff struct {
	// Appeared holds matches present now but not in the previous poll
	Appeared []string
	// Disappeared holds matches present in the previous poll but gone now
	Disappeared []string
}

// ComputeDiff compares consecutive observation maps keyed by match ID
func ComputeDiff(prev, curr map[string]*feed.MatchSnapshot) Diff {
	var d Diff

	for id := range curr {
		if _, ok := prev[id]; !ok {
			d.Appeared = append(d.Appeared, id)
		}
	}

	for id := range prev {
		if _, ok := curr[id]; !ok {
			d.Disappeared = append(d.Disappeared, id)
		}
	}

	sort.Strings(d.Appeared)
	sort.Strings(d.Disappeared)

	return d
}

package series

import (
	"errors"
	"fmt"

	"github.com/dotalive/seriesd/pkg/feed"
)

var (
	// ErrMalformedKey is returned for snapshots missing team or league
	// identity. Such snapshots are skipped, never correlated.
	ErrMalformedKey = errors.New("snapshot has malformed correlation key")
)

// Key is the unordered (team pair, league) tuple that groups matches into a
// series. Lo always holds the numerically lower team ID, so the key is the
// same regardless of which side the feed reports first.
type Key struct {
	LeagueID int64
	Lo       int64
	Hi       int64
}

// KeyFor computes the correlation key for a snapshot
func KeyFor(snap *feed.MatchSnapshot) (Key, error) {
	if snap.LeagueID == 0 || snap.RadiantTeam.ID == 0 || snap.DireTeam.ID == 0 {
		return Key{}, fmt.Errorf("%w: league=%d radiant=%d dire=%d",
			ErrMalformedKey, snap.LeagueID, snap.RadiantTeam.ID, snap.DireTeam.ID)
	}

	k := Key{LeagueID: snap.LeagueID, Lo: snap.RadiantTeam.ID, Hi: snap.DireTeam.ID}
	if k.Lo > k.Hi {
		k.Lo, k.Hi = k.Hi, k.Lo
	}

	return k, nil
}

// SeriesID derives the stable series identifier from the key. The ID is a
// pure function of the participants and league, so re-polling order cannot
// change it. This replaces the older scheme of naming a series after
// whichever match was observed first, which produced duplicate series under
// feed reordering.
func (k Key) SeriesID() string {
	return fmt.Sprintf("s:%d:%d:%d", k.LeagueID, k.Lo, k.Hi)
}

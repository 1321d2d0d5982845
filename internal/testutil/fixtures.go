package testutil

import (
	"time"

	"github.com/dotalive/seriesd/pkg/feed"
)

// Fixture team and league IDs shared across package tests
const (
	LeagueID  = int64(16935)
	RadiantID = int64(2586976)
	DireID    = int64(8599101)
)

// LiveSnapshot returns a mid-game snapshot between the fixture teams. Tests
// mutate the returned value to model score, duration and series metadata.
func LiveSnapshot(matchID string) feed.MatchSnapshot {
	return feed.MatchSnapshot{
		MatchID:         matchID,
		LeagueID:        LeagueID,
		LeagueName:      "Test League",
		RadiantTeam:     feed.TeamInfo{ID: RadiantID, Name: "Radiant Side"},
		DireTeam:        feed.TeamInfo{ID: DireID, Name: "Dire Side"},
		RadiantScore:    12,
		DireScore:       9,
		DurationSeconds: 1200,
		SeriesType:      1,
		ObservedAt:      time.Now().UTC(),
	}
}

// DraftSnapshot returns a snapshot still in its draft phase: no kills, no
// meaningful elapsed time
func DraftSnapshot(matchID string) feed.MatchSnapshot {
	snap := LiveSnapshot(matchID)
	snap.RadiantScore = 0
	snap.DireScore = 0
	snap.DurationSeconds = 0

	return snap
}

// SnapshotWithSeriesWins returns a live snapshot carrying authoritative
// series win counters
func SnapshotWithSeriesWins(matchID string, radiantWins, direWins int) feed.MatchSnapshot {
	snap := LiveSnapshot(matchID)
	snap.RadiantSeriesWins = radiantWins
	snap.DireSeriesWins = direWins
	snap.HasSeriesWins = true

	return snap
}

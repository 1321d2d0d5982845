// Package series implements series correlation for live match snapshots
package series

import "time"

// Status is the lifecycle state of a series
type Status string

const (
	// StatusActive means at least one of the series' matches is (or may
	// soon be) live
	StatusActive Status = "active"
	// StatusAwaitingEnrichment means the current match disappeared from
	// the feed and a detail fetch is pending
	StatusAwaitingEnrichment Status = "awaiting_enrichment"
	// StatusConcluded means one side has won more than half the games
	StatusConcluded Status = "concluded"
)

// DefaultMaxGames is assumed when the feed supplies no series metadata
const DefaultMaxGames = 3

// Team is one participant of a series
type Team struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Series is the correlation unit: a best-of-N sequence of matches between
// the same two opponents in one league. TeamA is always the side with the
// numerically lower team ID, so the record is independent of which side the
// feed happens to call radiant.
type Series struct {
	SeriesID string `json:"series_id"`
	LeagueID int64  `json:"league_id"`

	TeamA Team `json:"team_a"`
	TeamB Team `json:"team_b"`

	MaxGames int `json:"max_games"`
	ScoreA   int `json:"score_a"`
	ScoreB   int `json:"score_b"`

	// MatchIDs is in chronological order of first observation
	MatchIDs       []string `json:"match_ids"`
	CurrentMatchID string   `json:"current_match_id,omitempty"`

	Status Status `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GameNumber derives the current game number from the series score, clamped
// to MaxGames. It is never derived from the position of a match in MatchIDs:
// matches can be observed out of strict order.
func (s *Series) GameNumber() int {
	n := s.ScoreA + s.ScoreB + 1
	if n > s.MaxGames {
		return s.MaxGames
	}

	return n
}

// Decided reports whether one side has won more than half the games
func (s *Series) Decided() bool {
	return s.ScoreA > s.MaxGames/2 || s.ScoreB > s.MaxGames/2
}

// HasMatch reports whether the match already belongs to this series
func (s *Series) HasMatch(matchID string) bool {
	for _, id := range s.MatchIDs {
		if id == matchID {
			return true
		}
	}

	return false
}

// RemoveMatch deletes a match ID from the series, preserving order. Used by
// the administrative reassignment path only.
func (s *Series) RemoveMatch(matchID string) bool {
	for i, id := range s.MatchIDs {
		if id == matchID {
			s.MatchIDs = append(s.MatchIDs[:i], s.MatchIDs[i+1:]...)
			if s.CurrentMatchID == matchID {
				s.CurrentMatchID = ""
			}

			return true
		}
	}

	return false
}

// LowActivitySignal is a cycle-local alert raised when the combined kill
// count stays below a threshold inside a fixed elapsed-time window. It is
// re-evaluated every poll and never persisted as series state.
type LowActivitySignal struct {
	SeriesID        string
	MatchID         string
	TotalKills      int
	DurationSeconds int
}

package feed

import "time"

// Series format values reported by the feed's series_type field
const (
	SeriesTypeSingle = 0
	SeriesTypeBo3    = 1
	SeriesTypeBo5    = 2
)

// Draft phase heuristic: no kills and the clock barely started
const draftMaxDuration = 60

// TeamInfo identifies one side of a match
type TeamInfo struct {
	ID   int64  `json:"team_id"`
	Name string `json:"team_name"`
}

// PlayerInfo is one participant as reported by the live feed
type PlayerInfo struct {
	AccountID int64  `json:"account_id"`
	Name      string `json:"name"`
	Team      int    `json:"team"` // 0 = radiant, 1 = dire
}

// MatchSnapshot is one poll-cycle observation of an in-progress match.
// Two snapshots with the same MatchID describe the same match; score and
// duration are expected to be non-decreasing between them.
type MatchSnapshot struct {
	MatchID    string `json:"match_id"`
	LeagueID   int64  `json:"league_id"`
	LeagueName string `json:"league_name"`

	RadiantTeam TeamInfo     `json:"radiant_team"`
	DireTeam    TeamInfo     `json:"dire_team"`
	Players     []PlayerInfo `json:"players,omitempty"`

	RadiantScore    int `json:"radiant_score"`
	DireScore       int `json:"dire_score"`
	DurationSeconds int `json:"duration_seconds"`

	// Authoritative series counters, present only for some feeds
	SeriesType        int  `json:"series_type"`
	RadiantSeriesWins int  `json:"radiant_series_wins"`
	DireSeriesWins    int  `json:"dire_series_wins"`
	HasSeriesWins     bool `json:"has_series_wins"`

	ObservedAt time.Time `json:"observed_at"`
}

// TotalKills returns the combined kill count
func (m *MatchSnapshot) TotalKills() int {
	return m.RadiantScore + m.DireScore
}

// IsDraft reports whether the match looks like it is still in the draft
// phase rather than in play
func (m *MatchSnapshot) IsDraft() bool {
	return m.RadiantScore == 0 && m.DireScore == 0 && m.DurationSeconds < draftMaxDuration
}

// MaxGames converts the feed's series_type into a best-of-N length.
// Unknown values fall back to best-of-3, matching the feed's most common
// format.
func (m *MatchSnapshot) MaxGames() int {
	switch m.SeriesType {
	case SeriesTypeSingle:
		return 1
	case SeriesTypeBo5:
		return 5
	default:
		return 3
	}
}

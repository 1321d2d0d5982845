package detail

// PlayerDetail is one participant's final box-score line
type PlayerDetail struct {
	AccountID  int64  `json:"account_id"`
	Name       string `json:"name,omitempty"`
	PlayerSlot int    `json:"player_slot"`
	Kills      int    `json:"kills"`
	Deaths     int    `json:"deaths"`
	Assists    int    `json:"assists"`
	NetWorth   int    `json:"net_worth,omitempty"`
}

// MatchDetail is the authoritative post-match record from the secondary
// source. The secondary source lags the live feed by several seconds, so a
// freshly finished match may not be indexed yet.
type MatchDetail struct {
	MatchID      string         `json:"match_id"`
	LeagueID     int64          `json:"league_id"`
	StartTime    int64          `json:"start_time"`
	Duration     int            `json:"duration"`
	RadiantScore int            `json:"radiant_score"`
	DireScore    int            `json:"dire_score"`
	RadiantWin   *bool          `json:"radiant_win"`
	Players      []PlayerDetail `json:"players,omitempty"`
}

// Complete reports whether the detail is usable: the match must have a
// recorded duration and a winner. Partial records mean the source has not
// finished indexing the match yet.
func (d *MatchDetail) Complete() bool {
	return d.MatchID != "" && d.Duration > 0 && d.RadiantWin != nil
}

// Winner returns "radiant" or "dire", or empty if unknown
func (d *MatchDetail) Winner() string {
	if d.RadiantWin == nil {
		return ""
	}

	if *d.RadiantWin {
		return "radiant"
	}

	return "dire"
}

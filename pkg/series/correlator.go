package series

import (
	"github.com/sirupsen/logrus"

	"github.com/dotalive/seriesd/pkg/feed"
)

// Result is the outcome of correlating one poll batch
type Result struct {
	// Changed holds the series whose state actually changed this cycle,
	// for downstream persistence and notification
	Changed []*Series
	// Signals holds cycle-local low-activity alerts
	Signals []LowActivitySignal
}

// Correlator assigns match snapshots to series and derives score, game
// number and lifecycle state. It keeps no cross-cycle state of its own:
// everything it reads and mutates lives in the series map owned by the
// caller.
type Correlator struct {
	log logrus.FieldLogger
	cfg *Config
}

// NewCorrelator creates a new correlator
func NewCorrelator(log logrus.FieldLogger, cfg *Config) (*Correlator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Correlator{
		log: log.WithField("component", "correlator"),
		cfg: cfg,
	}, nil
}

// Apply correlates a batch of snapshots against the current series map.
// New series are inserted into the map; existing ones are mutated in place.
// prior holds the previous observation of each match, used only for feed
// anomaly detection. A malformed snapshot is skipped and logged; it never
// aborts the rest of the batch.
func (c *Correlator) Apply(snapshots []feed.MatchSnapshot, seriesMap map[string]*Series, prior map[string]*feed.MatchSnapshot) Result {
	var result Result

	for i := range snapshots {
		snap := &snapshots[i]

		key, err := KeyFor(snap)
		if err != nil {
			c.log.WithError(err).WithField("match_id", snap.MatchID).Warn("Skipping unrecognized snapshot")
			continue
		}

		c.checkAnomalies(snap, prior)

		s, changed := c.correlate(key, snap, seriesMap)
		if changed {
			result.Changed = append(result.Changed, s)
		}

		if sig, ok := c.lowActivity(s, snap); ok {
			result.Signals = append(result.Signals, sig)
		}
	}

	return result
}

// correlate assigns one snapshot to its series, creating the series when the
// key has never been seen. Returns the series and whether it changed.
func (c *Correlator) correlate(key Key, snap *feed.MatchSnapshot, seriesMap map[string]*Series) (*Series, bool) {
	id := key.SeriesID()

	s, exists := seriesMap[id]
	if !exists {
		s = c.newSeries(key, snap)
		seriesMap[id] = s

		c.log.WithFields(logrus.Fields{
			"series_id": s.SeriesID,
			"match_id":  snap.MatchID,
			"max_games": s.MaxGames,
		}).Info("Created series")

		return s, true
	}

	changed := false

	if !s.HasMatch(snap.MatchID) {
		s.MatchIDs = append(s.MatchIDs, snap.MatchID)
		changed = true

		c.log.WithFields(logrus.Fields{
			"series_id":   s.SeriesID,
			"match_id":    snap.MatchID,
			"game_number": s.GameNumber(),
		}).Info("Attached match to series")
	}

	if s.CurrentMatchID != snap.MatchID {
		s.CurrentMatchID = snap.MatchID
		changed = true
	}

	// A live observation overrides a pending disappearance
	if s.Status != StatusConcluded && s.Status != StatusActive {
		s.Status = StatusActive
		changed = true
	}

	if c.applyScores(s, snap) {
		changed = true
	}

	if c.applyConclusion(s) {
		changed = true
	}

	if changed {
		s.UpdatedAt = snap.ObservedAt
	}

	return s, changed
}

func (c *Correlator) newSeries(key Key, snap *feed.MatchSnapshot) *Series {
	teamA, teamB := orientTeams(key, snap)

	s := &Series{
		SeriesID:       key.SeriesID(),
		LeagueID:       key.LeagueID,
		TeamA:          teamA,
		TeamB:          teamB,
		MaxGames:       maxGamesFor(snap),
		MatchIDs:       []string{snap.MatchID},
		CurrentMatchID: snap.MatchID,
		Status:         StatusActive,
		CreatedAt:      snap.ObservedAt,
		UpdatedAt:      snap.ObservedAt,
	}

	c.applyScores(s, snap)
	c.applyConclusion(s)

	return s
}

// applyScores derives the series score. The feed's own win counters are
// authoritative when present; otherwise the stored score (maintained as
// matches conclude) stands. Returns whether the score changed.
func (c *Correlator) applyScores(s *Series, snap *feed.MatchSnapshot) bool {
	if !snap.HasSeriesWins {
		return false
	}

	winsA, winsB := snap.RadiantSeriesWins, snap.DireSeriesWins
	if s.TeamA.ID != snap.RadiantTeam.ID {
		winsA, winsB = winsB, winsA
	}

	if winsA == s.ScoreA && winsB == s.ScoreB {
		return false
	}

	if winsA < s.ScoreA || winsB < s.ScoreB {
		c.log.WithFields(logrus.Fields{
			"series_id": s.SeriesID,
			"stored":    [2]int{s.ScoreA, s.ScoreB},
			"feed":      [2]int{winsA, winsB},
		}).Warn("Feed series counters regressed, keeping stored score")

		return false
	}

	s.ScoreA, s.ScoreB = winsA, winsB

	return true
}

// applyConclusion flips the series to concluded when the score decides it
func (c *Correlator) applyConclusion(s *Series) bool {
	if s.Status == StatusConcluded {
		return false
	}

	if s.ScoreA+s.ScoreB+1 > s.MaxGames || s.Decided() {
		s.Status = StatusConcluded
		s.CurrentMatchID = ""

		c.log.WithFields(logrus.Fields{
			"series_id": s.SeriesID,
			"score":     [2]int{s.ScoreA, s.ScoreB},
		}).Info("Series concluded")

		return true
	}

	return false
}

// lowActivity raises a cycle-local signal for a match whose combined kill
// count is below the threshold inside the configured elapsed-time window.
// Draft-phase snapshots never qualify.
func (c *Correlator) lowActivity(s *Series, snap *feed.MatchSnapshot) (LowActivitySignal, bool) {
	if snap.IsDraft() {
		return LowActivitySignal{}, false
	}

	if snap.DurationSeconds < c.cfg.LowActivityWindowStart || snap.DurationSeconds > c.cfg.LowActivityWindowEnd {
		return LowActivitySignal{}, false
	}

	if snap.TotalKills() >= c.cfg.LowActivityThreshold {
		return LowActivitySignal{}, false
	}

	return LowActivitySignal{
		SeriesID:        s.SeriesID,
		MatchID:         snap.MatchID,
		TotalKills:      snap.TotalKills(),
		DurationSeconds: snap.DurationSeconds,
	}, true
}

// checkAnomalies logs feed violations of per-match monotonicity. Anomalies
// are never fatal.
func (c *Correlator) checkAnomalies(snap *feed.MatchSnapshot, prior map[string]*feed.MatchSnapshot) {
	if prior == nil {
		return
	}

	prev, ok := prior[snap.MatchID]
	if !ok {
		return
	}

	if snap.DurationSeconds < prev.DurationSeconds || snap.TotalKills() < prev.TotalKills() {
		c.log.WithFields(logrus.Fields{
			"match_id":      snap.MatchID,
			"prev_duration": prev.DurationSeconds,
			"curr_duration": snap.DurationSeconds,
			"prev_kills":    prev.TotalKills(),
			"curr_kills":    snap.TotalKills(),
		}).Warn("Feed anomaly: score or duration decreased for known match")
	}
}

func maxGamesFor(snap *feed.MatchSnapshot) int {
	if n := snap.MaxGames(); n > 0 {
		return n
	}

	return DefaultMaxGames
}

// orientTeams maps the feed's radiant/dire labels onto the stable TeamA/TeamB
// orientation (TeamA = lower team ID)
func orientTeams(key Key, snap *feed.MatchSnapshot) (teamA, teamB Team) {
	radiant := Team{ID: snap.RadiantTeam.ID, Name: snap.RadiantTeam.Name}
	dire := Team{ID: snap.DireTeam.ID, Name: snap.DireTeam.Name}

	if radiant.ID == key.Lo {
		return radiant, dire
	}

	return dire, radiant
}

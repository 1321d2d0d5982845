package store

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/dotalive/seriesd/pkg/series"
)

var (
	// ErrSameSeries is returned when the match already belongs to the target
	ErrSameSeries = errors.New("match already belongs to target series")
)

// ReassignMatch moves a match from its current series to the target series,
// recomputing both series' scores from the matches that remain attached.
// This is the supported correction path for a misassigned series; it
// replaces direct edits to the persisted tables.
func (s *Store) ReassignMatch(matchID, targetSeriesID string) error {
	s.mu.RLock()
	m, ok := s.matches[matchID]
	var sourceID string
	if ok {
		sourceID = m.SeriesID
	}
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}

	if sourceID == targetSeriesID {
		return ErrSameSeries
	}

	// Lock both series in sorted order to keep lock acquisition consistent
	// with PutSeries
	ids := []string{targetSeriesID}
	if sourceID != "" {
		ids = append(ids, sourceID)
	}
	sort.Strings(ids)

	for _, id := range ids {
		l := s.seriesLock(id)
		l.Lock()
		defer l.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.series[targetSeriesID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSeriesNotFound, targetSeriesID)
	}

	nextTarget := copySeries(target)

	var nextSource *series.Series

	if sourceID != "" {
		if source, exists := s.series[sourceID]; exists {
			nextSource = copySeries(source)
			nextSource.RemoveMatch(matchID)
			s.recomputeScoresLocked(nextSource)
		}
	}

	if !nextTarget.HasMatch(matchID) {
		nextTarget.MatchIDs = append(nextTarget.MatchIDs, matchID)
	}

	next := *m
	next.SeriesID = targetSeriesID
	s.matches[matchID] = &next

	s.recomputeScoresLocked(nextTarget)

	s.series[targetSeriesID] = nextTarget
	if nextSource != nil {
		s.series[sourceID] = nextSource
	}

	if err := saveTable(s, seriesTable, s.series); err != nil {
		return err
	}

	if err := saveTable(s, matchesTable, s.matches); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"match_id":      matchID,
		"source_series": sourceID,
		"target_series": targetSeriesID,
	}).Info("Reassigned match")

	return nil
}

// recomputeScoresLocked rebuilds a series' score from the finished matches
// still attached to it. Caller holds s.mu.
func (s *Store) recomputeScoresLocked(sr *series.Series) {
	sr.ScoreA, sr.ScoreB = 0, 0

	for _, matchID := range sr.MatchIDs {
		m, ok := s.matches[matchID]
		if !ok || m.Winner == "" || m.Snapshot == nil {
			continue
		}

		// Map the radiant/dire winner onto the series' stable orientation
		winnerID := m.Snapshot.DireTeam.ID
		if m.Winner == "radiant" {
			winnerID = m.Snapshot.RadiantTeam.ID
		}

		switch winnerID {
		case sr.TeamA.ID:
			sr.ScoreA++
		case sr.TeamB.ID:
			sr.ScoreB++
		}
	}

	if sr.Status == series.StatusConcluded && !sr.Decided() {
		sr.Status = series.StatusActive
	} else if sr.Decided() {
		sr.Status = series.StatusConcluded
		sr.CurrentMatchID = ""
	}
}

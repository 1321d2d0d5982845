package tracker

import (
	"github.com/sirupsen/logrus"

	"github.com/dotalive/seriesd/pkg/series"
)

// Publisher receives tracker lifecycle events. The default implementation
// logs them; a chat or webhook sink can replace it without touching the
// poll loop.
type Publisher interface {
	SeriesCreated(s *series.Series)
	SeriesConcluded(s *series.Series)
	MatchDisappeared(matchID, seriesID string)
	MatchReappeared(matchID, seriesID string)
	LowActivity(sig series.LowActivitySignal)

	// Terminal enrichment outcomes, forwarded by the enrichment scheduler
	EnrichmentSucceeded(matchID, seriesID string)
	EnrichmentAbandoned(matchID, seriesID string)
}

// LogPublisher emits every event as a structured log line
type LogPublisher struct {
	log logrus.FieldLogger
}

// NewLogPublisher creates a log-backed event publisher
func NewLogPublisher(log logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{log: log.WithField("component", "events")}
}

// SeriesCreated reports a newly tracked series
func (p *LogPublisher) SeriesCreated(s *series.Series) {
	p.log.WithFields(logrus.Fields{
		"series_id": s.SeriesID,
		"team_a":    s.TeamA.Name,
		"team_b":    s.TeamB.Name,
		"max_games": s.MaxGames,
	}).Info("Series created")
}

// SeriesConcluded reports a decided series
func (p *LogPublisher) SeriesConcluded(s *series.Series) {
	p.log.WithFields(logrus.Fields{
		"series_id": s.SeriesID,
		"score":     [2]int{s.ScoreA, s.ScoreB},
	}).Info("Series concluded")
}

// MatchDisappeared reports a match that vanished from the live feed
func (p *LogPublisher) MatchDisappeared(matchID, seriesID string) {
	p.log.WithFields(logrus.Fields{
		"match_id":  matchID,
		"series_id": seriesID,
	}).Info("Match disappeared from feed")
}

// MatchReappeared reports a feed flap
func (p *LogPublisher) MatchReappeared(matchID, seriesID string) {
	p.log.WithFields(logrus.Fields{
		"match_id":  matchID,
		"series_id": seriesID,
	}).Info("Match reappeared in feed")
}

// LowActivity reports a low-activity signal
func (p *LogPublisher) LowActivity(sig series.LowActivitySignal) {
	p.log.WithFields(logrus.Fields{
		"series_id":   sig.SeriesID,
		"match_id":    sig.MatchID,
		"total_kills": sig.TotalKills,
		"duration_s":  sig.DurationSeconds,
	}).Warn("Low activity inside detection window")
}

// EnrichmentSucceeded reports a merged post-match detail
func (p *LogPublisher) EnrichmentSucceeded(matchID, seriesID string) {
	p.log.WithFields(logrus.Fields{
		"match_id":  matchID,
		"series_id": seriesID,
	}).Info("Match enriched")
}

// EnrichmentAbandoned reports a match completed without detail
func (p *LogPublisher) EnrichmentAbandoned(matchID, seriesID string) {
	p.log.WithFields(logrus.Fields{
		"match_id":  matchID,
		"series_id": seriesID,
	}).Warn("Match completed without enrichment")
}

var _ Publisher = (*LogPublisher)(nil)

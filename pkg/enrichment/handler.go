package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/dotalive/seriesd/pkg/detail"
	"github.com/dotalive/seriesd/pkg/observability"
	"github.com/dotalive/seriesd/pkg/series"
	"github.com/dotalive/seriesd/pkg/store"
)

// HandleEnrichMatch runs one enrichment attempt. The attempt fetches the
// post-match record from the secondary source and merges it into the match
// and its owning series. A failed attempt schedules the second (and final)
// attempt; a failed final attempt abandons the task, recording the match as
// completed without detail.
func (s *service) HandleEnrichMatch(ctx context.Context, t *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal enrichment payload: %w", err)
	}

	log := s.log.WithFields(logrus.Fields{
		"match_id":  payload.MatchID,
		"series_id": payload.SeriesID,
		"attempt":   payload.Attempt,
	})

	if s.taskCancelled(ctx, payload.MatchID) {
		log.Info("Skipping enrichment attempt for reappeared match")
		observability.RecordEnrichmentAttempt("cancelled")

		return nil
	}

	log.Info("Running enrichment attempt")

	d, err := s.detail.FetchMatchDetail(ctx, payload.MatchID)
	if err != nil {
		return s.handleFailure(ctx, log, payload, err)
	}

	// The match may have reappeared while the fetch was in flight; a stale
	// completion must never overwrite a live match.
	if s.taskCancelled(ctx, payload.MatchID) {
		log.Info("Discarding fetched detail, match reappeared during attempt")
		observability.RecordEnrichmentAttempt("cancelled")

		return nil
	}

	return s.merge(log, payload, d)
}

// taskCancelled checks both the Redis reappearance flag and the persisted
// task state
func (s *service) taskCancelled(ctx context.Context, matchID string) bool {
	if s.cancelled(ctx, matchID) {
		return true
	}

	record, err := s.store.GetTask(matchID)

	return err == nil && record.State == store.TaskCancelled
}

func (s *service) handleFailure(ctx context.Context, log logrus.FieldLogger, payload TaskPayload, cause error) error {
	if !errors.Is(cause, detail.ErrNotYetAvailable) {
		log.WithError(cause).Warn("Enrichment attempt failed")
	} else {
		log.Info("Detail not yet available")
	}

	record := &store.TaskRecord{
		MatchID:    payload.MatchID,
		SeriesID:   payload.SeriesID,
		DetectedAt: payload.DetectedAt,
		Attempts:   payload.Attempt,
		State:      store.TaskPending,
	}

	if !payload.Final() {
		next := payload
		next.Attempt++

		if err := s.enqueue(ctx, next, payload.DetectedAt.Add(s.cfg.SecondDelay)); err != nil {
			return err
		}

		if err := s.store.PutTask(record); err != nil {
			log.WithError(err).Warn("Failed to persist retry bookkeeping")
		}

		observability.RecordEnrichmentAttempt("retry")
		log.WithField("run_at", payload.DetectedAt.Add(s.cfg.SecondDelay)).Info("Scheduled final enrichment attempt")

		return nil
	}

	return s.abandon(log, record)
}

// abandon records the terminal give-up state. The match is completed as far
// as the series is concerned, just without enriched detail; this is
// surfaced, not silently dropped.
func (s *service) abandon(log logrus.FieldLogger, record *store.TaskRecord) error {
	record.State = store.TaskAbandoned

	if err := s.store.PutTask(record); err != nil {
		return fmt.Errorf("persist abandoned task: %w", err)
	}

	err := s.store.MutateMatch(record.MatchID, func(m *store.MatchRecord) error {
		m.Status = store.MatchFinishedUnenriched
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrMatchNotFound) {
		return err
	}

	err = s.store.MutateSeries(record.SeriesID, func(sr *series.Series) error {
		if sr.CurrentMatchID == record.MatchID {
			sr.CurrentMatchID = ""
		}

		if sr.Status == series.StatusAwaitingEnrichment {
			sr.Status = series.StatusActive
		}

		return nil
	})
	if err != nil && !errors.Is(err, store.ErrSeriesNotFound) {
		return err
	}

	if s.notifier != nil {
		s.notifier.EnrichmentAbandoned(record.MatchID, record.SeriesID)
	}

	observability.RecordEnrichmentAttempt("abandoned")
	log.Warn("Abandoned enrichment after final attempt")

	return nil
}

// merge applies fetched detail to the match record and its owning series
func (s *service) merge(log logrus.FieldLogger, payload TaskPayload, d *detail.MatchDetail) error {
	record, err := s.store.GetMatch(payload.MatchID)
	if err != nil {
		return fmt.Errorf("load match for merge: %w", err)
	}

	if record.Status == store.MatchFinished {
		log.Debug("Match already enriched, skipping merge")
		return nil
	}

	winnerTeamID := int64(0)
	if record.Snapshot != nil {
		if d.Winner() == "radiant" {
			winnerTeamID = record.Snapshot.RadiantTeam.ID
		} else {
			winnerTeamID = record.Snapshot.DireTeam.ID
		}
	}

	var gameNumber int

	err = s.store.MutateSeries(payload.SeriesID, func(sr *series.Series) error {
		gameNumber = sr.GameNumber()

		switch winnerTeamID {
		case sr.TeamA.ID:
			sr.ScoreA++
		case sr.TeamB.ID:
			sr.ScoreB++
		default:
			log.WithField("winner_team_id", winnerTeamID).Warn("Winner does not match either side, score unchanged")
		}

		if sr.CurrentMatchID == payload.MatchID {
			sr.CurrentMatchID = ""
		}

		if sr.ScoreA+sr.ScoreB+1 > sr.MaxGames || sr.Decided() {
			sr.Status = series.StatusConcluded
			sr.CurrentMatchID = ""
		} else {
			sr.Status = series.StatusActive
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("merge into series: %w", err)
	}

	err = s.store.MutateMatch(payload.MatchID, func(m *store.MatchRecord) error {
		m.Detail = d
		m.Status = store.MatchFinished
		m.Winner = d.Winner()
		m.GameNumber = gameNumber
		m.LastSeen = time.Now().UTC()

		return nil
	})
	if err != nil {
		return fmt.Errorf("merge into match: %w", err)
	}

	taskRecord := &store.TaskRecord{
		MatchID:    payload.MatchID,
		SeriesID:   payload.SeriesID,
		DetectedAt: payload.DetectedAt,
		Attempts:   payload.Attempt,
		State:      store.TaskSucceeded,
	}

	if err := s.store.PutTask(taskRecord); err != nil {
		return fmt.Errorf("persist succeeded task: %w", err)
	}

	if s.notifier != nil {
		s.notifier.EnrichmentSucceeded(payload.MatchID, payload.SeriesID)
	}

	observability.RecordEnrichmentAttempt("succeeded")
	log.WithField("game_number", gameNumber).Info("Enrichment succeeded")

	return nil
}

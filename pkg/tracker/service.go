package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dotalive/seriesd/pkg/enrichment"
	"github.com/dotalive/seriesd/pkg/feed"
	"github.com/dotalive/seriesd/pkg/observability"
	"github.com/dotalive/seriesd/pkg/series"
	"github.com/dotalive/seriesd/pkg/store"
)

// Service defines the public interface for the tracker
type Service interface {
	// Start begins the poll loop
	Start(ctx context.Context) error

	// Stop gracefully shuts down the tracker
	Stop() error

	// RunCycle executes one poll cycle. Cycles never overlap; a second
	// caller blocks until the running cycle finishes.
	RunCycle(ctx context.Context) error
}

// service drives the poll loop. It owns the previous observation map, the
// only cross-cycle state disappearance detection needs.
type service struct {
	log logrus.FieldLogger
	cfg *Config

	done chan struct{}
	wg   sync.WaitGroup

	feed       feed.Client
	correlator *series.Correlator
	store      *store.Store
	enricher   enrichment.Service
	publisher  Publisher

	cycleMu sync.Mutex
	prev    map[string]*feed.MatchSnapshot
	active  bool
}

// NewService creates a new tracker service
func NewService(log logrus.FieldLogger, cfg *Config, feedClient feed.Client, correlator *series.Correlator, st *store.Store, enricher enrichment.Service, publisher Publisher) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &service{
		log:        log.WithField("service", "tracker"),
		cfg:        cfg,
		done:       make(chan struct{}),
		feed:       feedClient,
		correlator: correlator,
		store:      st,
		enricher:   enricher,
		publisher:  publisher,
		prev:       make(map[string]*feed.MatchSnapshot),
	}, nil
}

// Start begins the poll loop
func (s *service) Start(ctx context.Context) error {
	s.wg.Add(1)
	go s.run(ctx)

	s.log.WithFields(logrus.Fields{
		"idle_schedule": s.cfg.IdleSchedule,
		"active_min":    s.cfg.ActiveIntervalMin,
		"active_max":    s.cfg.ActiveIntervalMax,
	}).Info("Tracker started")

	return nil
}

// Stop gracefully shuts down the tracker
func (s *service) Stop() error {
	close(s.done)
	s.wg.Wait()

	s.log.Info("Tracker stopped")

	return nil
}

// run executes cycles back to back, sleeping the idle interval while the
// feed is empty and a short randomized interval while matches are live
func (s *service) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		if err := s.RunCycle(ctx); err != nil {
			s.log.WithError(err).Warn("Poll cycle failed, state unchanged")
		}

		timer := time.NewTimer(s.nextInterval())

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.done:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *service) nextInterval() time.Duration {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	if s.active {
		return s.cfg.ActiveInterval()
	}

	return s.cfg.IdleInterval()
}

// RunCycle executes one poll cycle
func (s *service) RunCycle(ctx context.Context) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	log := s.log.WithField("cycle_id", uuid.New().String())

	snapshots, err := s.feed.FetchLiveMatches(ctx)
	if err != nil {
		observability.RecordPollCycle("feed_unavailable")
		return fmt.Errorf("fetch live matches: %w", err)
	}

	curr := make(map[string]*feed.MatchSnapshot, len(snapshots))
	for i := range snapshots {
		curr[snapshots[i].MatchID] = &snapshots[i]
	}

	seriesMap := s.store.SeriesMap()

	priorStatus := make(map[string]series.Status, len(seriesMap))
	for id, sr := range seriesMap {
		priorStatus[id] = sr.Status
	}

	result := s.correlator.Apply(snapshots, seriesMap, s.prev)

	if err := s.persistMatches(snapshots, seriesMap); err != nil {
		return fmt.Errorf("persist matches: %w", err)
	}

	d := ComputeDiff(s.prev, curr)

	changed := make(map[string]*series.Series, len(result.Changed))
	for _, sr := range result.Changed {
		changed[sr.SeriesID] = sr
	}

	s.handleReappearances(ctx, log, d.Appeared)
	s.handleDisappearances(ctx, log, d.Disappeared, seriesMap, changed)

	if err := s.persistSeries(changed); err != nil {
		return fmt.Errorf("persist series: %w", err)
	}

	s.publishTransitions(priorStatus, changed)

	for _, sig := range result.Signals {
		s.publisher.LowActivity(sig)
		observability.RecordLowActivitySignal()
	}

	s.recordGauges(len(snapshots), seriesMap)
	observability.RecordPollCycle("success")

	log.WithFields(logrus.Fields{
		"live_matches": len(snapshots),
		"changed":      len(changed),
		"appeared":     len(d.Appeared),
		"disappeared":  len(d.Disappeared),
	}).Debug("Poll cycle complete")

	s.prev = curr
	s.active = len(snapshots) > 0

	return nil
}

// persistMatches upserts the per-match records for every snapshot observed
// this cycle. A record that already holds merged detail is left terminal.
func (s *service) persistMatches(snapshots []feed.MatchSnapshot, seriesMap map[string]*series.Series) error {
	records := make([]*store.MatchRecord, 0, len(snapshots))

	for i := range snapshots {
		snap := &snapshots[i]

		key, err := series.KeyFor(snap)
		if err != nil {
			continue
		}

		sr, ok := seriesMap[key.SeriesID()]
		if !ok {
			continue
		}

		record := &store.MatchRecord{
			MatchID:    snap.MatchID,
			SeriesID:   sr.SeriesID,
			GameNumber: sr.GameNumber(),
			Snapshot:   snap,
			Status:     store.MatchLive,
			FirstSeen:  snap.ObservedAt,
			LastSeen:   snap.ObservedAt,
		}

		if existing, getErr := s.store.GetMatch(snap.MatchID); getErr == nil {
			record.FirstSeen = existing.FirstSeen
			record.Detail = existing.Detail
			record.Winner = existing.Winner

			if existing.Status != store.MatchLive {
				record.Status = existing.Status
				record.GameNumber = existing.GameNumber
			}
		}

		records = append(records, record)
	}

	return s.store.PutMatches(records...)
}

// handleReappearances cancels pending enrichment for matches that came back.
// The correlator has already flipped their series back to active; the task
// side is handled here.
func (s *service) handleReappearances(ctx context.Context, log logrus.FieldLogger, appeared []string) {
	for _, matchID := range appeared {
		task, err := s.store.GetTask(matchID)
		if err != nil || task.State != store.TaskPending {
			continue
		}

		if err := s.enricher.Cancel(ctx, matchID); err != nil {
			log.WithError(err).WithField("match_id", matchID).Warn("Failed to cancel enrichment for reappeared match")
			continue
		}

		s.publisher.MatchReappeared(matchID, task.SeriesID)
		observability.RecordReappearance()

		log.WithFields(logrus.Fields{
			"match_id":  matchID,
			"series_id": task.SeriesID,
		}).Info("Match reappeared, enrichment cancelled")
	}
}

// handleDisappearances schedules enrichment for matches that vanished from
// the feed. A match still in its draft phase is discarded instead: nothing
// was played, so there is nothing to enrich.
func (s *service) handleDisappearances(ctx context.Context, log logrus.FieldLogger, disappeared []string, seriesMap map[string]*series.Series, changed map[string]*series.Series) {
	for _, matchID := range disappeared {
		snap := s.prev[matchID]

		key, err := series.KeyFor(snap)
		if err != nil {
			continue
		}

		sr, ok := seriesMap[key.SeriesID()]
		if !ok {
			continue
		}

		if snap.IsDraft() {
			if sr.RemoveMatch(matchID) {
				changed[sr.SeriesID] = sr
			}

			log.WithFields(logrus.Fields{
				"match_id":  matchID,
				"series_id": sr.SeriesID,
			}).Info("Discarded draft-phase match that never started")

			continue
		}

		if err := s.enricher.Schedule(ctx, matchID, sr.SeriesID, time.Now().UTC()); err != nil {
			log.WithError(err).WithField("match_id", matchID).Error("Failed to schedule enrichment")
			continue
		}

		if sr.Status == series.StatusActive {
			sr.Status = series.StatusAwaitingEnrichment
			changed[sr.SeriesID] = sr
		}

		s.publisher.MatchDisappeared(matchID, sr.SeriesID)
		observability.RecordDisappearance()
	}
}

func (s *service) persistSeries(changed map[string]*series.Series) error {
	if len(changed) == 0 {
		return nil
	}

	list := make([]*series.Series, 0, len(changed))
	for _, sr := range changed {
		list = append(list, sr)
	}

	return s.store.PutSeries(list...)
}

// publishTransitions emits creation and conclusion events derived from the
// status delta of this cycle
func (s *service) publishTransitions(priorStatus map[string]series.Status, changed map[string]*series.Series) {
	for id, sr := range changed {
		prior, existed := priorStatus[id]

		if !existed {
			s.publisher.SeriesCreated(sr)
			observability.RecordSeriesCreated()
		}

		if sr.Status == series.StatusConcluded && (!existed || prior != series.StatusConcluded) {
			s.publisher.SeriesConcluded(sr)
		}
	}
}

func (s *service) recordGauges(liveMatches int, seriesMap map[string]*series.Series) {
	observability.RecordLiveMatches(liveMatches)

	counts := map[series.Status]int{
		series.StatusActive:             0,
		series.StatusAwaitingEnrichment: 0,
		series.StatusConcluded:          0,
	}

	for _, sr := range seriesMap {
		counts[sr.Status]++
	}

	for status, n := range counts {
		observability.RecordSeriesByStatus(string(status), n)
	}
}

var _ Service = (*service)(nil)

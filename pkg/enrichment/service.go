package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/dotalive/seriesd/pkg/detail"
	r "github.com/dotalive/seriesd/pkg/redis"
	"github.com/dotalive/seriesd/pkg/store"
)

// Notifier receives terminal enrichment outcomes for the presentation layer
type Notifier interface {
	EnrichmentSucceeded(matchID, seriesID string)
	EnrichmentAbandoned(matchID, seriesID string)
}

// Service defines the public interface for the enrichment scheduler
type Service interface {
	// Start begins processing scheduled enrichment attempts
	Start(ctx context.Context) error

	// Stop gracefully shuts down the scheduler
	Stop() error

	// Schedule creates a pending task for a disappeared match and enqueues
	// the first delayed attempt
	Schedule(ctx context.Context, matchID, seriesID string, detectedAt time.Time) error

	// Cancel discards any pending or future attempts for a match that
	// reappeared in the live feed
	Cancel(ctx context.Context, matchID string) error

	// QueueDepth returns the number of waiting enrichment attempts
	QueueDepth() (int, error)
}

type service struct {
	log      logrus.FieldLogger
	cfg      *Config
	redisCfg *r.Config

	done chan struct{}
	wg   sync.WaitGroup

	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	inspector *asynq.Inspector
	rdb       *redis.Client

	store    *store.Store
	detail   detail.Client
	notifier Notifier
}

// NewService creates a new enrichment scheduler
func NewService(log logrus.FieldLogger, cfg *Config, redisCfg *r.Config, redisOpt *redis.Options, st *store.Store, detailClient detail.Client, notifier Notifier) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	asynqRedis := r.NewAsynqRedisOptions(redisOpt)

	server := asynq.NewServer(*asynqRedis, asynq.Config{
		Queues: map[string]int{
			cfg.Queue: 10,
		},
		Concurrency: cfg.Concurrency,
	})

	return &service{
		log:       log.WithField("service", "enrichment"),
		cfg:       cfg,
		redisCfg:  redisCfg,
		done:      make(chan struct{}),
		client:    asynq.NewClient(*asynqRedis),
		server:    server,
		mux:       asynq.NewServeMux(),
		inspector: asynq.NewInspector(*asynqRedis),
		rdb:       redis.NewClient(redisOpt),
		store:     st,
		detail:    detailClient,
		notifier:  notifier,
	}, nil
}

// Start registers the attempt handler and starts the asynq server
func (s *service) Start(_ context.Context) error {
	s.mux.HandleFunc(TypeEnrichMatch, s.HandleEnrichMatch)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if runErr := s.server.Run(s.mux); runErr != nil {
			s.log.WithError(runErr).Error("Enrichment server stopped with error")
		}
	}()

	s.log.Info("Enrichment scheduler started")

	return nil
}

// Stop gracefully shuts down the scheduler
func (s *service) Stop() error {
	close(s.done)

	if s.server != nil {
		s.server.Shutdown()
	}

	s.wg.Wait()

	if err := s.client.Close(); err != nil {
		s.log.WithError(err).Warn("Failed to close asynq client")
	}

	if err := s.rdb.Close(); err != nil {
		s.log.WithError(err).Warn("Failed to close redis client")
	}

	s.log.Info("Enrichment scheduler stopped")

	return nil
}

// Schedule persists a pending task record and enqueues attempt 1 to run
// FirstDelay after the disappearance was detected
func (s *service) Schedule(ctx context.Context, matchID, seriesID string, detectedAt time.Time) error {
	record := &store.TaskRecord{
		MatchID:    matchID,
		SeriesID:   seriesID,
		DetectedAt: detectedAt,
		Attempts:   0,
		State:      store.TaskPending,
	}

	if err := s.store.PutTask(record); err != nil {
		return fmt.Errorf("persist task record: %w", err)
	}

	// A fresh disappearance supersedes any stale cancellation flag
	if err := s.rdb.Del(ctx, s.cancelKey(matchID)).Err(); err != nil {
		s.log.WithError(err).WithField("match_id", matchID).Warn("Failed to clear cancellation flag")
	}

	payload := TaskPayload{
		MatchID:    matchID,
		SeriesID:   seriesID,
		DetectedAt: detectedAt,
		Attempt:    1,
	}

	if err := s.enqueue(ctx, payload, detectedAt.Add(s.cfg.FirstDelay)); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"match_id":  matchID,
		"series_id": seriesID,
		"run_at":    detectedAt.Add(s.cfg.FirstDelay),
	}).Info("Scheduled enrichment")

	return nil
}

// Cancel marks the task cancelled and removes any not-yet-run attempts.
// Cancellation is also flagged in Redis so an attempt already in flight
// discards its result instead of applying a stale completion.
func (s *service) Cancel(ctx context.Context, matchID string) error {
	if err := s.rdb.Set(ctx, s.cancelKey(matchID), "1", s.cfg.CancelFlagTTL).Err(); err != nil {
		return fmt.Errorf("set cancellation flag: %w", err)
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		taskID := TaskPayload{MatchID: matchID, Attempt: attempt}.UniqueID()

		if err := s.inspector.DeleteTask(s.cfg.Queue, taskID); err != nil && !isTaskMissing(err) {
			s.log.WithError(err).WithFields(logrus.Fields{
				"match_id": matchID,
				"task_id":  taskID,
			}).Warn("Failed to delete pending enrichment attempt")
		}
	}

	record, err := s.store.GetTask(matchID)
	if err == nil && record.State == store.TaskPending {
		record.State = store.TaskCancelled
		if err := s.store.PutTask(record); err != nil {
			return fmt.Errorf("persist cancelled task: %w", err)
		}
	}

	s.log.WithField("match_id", matchID).Info("Cancelled enrichment")

	return nil
}

// QueueDepth returns the number of waiting attempts in the enrichment queue
func (s *service) QueueDepth() (int, error) {
	info, err := s.inspector.GetQueueInfo(s.cfg.Queue)
	if err != nil {
		if isTaskMissing(err) {
			return 0, nil
		}

		return 0, err
	}

	return info.Pending + info.Scheduled + info.Retry, nil
}

func (s *service) enqueue(ctx context.Context, payload TaskPayload, runAt time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TypeEnrichMatch, data)

	_, err = s.client.EnqueueContext(ctx, task,
		asynq.TaskID(payload.UniqueID()),
		asynq.Queue(s.cfg.Queue),
		asynq.MaxRetry(0), // the retry schedule is ours, not asynq's
		asynq.Timeout(s.cfg.AttemptTimeout),
		asynq.ProcessAt(runAt),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			s.log.WithField("task_id", payload.UniqueID()).Debug("Attempt already queued, skipping")
			return nil
		}

		return fmt.Errorf("enqueue enrichment attempt: %w", err)
	}

	return nil
}

func (s *service) cancelKey(matchID string) string {
	return s.redisCfg.PrefixKey("enrich:cancelled:" + matchID)
}

// cancelled checks the reappearance flag for a match
func (s *service) cancelled(ctx context.Context, matchID string) bool {
	n, err := s.rdb.Exists(ctx, s.cancelKey(matchID)).Result()
	if err != nil {
		s.log.WithError(err).WithField("match_id", matchID).Warn("Failed to check cancellation flag")
		return false
	}

	return n > 0
}

func isTaskMissing(err error) bool {
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return true
	}

	msg := err.Error()

	return strings.Contains(msg, "NOT FOUND") || strings.Contains(msg, "not found")
}

var _ Service = (*service)(nil)

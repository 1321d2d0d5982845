package enrichment

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotalive/seriesd/internal/testutil"
	"github.com/dotalive/seriesd/pkg/detail"
	r "github.com/dotalive/seriesd/pkg/redis"
	"github.com/dotalive/seriesd/pkg/series"
	"github.com/dotalive/seriesd/pkg/store"
)

// stubDetailClient returns a canned detail record or error
type stubDetailClient struct {
	detail *detail.MatchDetail
	err    error
	calls  int
}

func (c *stubDetailClient) FetchMatchDetail(_ context.Context, _ string) (*detail.MatchDetail, error) {
	c.calls++

	if c.err != nil {
		return nil, c.err
	}

	return c.detail, nil
}

// stubNotifier records terminal outcomes
type stubNotifier struct {
	succeeded []string
	abandoned []string
}

func (n *stubNotifier) EnrichmentSucceeded(matchID, _ string) {
	n.succeeded = append(n.succeeded, matchID)
}

func (n *stubNotifier) EnrichmentAbandoned(matchID, _ string) {
	n.abandoned = append(n.abandoned, matchID)
}

type enrichmentFixture struct {
	mr       *miniredis.Miniredis
	svc      *service
	store    *store.Store
	detail   *stubDetailClient
	notifier *stubNotifier
}

func newFixture(t *testing.T, detailClient *stubDetailClient) *enrichmentFixture {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	mr, opts := testutil.NewMiniredis(t)

	st, err := store.Open(log, &store.Config{Dir: t.TempDir()})
	require.NoError(t, err)

	notifier := &stubNotifier{}

	cfg := &Config{
		Queue:          "enrichment",
		Concurrency:    1,
		FirstDelay:     2 * time.Second,
		SecondDelay:    10 * time.Second,
		AttemptTimeout: 30 * time.Second,
		CancelFlagTTL:  10 * time.Minute,
	}

	redisCfg := &r.Config{URL: testutil.RedisURL(mr), Prefix: "seriesd"}

	svc, err := NewService(log, cfg, redisCfg, opts, st, detailClient, notifier)
	require.NoError(t, err)

	t.Cleanup(func() {
		impl := svc.(*service)
		_ = impl.client.Close()
		_ = impl.rdb.Close()
	})

	return &enrichmentFixture{
		mr:       mr,
		svc:      svc.(*service),
		store:    st,
		detail:   detailClient,
		notifier: notifier,
	}
}

// seedSeries stores a series and live match record matching the fixture
// snapshot orientation
func seedSeries(t *testing.T, st *store.Store, matchID string) *series.Series {
	t.Helper()

	snap := testutil.LiveSnapshot(matchID)

	sr := &series.Series{
		SeriesID:       "s:test",
		LeagueID:       testutil.LeagueID,
		TeamA:          series.Team{ID: testutil.RadiantID, Name: "Radiant Side"},
		TeamB:          series.Team{ID: testutil.DireID, Name: "Dire Side"},
		MaxGames:       3,
		MatchIDs:       []string{matchID},
		CurrentMatchID: matchID,
		Status:         series.StatusAwaitingEnrichment,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	require.NoError(t, st.PutSeries(sr))

	require.NoError(t, st.PutMatches(&store.MatchRecord{
		MatchID:    matchID,
		SeriesID:   sr.SeriesID,
		GameNumber: 1,
		Snapshot:   &snap,
		Status:     store.MatchLive,
		FirstSeen:  snap.ObservedAt,
		LastSeen:   snap.ObservedAt,
	}))

	return sr
}

func attemptTask(t *testing.T, payload TaskPayload) *asynq.Task {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	return asynq.NewTask(TypeEnrichMatch, data)
}

func TestScheduleCreatesPendingTask(t *testing.T) {
	f := newFixture(t, &stubDetailClient{})
	ctx := context.Background()

	detectedAt := time.Now().UTC()
	require.NoError(t, f.svc.Schedule(ctx, "777", "s:test", detectedAt))

	record, err := f.store.GetTask("777")
	require.NoError(t, err)
	assert.Equal(t, store.TaskPending, record.State)
	assert.Equal(t, 0, record.Attempts)

	info, err := f.svc.inspector.GetTaskInfo("enrichment", TaskPayload{MatchID: "777", Attempt: 1}.UniqueID())
	require.NoError(t, err)
	assert.Equal(t, asynq.TaskStateScheduled, info.State)
}

func TestScheduleClearsStaleCancellationFlag(t *testing.T) {
	f := newFixture(t, &stubDetailClient{})
	ctx := context.Background()

	require.NoError(t, f.mr.Set("seriesd:enrich:cancelled:777", "1"))

	require.NoError(t, f.svc.Schedule(ctx, "777", "s:test", time.Now().UTC()))

	assert.False(t, f.mr.Exists("seriesd:enrich:cancelled:777"),
		"a fresh disappearance supersedes an old cancellation")
}

func TestCancelMarksTaskAndSetsFlag(t *testing.T) {
	f := newFixture(t, &stubDetailClient{})
	ctx := context.Background()

	require.NoError(t, f.svc.Schedule(ctx, "777", "s:test", time.Now().UTC()))
	require.NoError(t, f.svc.Cancel(ctx, "777"))

	assert.True(t, f.mr.Exists("seriesd:enrich:cancelled:777"))

	record, err := f.store.GetTask("777")
	require.NoError(t, err)
	assert.Equal(t, store.TaskCancelled, record.State)

	_, err = f.svc.inspector.GetTaskInfo("enrichment", TaskPayload{MatchID: "777", Attempt: 1}.UniqueID())
	assert.Error(t, err, "scheduled attempt must be deleted")
}

func TestHandleEnrichMatchSuccess(t *testing.T) {
	radiantWin := true
	f := newFixture(t, &stubDetailClient{detail: &detail.MatchDetail{
		MatchID:      "777",
		Duration:     2400,
		RadiantScore: 30,
		DireScore:    20,
		RadiantWin:   &radiantWin,
	}})
	seedSeries(t, f.store, "777")

	payload := TaskPayload{MatchID: "777", SeriesID: "s:test", DetectedAt: time.Now().UTC(), Attempt: 1}
	require.NoError(t, f.svc.HandleEnrichMatch(context.Background(), attemptTask(t, payload)))

	m, err := f.store.GetMatch("777")
	require.NoError(t, err)
	assert.Equal(t, store.MatchFinished, m.Status)
	assert.Equal(t, "radiant", m.Winner)
	require.NotNil(t, m.Detail)
	assert.Equal(t, 2400, m.Detail.Duration)

	sr, err := f.store.GetSeries("s:test")
	require.NoError(t, err)
	assert.Equal(t, 1, sr.ScoreA, "radiant is TeamA in this fixture")
	assert.Equal(t, series.StatusActive, sr.Status)
	assert.Empty(t, sr.CurrentMatchID)

	record, err := f.store.GetTask("777")
	require.NoError(t, err)
	assert.Equal(t, store.TaskSucceeded, record.State)

	assert.Equal(t, []string{"777"}, f.notifier.succeeded)
}

func TestHandleEnrichMatchConcludesSeries(t *testing.T) {
	radiantWin := true
	f := newFixture(t, &stubDetailClient{detail: &detail.MatchDetail{
		MatchID:    "777",
		Duration:   2400,
		RadiantWin: &radiantWin,
	}})

	sr := seedSeries(t, f.store, "777")
	require.NoError(t, f.store.MutateSeries(sr.SeriesID, func(next *series.Series) error {
		next.ScoreA = 1
		return nil
	}))

	payload := TaskPayload{MatchID: "777", SeriesID: "s:test", DetectedAt: time.Now().UTC(), Attempt: 1}
	require.NoError(t, f.svc.HandleEnrichMatch(context.Background(), attemptTask(t, payload)))

	got, err := f.store.GetSeries("s:test")
	require.NoError(t, err)
	assert.Equal(t, 2, got.ScoreA)
	assert.Equal(t, series.StatusConcluded, got.Status)
}

func TestHandleEnrichMatchSchedulesFinalAttempt(t *testing.T) {
	f := newFixture(t, &stubDetailClient{err: detail.ErrNotYetAvailable})
	seedSeries(t, f.store, "777")

	detectedAt := time.Now().UTC()
	payload := TaskPayload{MatchID: "777", SeriesID: "s:test", DetectedAt: detectedAt, Attempt: 1}
	require.NoError(t, f.svc.HandleEnrichMatch(context.Background(), attemptTask(t, payload)))

	info, err := f.svc.inspector.GetTaskInfo("enrichment", TaskPayload{MatchID: "777", Attempt: 2}.UniqueID())
	require.NoError(t, err)
	assert.Equal(t, asynq.TaskStateScheduled, info.State)

	record, err := f.store.GetTask("777")
	require.NoError(t, err)
	assert.Equal(t, store.TaskPending, record.State)
	assert.Equal(t, 1, record.Attempts)
}

func TestHandleEnrichMatchAbandonsAfterFinalAttempt(t *testing.T) {
	f := newFixture(t, &stubDetailClient{err: detail.ErrNotYetAvailable})
	seedSeries(t, f.store, "777")

	payload := TaskPayload{MatchID: "777", SeriesID: "s:test", DetectedAt: time.Now().UTC(), Attempt: 2}
	require.NoError(t, f.svc.HandleEnrichMatch(context.Background(), attemptTask(t, payload)))

	record, err := f.store.GetTask("777")
	require.NoError(t, err)
	assert.Equal(t, store.TaskAbandoned, record.State)

	m, err := f.store.GetMatch("777")
	require.NoError(t, err)
	assert.Equal(t, store.MatchFinishedUnenriched, m.Status)

	sr, err := f.store.GetSeries("s:test")
	require.NoError(t, err)
	assert.Equal(t, series.StatusActive, sr.Status, "series resumes without the lost detail")
	assert.Equal(t, 0, sr.ScoreA, "no winner means no score change")

	assert.Equal(t, []string{"777"}, f.notifier.abandoned)
}

func TestHandleEnrichMatchSkipsCancelled(t *testing.T) {
	radiantWin := true
	stub := &stubDetailClient{detail: &detail.MatchDetail{MatchID: "777", Duration: 2400, RadiantWin: &radiantWin}}
	f := newFixture(t, stub)
	seedSeries(t, f.store, "777")

	require.NoError(t, f.mr.Set("seriesd:enrich:cancelled:777", "1"))

	payload := TaskPayload{MatchID: "777", SeriesID: "s:test", DetectedAt: time.Now().UTC(), Attempt: 1}
	require.NoError(t, f.svc.HandleEnrichMatch(context.Background(), attemptTask(t, payload)))

	assert.Zero(t, stub.calls, "cancelled attempt must not hit the network")

	sr, err := f.store.GetSeries("s:test")
	require.NoError(t, err)
	assert.Equal(t, 0, sr.ScoreA, "stale completion must not change the series")
}

package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotalive/seriesd/internal/testutil"
	"github.com/dotalive/seriesd/pkg/series"
)

func newTestStore(t *testing.T, dir string) *Store {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	s, err := Open(log, &Config{Dir: dir})
	require.NoError(t, err)

	return s
}

func testSeries(id string) *series.Series {
	now := time.Now().UTC()

	return &series.Series{
		SeriesID:       id,
		LeagueID:       testutil.LeagueID,
		TeamA:          series.Team{ID: testutil.RadiantID, Name: "Radiant Side"},
		TeamB:          series.Team{ID: testutil.DireID, Name: "Dire Side"},
		MaxGames:       3,
		MatchIDs:       []string{"m1"},
		CurrentMatchID: "m1",
		Status:         series.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := newTestStore(t, dir)

	sr := testSeries("s:1:2:3")
	require.NoError(t, s.PutSeries(sr))

	snap := testutil.LiveSnapshot("m1")
	require.NoError(t, s.PutMatches(&MatchRecord{
		MatchID:    "m1",
		SeriesID:   sr.SeriesID,
		GameNumber: 1,
		Snapshot:   &snap,
		Status:     MatchLive,
		FirstSeen:  snap.ObservedAt,
		LastSeen:   snap.ObservedAt,
	}))

	require.NoError(t, s.PutTask(&TaskRecord{
		MatchID:    "m1",
		SeriesID:   sr.SeriesID,
		DetectedAt: time.Now().UTC(),
		State:      TaskPending,
	}))

	// Reopen from disk, everything must survive
	reopened := newTestStore(t, dir)

	got, err := reopened.GetSeries(sr.SeriesID)
	require.NoError(t, err)
	assert.Equal(t, sr.SeriesID, got.SeriesID)
	assert.Equal(t, []string{"m1"}, got.MatchIDs)

	m, err := reopened.GetMatch("m1")
	require.NoError(t, err)
	assert.Equal(t, MatchLive, m.Status)
	require.NotNil(t, m.Snapshot)
	assert.Equal(t, testutil.RadiantID, m.Snapshot.RadiantTeam.ID)

	task, err := reopened.GetTask("m1")
	require.NoError(t, err)
	assert.Equal(t, TaskPending, task.State)
}

func TestStoreQuarantinesCorruptTable(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, seriesTable), []byte("{not json"), 0o644))

	s := newTestStore(t, dir)

	assert.Empty(t, s.ListSeries(), "corrupt table starts empty")

	quarantined, err := filepath.Glob(filepath.Join(dir, seriesTable+".corrupt.*"))
	require.NoError(t, err)
	require.Len(t, quarantined, 1, "corrupt artifact must be preserved aside")

	// The store must be able to persist again after quarantine
	require.NoError(t, s.PutSeries(testSeries("s:1:2:3")))

	reopened := newTestStore(t, dir)
	_, err = reopened.GetSeries("s:1:2:3")
	require.NoError(t, err)
}

func TestStoreMutateSeries(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	sr := testSeries("s:1:2:3")
	require.NoError(t, s.PutSeries(sr))

	err := s.MutateSeries(sr.SeriesID, func(next *series.Series) error {
		next.ScoreA = 1
		next.Status = series.StatusConcluded
		return nil
	})
	require.NoError(t, err)

	got, err := s.GetSeries(sr.SeriesID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ScoreA)
	assert.Equal(t, series.StatusConcluded, got.Status)

	err = s.MutateSeries("missing", func(*series.Series) error { return nil })
	assert.ErrorIs(t, err, ErrSeriesNotFound)
}

func TestStoreMutationsAreCopyOnWrite(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	sr := testSeries("s:1:2:3")
	require.NoError(t, s.PutSeries(sr))

	// Mutating the caller's copy must not leak into the store
	sr.ScoreA = 99

	got, err := s.GetSeries(sr.SeriesID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ScoreA)

	// Mutating a returned copy must not leak either
	got.MatchIDs = append(got.MatchIDs, "m99")

	again, err := s.GetSeries(sr.SeriesID)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, again.MatchIDs)
}

func TestStoreMutateMatchNotFound(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	err := s.MutateMatch("missing", func(*MatchRecord) error { return nil })
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestStorePendingTasks(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	earlier := time.Now().UTC().Add(-time.Minute)
	later := time.Now().UTC()

	require.NoError(t, s.PutTask(&TaskRecord{MatchID: "m2", SeriesID: "s1", DetectedAt: later, State: TaskPending}))
	require.NoError(t, s.PutTask(&TaskRecord{MatchID: "m1", SeriesID: "s1", DetectedAt: earlier, State: TaskPending}))
	require.NoError(t, s.PutTask(&TaskRecord{MatchID: "m3", SeriesID: "s1", DetectedAt: earlier, State: TaskSucceeded}))

	pending := s.PendingTasks()
	require.Len(t, pending, 2)
	assert.Equal(t, "m1", pending[0].MatchID, "pending tasks ordered by detection time")
	assert.Equal(t, "m2", pending[1].MatchID)
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotalive/seriesd/internal/testutil"
	"github.com/dotalive/seriesd/pkg/feed"
	"github.com/dotalive/seriesd/pkg/series"
	"github.com/dotalive/seriesd/pkg/store"
)

// stubEnricher satisfies the enrichment interface without Redis
type stubEnricher struct {
	depth int
}

func (e *stubEnricher) Start(_ context.Context) error { return nil }
func (e *stubEnricher) Stop() error                   { return nil }
func (e *stubEnricher) Schedule(_ context.Context, _, _ string, _ time.Time) error {
	return nil
}
func (e *stubEnricher) Cancel(_ context.Context, _ string) error { return nil }
func (e *stubEnricher) QueueDepth() (int, error)                 { return e.depth, nil }

func newTestApp(t *testing.T) (*fiber.App, *store.Store) {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	st, err := store.Open(log, &store.Config{Dir: t.TempDir()})
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})

	h := newHandlers(st, &stubEnricher{depth: 2}, log)
	h.register(app.Group("/api/v1"))

	return app, st
}

func seedAPIFixture(t *testing.T, st *store.Store) *series.Series {
	t.Helper()

	now := time.Now().UTC()

	sr := &series.Series{
		SeriesID:       "s:100:5:9",
		LeagueID:       100,
		TeamA:          series.Team{ID: 5, Name: "Alpha"},
		TeamB:          series.Team{ID: 9, Name: "Beta"},
		MaxGames:       3,
		MatchIDs:       []string{"m1"},
		CurrentMatchID: "m1",
		Status:         series.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, st.PutSeries(sr))

	snap := testutil.LiveSnapshot("m1")
	snap.RadiantTeam = feed.TeamInfo{ID: 9, Name: "Beta"}
	snap.DireTeam = feed.TeamInfo{ID: 5, Name: "Alpha"}

	require.NoError(t, st.PutMatches(&store.MatchRecord{
		MatchID:    "m1",
		SeriesID:   sr.SeriesID,
		GameNumber: 1,
		Snapshot:   &snap,
		Status:     store.MatchLive,
		FirstSeen:  now,
		LastSeen:   now,
	}))

	require.NoError(t, st.PutTask(&store.TaskRecord{
		MatchID:    "m1",
		SeriesID:   sr.SeriesID,
		DetectedAt: now,
		State:      store.TaskPending,
	}))

	return sr
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
	_ = resp.Body.Close()
}

func TestListSeries(t *testing.T) {
	app, st := newTestApp(t)
	seedAPIFixture(t, st)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/series", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Series []*series.Series `json:"series"`
		Count  int              `json:"count"`
	}
	decodeBody(t, resp, &body)

	require.Equal(t, 1, body.Count)
	assert.Equal(t, "s:100:5:9", body.Series[0].SeriesID)
}

func TestListSeriesStatusFilter(t *testing.T) {
	app, st := newTestApp(t)
	seedAPIFixture(t, st)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/series?status=concluded", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Count int `json:"count"`
	}
	decodeBody(t, resp, &body)
	assert.Zero(t, body.Count)
}

func TestGetSeries(t *testing.T) {
	app, st := newTestApp(t)
	seedAPIFixture(t, st)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/series/s:100:5:9", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body seriesDetailResponse
	decodeBody(t, resp, &body)

	assert.Equal(t, "s:100:5:9", body.Series.SeriesID)
	require.Len(t, body.Matches, 1)
	assert.Equal(t, "m1", body.Matches[0].MatchID)
}

func TestGetSeriesNotFound(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/series/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListTasks(t *testing.T) {
	app, st := newTestApp(t)
	seedAPIFixture(t, st)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/enrichment/tasks", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body tasksResponse
	decodeBody(t, resp, &body)

	assert.Equal(t, 2, body.QueueDepth)
	require.Len(t, body.Pending, 1)
	assert.Equal(t, "m1", body.Pending[0].MatchID)
}

func TestReassignMatch(t *testing.T) {
	app, st := newTestApp(t)
	seedAPIFixture(t, st)

	target := &series.Series{
		SeriesID:  "s:100:5:11",
		LeagueID:  100,
		TeamA:     series.Team{ID: 5, Name: "Alpha"},
		TeamB:     series.Team{ID: 11, Name: "Gamma"},
		MaxGames:  3,
		Status:    series.StatusActive,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.PutSeries(target))

	payload, _ := json.Marshal(reassignRequest{TargetSeriesID: "s:100:5:11"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/matches/m1/reassign", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	m, err := st.GetMatch("m1")
	require.NoError(t, err)
	assert.Equal(t, "s:100:5:11", m.SeriesID)
}

func TestReassignMatchValidation(t *testing.T) {
	app, st := newTestApp(t)
	seedAPIFixture(t, st)

	t.Run("missing target", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/matches/m1/reassign", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown match", func(t *testing.T) {
		payload, _ := json.Marshal(reassignRequest{TargetSeriesID: "s:100:5:9"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/matches/missing/reassign", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("same series conflict", func(t *testing.T) {
		payload, _ := json.Marshal(reassignRequest{TargetSeriesID: "s:100:5:9"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/matches/m1/reassign", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

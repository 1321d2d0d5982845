package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrFeedUnavailable is returned when the feed cannot be reached or
	// responds with a non-2xx status. Callers treat it as an empty batch.
	ErrFeedUnavailable = errors.New("live feed unavailable")
)

// Client defines the live feed collaborator interface
type Client interface {
	// FetchLiveMatches returns snapshots for every match currently
	// reported live across the configured leagues
	FetchLiveMatches(ctx context.Context) ([]MatchSnapshot, error)
}

type client struct {
	log        logrus.FieldLogger
	cfg        *Config
	httpClient *http.Client
}

// NewClient creates a new live feed client
func NewClient(log logrus.FieldLogger, cfg *Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &client{
		log:        log.WithField("component", "feed"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// liveGamesResponse mirrors the feed's GetLiveLeagueGames payload
type liveGamesResponse struct {
	Result struct {
		Games []liveGame `json:"games"`
	} `json:"result"`
}

type liveGame struct {
	MatchID           json.Number `json:"match_id"`
	LeagueID          int64       `json:"league_id"`
	SeriesType        int         `json:"series_type"`
	RadiantSeriesWins *int        `json:"radiant_series_wins"`
	DireSeriesWins    *int        `json:"dire_series_wins"`
	RadiantTeam       TeamInfo    `json:"radiant_team"`
	DireTeam          TeamInfo    `json:"dire_team"`
	Players           []struct {
		AccountID int64  `json:"account_id"`
		Name      string `json:"name"`
		Team      int    `json:"team"`
	} `json:"players"`
	Scoreboard struct {
		Duration float64 `json:"duration"`
		Radiant  struct {
			Score int `json:"score"`
		} `json:"radiant"`
		Dire struct {
			Score int `json:"score"`
		} `json:"dire"`
	} `json:"scoreboard"`
}

// FetchLiveMatches polls every configured league. A league that fails is
// skipped; the batch from the remaining leagues is still returned.
func (c *client) FetchLiveMatches(ctx context.Context) ([]MatchSnapshot, error) {
	var all []MatchSnapshot

	failures := 0

	for _, league := range c.cfg.Leagues {
		games, err := c.fetchLeague(ctx, league)
		if err != nil {
			c.log.WithError(err).WithField("league_id", league.ID).Warn("Failed to fetch live games for league")
			failures++

			continue
		}

		all = append(all, games...)
	}

	if failures == len(c.cfg.Leagues) {
		return nil, ErrFeedUnavailable
	}

	c.log.WithField("count", len(all)).Debug("Fetched live matches")

	return all, nil
}

func (c *client) fetchLeague(ctx context.Context, league LeagueConfig) ([]MatchSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL, nil)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("key", c.cfg.APIKey)
	q.Set("league_id", strconv.FormatInt(league.ID, 10))
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrFeedUnavailable, resp.StatusCode, string(body))
	}

	var payload liveGamesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrFeedUnavailable, err)
	}

	observedAt := time.Now().UTC()
	snapshots := make([]MatchSnapshot, 0, len(payload.Result.Games))

	for i := range payload.Result.Games {
		snapshots = append(snapshots, c.toSnapshot(&payload.Result.Games[i], league, observedAt))
	}

	return snapshots, nil
}

func (c *client) toSnapshot(g *liveGame, league LeagueConfig, observedAt time.Time) MatchSnapshot {
	snap := MatchSnapshot{
		MatchID:         g.MatchID.String(),
		LeagueID:        league.ID,
		LeagueName:      league.Name,
		RadiantTeam:     g.RadiantTeam,
		DireTeam:        g.DireTeam,
		RadiantScore:    g.Scoreboard.Radiant.Score,
		DireScore:       g.Scoreboard.Dire.Score,
		DurationSeconds: int(g.Scoreboard.Duration),
		SeriesType:      g.SeriesType,
		ObservedAt:      observedAt,
	}

	// Counters are authoritative only when the feed actually supplies them
	if g.RadiantSeriesWins != nil && g.DireSeriesWins != nil {
		snap.RadiantSeriesWins = *g.RadiantSeriesWins
		snap.DireSeriesWins = *g.DireSeriesWins
		snap.HasSeriesWins = true
	}

	for _, p := range g.Players {
		snap.Players = append(snap.Players, PlayerInfo{AccountID: p.AccountID, Name: p.Name, Team: p.Team})
	}

	return snap
}

var _ Client = (*client)(nil)

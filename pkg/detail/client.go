package detail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNotYetAvailable is returned when the secondary source has not
	// indexed the match yet. Callers retry on their own schedule.
	ErrNotYetAvailable = errors.New("match detail not yet available")
	// ErrDetailUnavailable is returned for transport or server errors
	ErrDetailUnavailable = errors.New("detail source unavailable")
)

// Client defines the detail-fetch collaborator interface
type Client interface {
	// FetchMatchDetail fetches the post-match record for a match ID
	FetchMatchDetail(ctx context.Context, matchID string) (*MatchDetail, error)
}

type client struct {
	log        logrus.FieldLogger
	cfg        *Config
	httpClient *http.Client
}

// NewClient creates a new detail client
func NewClient(log logrus.FieldLogger, cfg *Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &client{
		log:        log.WithField("component", "detail"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// rawDetail mirrors the secondary source's match payload. The match ID comes
// back numeric there; internally match IDs stay opaque strings.
type rawDetail struct {
	MatchID      json.Number    `json:"match_id"`
	LeagueID     int64          `json:"leagueid"`
	StartTime    int64          `json:"start_time"`
	Duration     int            `json:"duration"`
	RadiantScore int            `json:"radiant_score"`
	DireScore    int            `json:"dire_score"`
	RadiantWin   *bool          `json:"radiant_win"`
	Players      []PlayerDetail `json:"players"`
}

func (c *client) FetchMatchDetail(ctx context.Context, matchID string) (*MatchDetail, error) {
	if !matchIDValid(matchID) {
		return nil, fmt.Errorf("%w: invalid match id %q", ErrDetailUnavailable, matchID)
	}

	endpoint := fmt.Sprintf("%s/matches/%s", c.cfg.BaseURL, matchID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetailUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotYetAvailable
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrDetailUnavailable, resp.StatusCode)
	}

	var raw rawDetail
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrDetailUnavailable, err)
	}

	d := &MatchDetail{
		MatchID:      raw.MatchID.String(),
		LeagueID:     raw.LeagueID,
		StartTime:    raw.StartTime,
		Duration:     raw.Duration,
		RadiantScore: raw.RadiantScore,
		DireScore:    raw.DireScore,
		RadiantWin:   raw.RadiantWin,
		Players:      raw.Players,
	}

	// Fall back to summing player kills when the source omits team scores
	if d.RadiantScore == 0 && d.DireScore == 0 && len(d.Players) > 0 {
		for _, p := range d.Players {
			if p.PlayerSlot < 128 {
				d.RadiantScore += p.Kills
			} else {
				d.DireScore += p.Kills
			}
		}
	}

	if !d.Complete() {
		c.log.WithField("match_id", matchID).Debug("Detail record incomplete, treating as not yet available")
		return nil, ErrNotYetAvailable
	}

	return d, nil
}

// matchIDValid is a cheap guard used before hitting the network
func matchIDValid(matchID string) bool {
	_, err := strconv.ParseUint(matchID, 10, 64)
	return err == nil
}

var _ Client = (*client)(nil)

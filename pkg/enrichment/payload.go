package enrichment

import (
	"fmt"
	"time"
)

const (
	// TypeEnrichMatch is the task type for enrichment attempts
	TypeEnrichMatch = "enrichment:match"

	// maxAttempts is the fixed attempt bound. Matches the secondary source
	// never indexes (exhibition games) must not leak retries forever.
	maxAttempts = 2
)

// TaskPayload is the payload for one enrichment attempt
type TaskPayload struct {
	MatchID    string    `json:"match_id"`
	SeriesID   string    `json:"series_id"`
	DetectedAt time.Time `json:"detected_at"`
	Attempt    int       `json:"attempt"` // 1-based
}

// UniqueID returns the task identifier for this attempt. Each attempt has
// its own ID so a re-scheduled second attempt never collides with the first.
func (p TaskPayload) UniqueID() string {
	return fmt.Sprintf("enrich:%s:%d", p.MatchID, p.Attempt)
}

// Final reports whether this is the last permitted attempt
func (p TaskPayload) Final() bool {
	return p.Attempt >= maxAttempts
}

package store

import (
	"time"

	"github.com/dotalive/seriesd/pkg/detail"
	"github.com/dotalive/seriesd/pkg/feed"
)

// Match lifecycle values recorded in the matches table
const (
	// MatchLive means the match was present in the most recent poll
	MatchLive = "live"
	// MatchFinished means the match concluded and detail was merged
	MatchFinished = "finished"
	// MatchFinishedUnenriched means the match concluded but the secondary
	// source never produced detail for it
	MatchFinishedUnenriched = "finished_unenriched"
)

// MatchRecord is the durable per-match state: the latest live snapshot plus
// post-match detail once enrichment succeeds
type MatchRecord struct {
	MatchID    string `json:"match_id"`
	SeriesID   string `json:"series_id"`
	GameNumber int    `json:"game_number"`

	Snapshot *feed.MatchSnapshot `json:"snapshot,omitempty"`
	Detail   *detail.MatchDetail `json:"detail,omitempty"`

	Status string `json:"status"`
	Winner string `json:"winner,omitempty"` // "radiant" or "dire"

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// TaskState is the lifecycle state of an enrichment task
type TaskState string

const (
	// TaskPending means an attempt is scheduled or in flight
	TaskPending TaskState = "pending"
	// TaskSucceeded means detail was fetched and merged
	TaskSucceeded TaskState = "succeeded"
	// TaskAbandoned means both attempts failed; the match is recorded as
	// completed without enriched detail
	TaskAbandoned TaskState = "abandoned"
	// TaskCancelled means the match reappeared in the live feed before a
	// terminal attempt ran
	TaskCancelled TaskState = "cancelled"
)

// TaskRecord is the persisted bookkeeping for one enrichment task
type TaskRecord struct {
	MatchID    string    `json:"match_id"`
	SeriesID   string    `json:"series_id"`
	DetectedAt time.Time `json:"detected_at"`
	Attempts   int       `json:"attempts"`
	State      TaskState `json:"state"`
	UpdatedAt  time.Time `json:"updated_at"`
}

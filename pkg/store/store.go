package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dotalive/seriesd/pkg/observability"
	"github.com/dotalive/seriesd/pkg/series"
)

// Persisted table names. Each table is independently loadable and
// recoverable.
const (
	seriesTable  = "series.json"
	matchesTable = "matches.json"
	tasksTable   = "enrich_tasks.json"
)

var (
	// ErrSeriesNotFound is returned when a series ID is unknown
	ErrSeriesNotFound = errors.New("series not found")
	// ErrMatchNotFound is returned when a match ID is unknown
	ErrMatchNotFound = errors.New("match not found")
)

// Store owns the durable representation of series, match history and
// enrichment bookkeeping. All state mutation funnels through it; writes are
// atomic per table, and per-series mutation is serialized through keyed
// locks so that a poll cycle and an enrichment completion can never
// interleave writes to the same series record.
type Store struct {
	log logrus.FieldLogger
	cfg *Config

	mu      sync.RWMutex
	series  map[string]*series.Series
	matches map[string]*MatchRecord
	tasks   map[string]*TaskRecord

	lockMu      sync.Mutex
	seriesLocks map[string]*sync.Mutex
}

// Open loads (or initializes) the store from disk. A corrupted table is
// quarantined aside for forensics and replaced with an empty one; the
// system must always be able to start from a clean slate.
func Open(log logrus.FieldLogger, cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	s := &Store{
		log:         log.WithField("component", "store"),
		cfg:         cfg,
		series:      make(map[string]*series.Series),
		matches:     make(map[string]*MatchRecord),
		tasks:       make(map[string]*TaskRecord),
		seriesLocks: make(map[string]*sync.Mutex),
	}

	loadTable(s, seriesTable, &s.series)
	loadTable(s, matchesTable, &s.matches)
	loadTable(s, tasksTable, &s.tasks)

	s.log.WithFields(logrus.Fields{
		"series":  len(s.series),
		"matches": len(s.matches),
		"tasks":   len(s.tasks),
	}).Info("Store opened")

	return s, nil
}

// loadTable reads one table into dst. Decode failures quarantine the
// artifact and leave dst empty rather than propagating the error.
func loadTable[T any](s *Store, name string, dst *map[string]*T) {
	path := filepath.Join(s.cfg.Dir, name)

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.WithError(err).WithField("table", name).Warn("Failed to read table, starting empty")
		}

		return
	}

	if len(data) == 0 {
		return
	}

	loaded := make(map[string]*T)
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.quarantine(path, name, err)
		return
	}

	*dst = loaded
}

// quarantine renames a corrupt artifact aside, preserving it for forensics
func (s *Store) quarantine(path, name string, cause error) {
	quarantined := fmt.Sprintf("%s.corrupt.%d", path, time.Now().Unix())

	if err := os.Rename(path, quarantined); err != nil {
		s.log.WithError(err).WithField("table", name).Error("Failed to quarantine corrupt table")
	}

	observability.RecordStoreCorruption(name)

	s.log.WithFields(logrus.Fields{
		"table":       name,
		"quarantined": quarantined,
		"cause":       cause.Error(),
	}).Warn("Quarantined corrupt table, starting empty")
}

// saveTable writes one table atomically: temp-file-then-rename, so a crash
// mid-write never leaves a half-written record visible to the next load.
func saveTable[T any](s *Store, name string, src map[string]*T) error {
	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	path := filepath.Join(s.cfg.Dir, name)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		observability.RecordStoreWrite(name, "error")
		return fmt.Errorf("write %s: %w", name, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		observability.RecordStoreWrite(name, "error")

		return fmt.Errorf("rename %s: %w", name, err)
	}

	observability.RecordStoreWrite(name, "success")

	return nil
}

// seriesLock returns the mutex serializing writes to one series
func (s *Store) seriesLock(seriesID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	l, ok := s.seriesLocks[seriesID]
	if !ok {
		l = &sync.Mutex{}
		s.seriesLocks[seriesID] = l
	}

	return l
}

// SeriesMap returns a deep copy of the series table for one correlation
// cycle. The caller mutates the copy and persists changes via PutSeries.
func (s *Store) SeriesMap() map[string]*series.Series {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*series.Series, len(s.series))
	for id, sr := range s.series {
		out[id] = copySeries(sr)
	}

	return out
}

// GetSeries returns a copy of one series
func (s *Store) GetSeries(seriesID string) (*series.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sr, ok := s.series[seriesID]
	if !ok {
		return nil, ErrSeriesNotFound
	}

	return copySeries(sr), nil
}

// ListSeries returns copies of all series, newest first
func (s *Store) ListSeries() []*series.Series {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*series.Series, 0, len(s.series))
	for _, sr := range s.series {
		out = append(out, copySeries(sr))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out
}

// PutSeries upserts the changed series from one poll cycle and persists the
// table. Per-series locks are taken in sorted order so concurrent enrichment
// completions for other series can proceed.
func (s *Store) PutSeries(changed ...*series.Series) error {
	if len(changed) == 0 {
		return nil
	}

	ids := make([]string, 0, len(changed))
	for _, sr := range changed {
		ids = append(ids, sr.SeriesID)
	}
	sort.Strings(ids)

	for _, id := range ids {
		l := s.seriesLock(id)
		l.Lock()
		defer l.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sr := range changed {
		s.series[sr.SeriesID] = copySeries(sr)
	}

	return saveTable(s, seriesTable, s.series)
}

// MutateSeries applies fn to one series under its writer lock and persists
// the result. fn sees a private copy; returning an error discards the
// mutation.
func (s *Store) MutateSeries(seriesID string, fn func(*series.Series) error) error {
	l := s.seriesLock(seriesID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	sr, ok := s.series[seriesID]
	if !ok {
		return ErrSeriesNotFound
	}

	next := copySeries(sr)
	if err := fn(next); err != nil {
		return err
	}

	next.UpdatedAt = time.Now().UTC()
	s.series[seriesID] = next

	return saveTable(s, seriesTable, s.series)
}

// GetMatch returns a copy of one match record
func (s *Store) GetMatch(matchID string) (*MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}

	cp := *m

	return &cp, nil
}

// PutMatches upserts match records and persists the matches table
func (s *Store) PutMatches(records ...*MatchRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range records {
		cp := *m
		s.matches[m.MatchID] = &cp
	}

	return saveTable(s, matchesTable, s.matches)
}

// MutateMatch applies fn to one match record and persists the table
func (s *Store) MutateMatch(matchID string, fn func(*MatchRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[matchID]
	if !ok {
		return ErrMatchNotFound
	}

	next := *m
	if err := fn(&next); err != nil {
		return err
	}

	s.matches[matchID] = &next

	return saveTable(s, matchesTable, s.matches)
}

// GetTask returns a copy of one enrichment task record
func (s *Store) GetTask(matchID string) (*TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}

	cp := *t

	return &cp, nil
}

// PutTask upserts one enrichment task record and persists the tasks table
func (s *Store) PutTask(t *TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	cp.UpdatedAt = time.Now().UTC()
	s.tasks[t.MatchID] = &cp

	return saveTable(s, tasksTable, s.tasks)
}

// PendingTasks returns copies of all non-terminal enrichment tasks
func (s *Store) PendingTasks() []*TaskRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*TaskRecord

	for _, t := range s.tasks {
		if t.State == TaskPending {
			cp := *t
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].DetectedAt.Before(out[j].DetectedAt)
	})

	return out
}

func copySeries(src *series.Series) *series.Series {
	cp := *src
	cp.MatchIDs = append([]string(nil), src.MatchIDs...)

	return &cp
}

// Package backfill closes gaps between stored history and the present.
// Progress is tracked in a small JSON state file persisted after every
// completed unit of work, so an interrupted multi-year load resumes where
// it stopped instead of starting over.
package backfill

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State is the resumable progress record for historical ingestion.
type State struct {
	DailyDone     bool              `json:"daily_done"`
	InstantDone   bool              `json:"instant_done"`
	LastDailyYear *int              `json:"last_daily_year,omitempty"`
	LastUpdate    *time.Time        `json:"last_update,omitempty"`
	SiteProgress  map[string]string `json:"site_progress,omitempty"`
}

// Note records per-site progress, creating the map on first use.
func (s *State) Note(siteCode, note string) {
	if s.SiteProgress == nil {
		s.SiteProgress = make(map[string]string)
	}
	s.SiteProgress[siteCode] = note
}

// StateStore persists State as a JSON file.
type StateStore struct {
	path string
}

// NewStateStore creates a store writing to the given path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Load reads the persisted state. A missing file yields a zero state so a
// first run starts from scratch.
func (s *StateStore) Load() (State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("read state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("decode state file: %w", err)
	}
	return state, nil
}

// Save writes the state atomically via a temp file and rename, so a crash
// mid-write never leaves a truncated state file.
func (s *StateStore) Save(state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".ingest-state-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

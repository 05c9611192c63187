package store

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// State records which tables have been ingested, so an interrupted ingest
// resumes where it stopped.
type State struct {
	path string

	mu        sync.Mutex
	completed map[string]bool
	updatedAt time.Time
}

// stateFile is the on-disk shape of State.
type stateFile struct {
	Completed []string  `json:"completed"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// LoadState reads the state file at path. A missing file yields empty state.
func LoadState(path string) (*State, error) {
	s := &State{path: path, completed: make(map[string]bool)}

	var sf stateFile
	if err := readJSON(path, &sf); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("decode state %s: %w", path, err)
	}

	for _, name := range sf.Completed {
		s.completed[name] = true
	}
	s.updatedAt = sf.UpdatedAt
	return s, nil
}

// IsCompleted reports whether a table has been ingested.
func (s *State) IsCompleted(tableName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed[tableName]
}

// MarkCompleted records a table as ingested. Call Save to persist.
func (s *State) MarkCompleted(tableName string) {
	s.mu.Lock()
	s.completed[tableName] = true
	s.mu.Unlock()
}

// Reset forgets every completed table.
func (s *State) Reset() {
	s.mu.Lock()
	s.completed = make(map[string]bool)
	s.mu.Unlock()
}

// Completed returns the ingested table names in sorted order.
func (s *State) Completed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.completed))
	for name := range s.completed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of completed tables.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed)
}

// Save writes the state file atomically.
func (s *State) Save() error {
	names := s.Completed()

	s.mu.Lock()
	s.updatedAt = time.Now().UTC()
	sf := stateFile{Completed: names, UpdatedAt: s.updatedAt}
	s.mu.Unlock()

	if err := writeJSONAtomic(s.path, sf); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

package alerts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type stateFile struct {
	Version   int                  `json:"version"`
	UpdatedAt time.Time            `json:"updated_at"`
	Alerts    map[string]time.Time `json:"alerts"`
}

// FileStore persists alert state in a JSON file so deduplication survives
// across separate invocations of the tool. A missing or unreadable state file
// is treated as empty state, never as a fatal condition.
type FileStore struct {
	mu        sync.Mutex
	path      string
	lastFired map[string]time.Time
}

func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	s.lastFired = s.load()
	return s, nil
}

func (s *FileStore) load() map[string]time.Time {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return make(map[string]time.Time)
	}

	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil {
		// Partially written or corrupt file: start over rather than abort.
		return make(map[string]time.Time)
	}
	if state.Alerts == nil {
		state.Alerts = make(map[string]time.Time)
	}
	return state.Alerts
}

func (s *FileStore) save() error {
	state := stateFile{
		Version:   1,
		UpdatedAt: time.Now().UTC(),
		Alerts:    s.lastFired,
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tempPath := fmt.Sprintf("%s.tmp", s.path)
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tempPath, s.path)
}

func (s *FileStore) ShouldFire(key Key, cooldown time.Duration, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastFired[key.String()]
	if !ok {
		return true, nil
	}
	return now.Sub(last) >= cooldown, nil
}

func (s *FileStore) RecordFired(key Key, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFired[key.String()] = now
	return s.save()
}

func (s *FileStore) Clear(key Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lastFired[key.String()]
	if !ok {
		return false, nil
	}
	delete(s.lastFired, key.String())
	return true, s.save()
}

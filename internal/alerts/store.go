package alerts

import (
	"sync"
	"time"
)

// Store persists the last-fired timestamp per alert key. At most one record
// exists per key; a cleared key has no record.
type Store interface {
	// ShouldFire reports whether the key may fire at time now: true when no
	// record exists or the existing record is at least cooldown old.
	ShouldFire(key Key, cooldown time.Duration, now time.Time) (bool, error)
	// RecordFired creates or overwrites the record for key.
	RecordFired(key Key, now time.Time) error
	// Clear deletes the record for key if present and reports whether one
	// existed. Clearing an absent key is a no-op.
	Clear(key Key) (bool, error)
}

// MemoryStore keeps alert state in process memory. Used by tests and when no
// durable backend is configured; deduplication then only holds within a
// single invocation.
type MemoryStore struct {
	mu        sync.Mutex
	lastFired map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lastFired: make(map[string]time.Time)}
}

func (s *MemoryStore) ShouldFire(key Key, cooldown time.Duration, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastFired[key.String()]
	if !ok {
		return true, nil
	}
	return now.Sub(last) >= cooldown, nil
}

func (s *MemoryStore) RecordFired(key Key, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFired[key.String()] = now
	return nil
}

func (s *MemoryStore) Clear(key Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lastFired[key.String()]
	delete(s.lastFired, key.String())
	return ok, nil
}

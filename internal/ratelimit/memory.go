package ratelimit

import (
	"sync"
	"time"
)

// MemoryStore is an in-memory Store that prunes expired records on read.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	nowFn   func() time.Time
}

// NewMemoryStore creates a new in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		nowFn:   time.Now,
	}
}

// SetClock overrides the store's time source. Pass nil to restore time.Now.
func (s *MemoryStore) SetClock(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = time.Now
	}
	s.nowFn = fn
}

func (s *MemoryStore) Get(key string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return Record{}, false
	}
	if rec.Expired(s.nowFn()) {
		delete(s.records, key)
		return Record{}, false
	}
	return rec, true
}

func (s *MemoryStore) Set(key string, rec Record) {
	s.mu.Lock()
	s.records[key] = rec
	s.mu.Unlock()
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
}

// Len returns the number of live records, pruning expired ones.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	for key, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, key)
		}
	}
	return len(s.records)
}

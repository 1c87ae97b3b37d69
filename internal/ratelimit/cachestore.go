package ratelimit

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/razy-dev/razy/internal/cache"
	"github.com/razy-dev/razy/internal/logging"
)

// CacheStore delegates record persistence to a cache.Store adapter, honouring
// a TTL of max(1s, reset_at - now) so the backend expires records on its own.
// Reads fail open and writes fail closed at the adapter boundary: a decode
// error is treated as an absent record.
type CacheStore struct {
	mu    sync.Mutex
	cache cache.Store
	nowFn func() time.Time
}

// NewCacheStore creates a Store backed by the given cache adapter.
func NewCacheStore(c cache.Store) *CacheStore {
	return &CacheStore{cache: c, nowFn: time.Now}
}

// SetClock overrides the store's time source. Pass nil to restore time.Now.
func (s *CacheStore) SetClock(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = time.Now
	}
	s.nowFn = fn
}

func (s *CacheStore) Get(key string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.cache.Get(key)
	if !ok {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		logging.Warn("Rate limit record decode failed, treating as absent",
			zap.String("key", key), zap.Error(err))
		s.cache.Delete(key)
		return Record{}, false
	}
	if rec.Expired(s.nowFn()) {
		s.cache.Delete(key)
		return Record{}, false
	}
	return rec, true
}

func (s *CacheStore) Set(key string, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		logging.Warn("Rate limit record encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	ttl := time.Duration(rec.ResetAt-s.nowFn().Unix()) * time.Second
	if ttl < time.Second {
		ttl = time.Second
	}
	s.cache.Set(key, data, ttl)
}

func (s *CacheStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(key)
}

package cache

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// entry wraps a stored value with its own expiry. The LRU's eviction handles
// capacity; expiry is checked on read so each key can carry a distinct TTL.
type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-memory LRU store implementing Store.
type MemoryStore struct {
	lru       *lru.Cache[string, *entry]
	evictions atomic.Int64
	maxSize   int
	nowFn     func() time.Time
}

// NewMemoryStore creates a new in-memory LRU store with the given max size.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 1000
	}
	s := &MemoryStore{maxSize: maxSize, nowFn: time.Now}
	s.lru, _ = lru.NewWithEvict[string, *entry](maxSize, func(string, *entry) {
		s.evictions.Add(1)
	})
	return s
}

// SetClock overrides the store's time source. Pass nil to restore time.Now.
func (s *MemoryStore) SetClock(fn func() time.Time) {
	if fn == nil {
		fn = time.Now
	}
	s.nowFn = fn
}

func (s *MemoryStore) Get(key string) ([]byte, bool) {
	e, ok := s.lru.Get(key)
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && !s.nowFn().Before(e.expiresAt) {
		s.lru.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (s *MemoryStore) Set(key string, value []byte, ttl time.Duration) {
	e := &entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.nowFn().Add(ttl)
	}
	s.lru.Add(key, e)
}

func (s *MemoryStore) Delete(key string) {
	s.lru.Remove(key)
}

func (s *MemoryStore) Stats() StoreStats {
	return StoreStats{
		Size:      s.lru.Len(),
		MaxSize:   s.maxSize,
		Evictions: s.evictions.Load(),
	}
}

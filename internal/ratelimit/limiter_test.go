package ratelimit

import (
	"errors"
	"testing"
	"time"

	"github.com/razy-dev/razy/internal/cache"
)

// fakeClock is a settable time source shared between limiter and store.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter() (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	l := NewLimiter(NewMemoryStore())
	l.SetCurrentTime(clock.Now)
	return l, clock
}

func TestLimiterHitIncrementsWithinWindow(t *testing.T) {
	l, _ := newTestLimiter()

	if got := l.Hit("k", time.Minute); got != 1 {
		t.Errorf("first hit = %d, want 1", got)
	}
	if got := l.Hit("k", time.Minute); got != 2 {
		t.Errorf("second hit = %d, want 2", got)
	}
	if got := l.Attempts("k"); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestLimiterWindowExpiryResetsCount(t *testing.T) {
	l, clock := newTestLimiter()

	l.Hit("k", time.Minute)
	l.Hit("k", time.Minute)

	clock.Advance(61 * time.Second)

	if got := l.Hit("k", time.Minute); got != 1 {
		t.Errorf("hit after expiry = %d, want 1", got)
	}
}

func TestLimiterPreservesResetAtWithinWindow(t *testing.T) {
	l, clock := newTestLimiter()

	l.Hit("k", time.Minute)
	want := l.ResetAt("k")

	clock.Advance(30 * time.Second)
	l.Hit("k", time.Minute)

	if got := l.ResetAt("k"); got != want {
		t.Errorf("reset_at moved from %d to %d within one window", want, got)
	}
}

func TestLimiterAttempt(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < 3; i++ {
		if err := l.Attempt("k", 3, time.Minute); err != nil {
			t.Fatalf("attempt %d rejected: %v", i+1, err)
		}
	}

	err := l.Attempt("k", 3, time.Minute)
	if err == nil {
		t.Fatal("fourth attempt allowed, want throttle")
	}

	var te *ThrottledError
	if !errors.As(err, &te) {
		t.Fatalf("error type = %T, want *ThrottledError", err)
	}
	if te.Key != "k" {
		t.Errorf("key = %q, want %q", te.Key, "k")
	}
	if te.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", te.MaxAttempts)
	}
	if te.RetryAfter <= 0 || te.RetryAfter > time.Minute {
		t.Errorf("retry after = %s, want within (0, 1m]", te.RetryAfter)
	}

	// Rejected attempts must not consume budget beyond the max.
	if got := l.Attempts("k"); got != 3 {
		t.Errorf("attempts after rejection = %d, want 3", got)
	}
}

func TestLimiterRemaining(t *testing.T) {
	l, _ := newTestLimiter()

	if got := l.Remaining("k", 5); got != 5 {
		t.Errorf("remaining before hits = %d, want 5", got)
	}
	l.Hit("k", time.Minute)
	l.Hit("k", time.Minute)
	if got := l.Remaining("k", 5); got != 3 {
		t.Errorf("remaining = %d, want 3", got)
	}
}

func TestLimiterAvailableIn(t *testing.T) {
	l, clock := newTestLimiter()

	l.Hit("k", time.Minute)
	if got := l.AvailableIn("k"); got != time.Minute {
		t.Errorf("available in = %s, want 1m", got)
	}

	clock.Advance(40 * time.Second)
	if got := l.AvailableIn("k"); got != 20*time.Second {
		t.Errorf("available in = %s, want 20s", got)
	}

	if got := l.AvailableIn("missing"); got != 0 {
		t.Errorf("available in for absent key = %s, want 0", got)
	}
}

func TestLimiterClear(t *testing.T) {
	l, _ := newTestLimiter()

	l.Hit("k", time.Minute)
	l.Clear("k")

	if got := l.Attempts("k"); got != 0 {
		t.Errorf("attempts after clear = %d, want 0", got)
	}
}

func TestMemoryStorePrunesExpiredOnRead(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	s := NewMemoryStore()
	s.SetClock(clock.Now)

	s.Set("k", Record{Hits: 2, ResetAt: clock.now.Add(time.Minute).Unix()})
	clock.Advance(2 * time.Minute)

	if _, ok := s.Get("k"); ok {
		t.Error("expired record returned from Get")
	}
	if got := s.Len(); got != 0 {
		t.Errorf("store length = %d, want 0 after prune", got)
	}
}

func TestCacheStoreHonoursTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	s := NewCacheStore(newFakeCache())
	s.SetClock(clock.Now)

	s.Set("k", Record{Hits: 1, ResetAt: clock.now.Add(time.Minute).Unix()})

	rec, ok := s.Get("k")
	if !ok {
		t.Fatal("record missing after set")
	}
	if rec.Hits != 1 {
		t.Errorf("hits = %d, want 1", rec.Hits)
	}

	clock.Advance(2 * time.Minute)
	if _, ok := s.Get("k"); ok {
		t.Error("expired record returned from cache store")
	}
}

func TestCacheStoreMinimumTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	fc := newFakeCache()
	s := NewCacheStore(fc)
	s.SetClock(clock.Now)

	// Window already at the boundary: TTL must clamp to at least one second.
	s.Set("k", Record{Hits: 1, ResetAt: clock.now.Unix()})
	if got := fc.lastTTL; got != time.Second {
		t.Errorf("ttl = %s, want 1s floor", got)
	}
}

// fakeCache is a minimal cache.Store for exercising CacheStore.
type fakeCache struct {
	data    map[string][]byte
	lastTTL time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(key string) ([]byte, bool) {
	v, ok := c.data[key]
	return v, ok
}

func (c *fakeCache) Set(key string, value []byte, ttl time.Duration) {
	c.data[key] = value
	c.lastTTL = ttl
}

func (c *fakeCache) Delete(key string) { delete(c.data, key) }

func (c *fakeCache) Stats() cache.StoreStats { return cache.StoreStats{} }

package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// ThrottledError is returned when a bucket has exhausted its window budget.
type ThrottledError struct {
	Key         string
	MaxAttempts int
	RetryAfter  time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %q: max %d, retry after %s",
		e.Key, e.MaxAttempts, e.RetryAfter)
}

// Limiter implements fixed-window hit counting over a pluggable Store.
// The window boundary is fixed at the first hit; hits inside an open window
// increment without moving reset_at.
type Limiter struct {
	store Store

	mu      sync.RWMutex
	current func() time.Time // test clock override; nil = time.Now
}

// NewLimiter creates a limiter over the given store.
func NewLimiter(store Store) *Limiter {
	return &Limiter{store: store}
}

// SetCurrentTime overrides the limiter's clock. Pass nil to restore time.Now.
func (l *Limiter) SetCurrentTime(fn func() time.Time) {
	l.mu.Lock()
	l.current = fn
	l.mu.Unlock()

	type clocked interface{ SetClock(func() time.Time) }
	if c, ok := l.store.(clocked); ok {
		c.SetClock(fn)
	}
}

func (l *Limiter) now() time.Time {
	l.mu.RLock()
	fn := l.current
	l.mu.RUnlock()
	if fn != nil {
		return fn()
	}
	return time.Now()
}

// Hit records an attempt against key, opening a fresh window of the given
// decay if none is live. Returns the hit count within the window.
func (l *Limiter) Hit(key string, decay time.Duration) int {
	now := l.now()
	rec, ok := l.store.Get(key)
	if !ok {
		rec = Record{Hits: 1, ResetAt: now.Add(decay).Unix()}
	} else {
		rec.Hits++
	}
	l.store.Set(key, rec)
	return rec.Hits
}

// Attempt records a hit unless the key already exceeded maxAttempts. On
// exceed it returns a ThrottledError carrying the key, the budget, and the
// time until the window resets.
func (l *Limiter) Attempt(key string, maxAttempts int, decay time.Duration) error {
	if l.TooManyAttempts(key, maxAttempts) {
		return &ThrottledError{
			Key:         key,
			MaxAttempts: maxAttempts,
			RetryAfter:  l.AvailableIn(key),
		}
	}
	l.Hit(key, decay)
	return nil
}

// TooManyAttempts reports whether key has used up its budget in the live window.
func (l *Limiter) TooManyAttempts(key string, maxAttempts int) bool {
	rec, ok := l.store.Get(key)
	if !ok {
		return false
	}
	return rec.Hits >= maxAttempts
}

// Attempts returns the hit count in the live window, or 0.
func (l *Limiter) Attempts(key string) int {
	rec, ok := l.store.Get(key)
	if !ok {
		return 0
	}
	return rec.Hits
}

// Remaining returns how many attempts are left out of maxAttempts.
func (l *Limiter) Remaining(key string, maxAttempts int) int {
	left := maxAttempts - l.Attempts(key)
	if left < 0 {
		return 0
	}
	return left
}

// AvailableIn returns the time until the key's window resets. Zero when no
// window is live.
func (l *Limiter) AvailableIn(key string) time.Duration {
	rec, ok := l.store.Get(key)
	if !ok {
		return 0
	}
	d := time.Duration(rec.ResetAt-l.now().Unix()) * time.Second
	if d < 0 {
		return 0
	}
	return d
}

// ResetAt returns the unix-seconds boundary of the live window, or 0.
func (l *Limiter) ResetAt(key string) int64 {
	rec, ok := l.store.Get(key)
	if !ok {
		return 0
	}
	return rec.ResetAt
}

// Clear drops the key's record.
func (l *Limiter) Clear(key string) {
	l.store.Delete(key)
}

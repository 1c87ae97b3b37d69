package ratelimit

import "time"

// Record is one fixed-window bucket. A record is expired once ResetAt is not
// after now; expired records must never influence subsequent attempts.
type Record struct {
	Hits    int   `json:"hits"`
	ResetAt int64 `json:"reset_at"` // unix seconds
}

// Expired reports whether the record's window has closed at the given time.
func (r Record) Expired(now time.Time) bool {
	return r.ResetAt <= now.Unix()
}

// Store persists fixed-window records. Get must return ok=false for expired
// records. Implementations serialize get-then-set on the same key against
// themselves; lost updates under extreme concurrency are tolerated.
type Store interface {
	Get(key string) (Record, bool)
	Set(key string, rec Record)
	Delete(key string)
}

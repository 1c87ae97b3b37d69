package ratelimit

import "time"

// Limit describes a fixed-window budget resolved for one request.
type Limit struct {
	MaxAttempts int
	Decay       time.Duration
	Key         string
	Unlimited   bool
}

// PerMinute allows n attempts per minute.
func PerMinute(n int) Limit {
	return Limit{MaxAttempts: n, Decay: time.Minute}
}

// PerMinutes allows n attempts per m minutes.
func PerMinutes(m, n int) Limit {
	return Limit{MaxAttempts: n, Decay: time.Duration(m) * time.Minute}
}

// PerHour allows n attempts per hour.
func PerHour(n int) Limit {
	return Limit{MaxAttempts: n, Decay: time.Hour}
}

// PerDay allows n attempts per day.
func PerDay(n int) Limit {
	return Limit{MaxAttempts: n, Decay: 24 * time.Hour}
}

// Per allows n attempts per custom decay window.
func Per(decay time.Duration, n int) Limit {
	return Limit{MaxAttempts: n, Decay: decay}
}

// None is an unlimited limit that bypasses tracking entirely.
func None() Limit {
	return Limit{Unlimited: true}
}

// By sets the bucket key for this limit.
func (l Limit) By(key string) Limit {
	l.Key = key
	return l
}

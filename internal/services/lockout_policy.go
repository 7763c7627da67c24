package services

import (
	"math"
	"time"

	"github.com/BradenHooton/authguard/internal/models"
)

// Lockout defaults
const (
	DefaultMaxAttempts     = 5
	DefaultAttemptWindow   = 1 * time.Hour
	DefaultLockoutDuration = 15 * time.Minute
)

// LockoutPolicy decides when a tracked identifier becomes locked and for how long.
// It holds no mutable state.
type LockoutPolicy struct {
	MaxAttempts     int
	AttemptWindow   time.Duration
	LockoutDuration time.Duration
}

// DefaultLockoutPolicy returns 5 failures per hour, 15 minute lockout
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxAttempts:     DefaultMaxAttempts,
		AttemptWindow:   DefaultAttemptWindow,
		LockoutDuration: DefaultLockoutDuration,
	}
}

// normalized replaces non-positive fields with defaults
func (p LockoutPolicy) normalized() LockoutPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.AttemptWindow <= 0 {
		p.AttemptWindow = DefaultAttemptWindow
	}
	if p.LockoutDuration <= 0 {
		p.LockoutDuration = DefaultLockoutDuration
	}
	return p
}

// ShouldLock reports whether a failure count reaches the lockout threshold
func (p LockoutPolicy) ShouldLock(attempts int) bool {
	return attempts >= p.MaxAttempts
}

// WindowExpired reports whether the gap since the last failure exceeds the attempt window
func (p LockoutPolicy) WindowExpired(lastAttemptAt, now time.Time) bool {
	return now.Sub(lastAttemptAt) > p.AttemptWindow
}

// LockedUntil returns the lock expiry for a failure recorded at now
func (p LockoutPolicy) LockedUntil(now time.Time) time.Time {
	return now.Add(p.LockoutDuration)
}

// RemainingLockoutSeconds returns the whole seconds left on a lock, rounded up.
// Used for messaging only, never for control flow.
func RemainingLockoutSeconds(record models.LoginAttemptRecord, now time.Time) int {
	if record.LockedUntil == nil {
		return 0
	}
	remaining := record.LockedUntil.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Seconds()))
}

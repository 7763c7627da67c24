package services

import (
	"strings"
	"sync"

	"github.com/BradenHooton/authguard/internal/models"
)

// Canonicalize normalizes a login identifier for use as a tracker key
func Canonicalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// AttemptTracker keeps per-identifier failed login counters within a sliding window.
// It performs no I/O.
type AttemptTracker struct {
	mu      sync.Mutex
	records map[string]*models.LoginAttemptRecord
	policy  LockoutPolicy
	clock   Clock
}

// NewAttemptTracker creates a new AttemptTracker
func NewAttemptTracker(policy LockoutPolicy, clock Clock) *AttemptTracker {
	if clock == nil {
		clock = RealClock{}
	}
	return &AttemptTracker{
		records: make(map[string]*models.LoginAttemptRecord),
		policy:  policy.normalized(),
		clock:   clock,
	}
}

// Policy returns the lockout policy in force
func (t *AttemptTracker) Policy() LockoutPolicy {
	return t.policy
}

// RecordAttempt records the outcome of an authentication attempt.
// Success removes the record; failure creates, resets or increments it and
// sets a lock once the policy threshold is reached.
func (t *AttemptTracker) RecordAttempt(identifier string, success bool) models.LoginAttemptRecord {
	key := Canonicalize(identifier)
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if success {
		delete(t.records, key)
		return models.LoginAttemptRecord{Identifier: key}
	}

	record, exists := t.records[key]
	if !exists || t.policy.WindowExpired(record.LastAttemptAt, now) {
		record = &models.LoginAttemptRecord{Identifier: key}
		t.records[key] = record
	}

	record.Attempts++
	record.LastAttemptAt = now

	if t.policy.ShouldLock(record.Attempts) {
		lockedUntil := t.policy.LockedUntil(now)
		record.LockedUntil = &lockedUntil
	}

	return copyRecord(record)
}

// IsLocked reports whether identifier is currently locked out.
// An expired lock discards the record.
func (t *AttemptTracker) IsLocked(identifier string) bool {
	key := Canonicalize(identifier)
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	record, exists := t.records[key]
	if !exists {
		return false
	}

	if record.LockedUntil != nil && !now.Before(*record.LockedUntil) {
		delete(t.records, key)
		return false
	}

	return record.IsLockedAt(now)
}

// Record returns a copy of the record for identifier, if any
func (t *AttemptTracker) Record(identifier string) (models.LoginAttemptRecord, bool) {
	key := Canonicalize(identifier)

	t.mu.Lock()
	defer t.mu.Unlock()

	record, exists := t.records[key]
	if !exists {
		return models.LoginAttemptRecord{}, false
	}
	return copyRecord(record), true
}

// Clear removes the record for identifier unconditionally
func (t *AttemptTracker) Clear(identifier string) {
	key := Canonicalize(identifier)

	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.records, key)
}

// Sweep discards records whose lock and attempt window have both elapsed.
// Returns the number of records removed.
func (t *AttemptTracker) Sweep() int {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, record := range t.records {
		if record.IsLockedAt(now) {
			continue
		}
		if !t.policy.WindowExpired(record.LastAttemptAt, now) {
			continue
		}
		delete(t.records, key)
		removed++
	}
	return removed
}

// Len returns the number of tracked identifiers
func (t *AttemptTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

func copyRecord(record *models.LoginAttemptRecord) models.LoginAttemptRecord {
	out := *record
	if record.LockedUntil != nil {
		lockedUntil := *record.LockedUntil
		out.LockedUntil = &lockedUntil
	}
	return out
}

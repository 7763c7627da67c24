package models

import "time"

// LoginAttemptRecord tracks consecutive failed logins for one canonical identifier
type LoginAttemptRecord struct {
	Identifier    string
	Attempts      int
	LastAttemptAt time.Time
	LockedUntil   *time.Time // Set only while locked
}

// IsLockedAt reports whether the record holds an active lock at now
func (r LoginAttemptRecord) IsLockedAt(now time.Time) bool {
	return r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

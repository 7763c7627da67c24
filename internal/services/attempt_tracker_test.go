package services

import (
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/authguard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestTracker() (*AttemptTracker, *FakeClock) {
	clock := NewFakeClock(testEpoch)
	return NewAttemptTracker(DefaultLockoutPolicy(), clock), clock
}

func TestAttemptTracker_LocksAfterMaxFailures(t *testing.T) {
	tracker, clock := newTestTracker()

	for i := 0; i < 4; i++ {
		tracker.RecordAttempt("alice@x.com", false)
		clock.Advance(2 * time.Minute)
	}
	assert.False(t, tracker.IsLocked("alice@x.com"), "4 failures must not lock")

	record := tracker.RecordAttempt("alice@x.com", false)
	assert.Equal(t, 5, record.Attempts)
	require.NotNil(t, record.LockedUntil)
	assert.Equal(t, clock.Now().Add(15*time.Minute), *record.LockedUntil)
	assert.True(t, tracker.IsLocked("alice@x.com"))

	clock.Advance(14*time.Minute + 59*time.Second)
	assert.True(t, tracker.IsLocked("alice@x.com"))

	clock.Advance(2 * time.Minute)
	assert.False(t, tracker.IsLocked("alice@x.com"))
	_, exists := tracker.Record("alice@x.com")
	assert.False(t, exists, "expired lock must discard the record")
}

func TestAttemptTracker_CanonicalizesIdentifier(t *testing.T) {
	tracker, _ := newTestTracker()

	tracker.RecordAttempt("Alice@X.com", false)
	tracker.RecordAttempt("  alice@x.com ", false)

	record, exists := tracker.Record("ALICE@x.COM")
	require.True(t, exists)
	assert.Equal(t, 2, record.Attempts)
	assert.Equal(t, "alice@x.com", record.Identifier)
	assert.Equal(t, 1, tracker.Len())
}

func TestAttemptTracker_SuccessRemovesRecord(t *testing.T) {
	tracker, _ := newTestTracker()

	for i := 0; i < 5; i++ {
		tracker.RecordAttempt("bob", false)
	}
	require.True(t, tracker.IsLocked("bob"))

	tracker.RecordAttempt("bob", true)

	_, exists := tracker.Record("bob")
	assert.False(t, exists)
	assert.False(t, tracker.IsLocked("bob"))
}

func TestAttemptTracker_WindowExpiryResetsCount(t *testing.T) {
	tracker, clock := newTestTracker()

	tracker.RecordAttempt("carol", false)
	tracker.RecordAttempt("carol", false)
	tracker.RecordAttempt("carol", false)

	clock.Advance(time.Hour + time.Second)
	record := tracker.RecordAttempt("carol", false)

	assert.Equal(t, 1, record.Attempts)
	assert.Nil(t, record.LockedUntil)
}

func TestAttemptTracker_ExactWindowDoesNotReset(t *testing.T) {
	tracker, clock := newTestTracker()

	tracker.RecordAttempt("dave", false)
	clock.Advance(time.Hour)
	record := tracker.RecordAttempt("dave", false)

	assert.Equal(t, 2, record.Attempts)
}

func TestAttemptTracker_FailureWhileLockedExtendsLock(t *testing.T) {
	tracker, clock := newTestTracker()

	for i := 0; i < 5; i++ {
		tracker.RecordAttempt("erin", false)
	}
	clock.Advance(10 * time.Minute)
	record := tracker.RecordAttempt("erin", false)

	assert.Equal(t, 6, record.Attempts)
	require.NotNil(t, record.LockedUntil)
	assert.Equal(t, clock.Now().Add(15*time.Minute), *record.LockedUntil)
}

func TestAttemptTracker_UnknownIdentifierNotLocked(t *testing.T) {
	tracker, _ := newTestTracker()
	assert.False(t, tracker.IsLocked("nobody"))
}

func TestAttemptTracker_Sweep(t *testing.T) {
	tracker, clock := newTestTracker()

	tracker.RecordAttempt("stale", false)
	for i := 0; i < 5; i++ {
		tracker.RecordAttempt("locked", false)
	}
	clock.Advance(61 * time.Minute)
	tracker.RecordAttempt("fresh", false)

	removed := tracker.Sweep()

	assert.Equal(t, 2, removed)
	_, freshExists := tracker.Record("fresh")
	assert.True(t, freshExists)
	assert.Equal(t, 1, tracker.Len())
}

func TestAttemptTracker_RecordReturnsCopy(t *testing.T) {
	tracker, _ := newTestTracker()
	for i := 0; i < 5; i++ {
		tracker.RecordAttempt("frank", false)
	}

	record, _ := tracker.Record("frank")
	*record.LockedUntil = testEpoch.Add(-time.Hour)

	assert.True(t, tracker.IsLocked("frank"))
}

func TestAttemptTracker_ConcurrentFailures(t *testing.T) {
	tracker, _ := newTestTracker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.RecordAttempt("grace", false)
		}()
	}
	wg.Wait()

	record, exists := tracker.Record("grace")
	require.True(t, exists)
	assert.Equal(t, 50, record.Attempts)
	assert.True(t, tracker.IsLocked("grace"))
}

func TestLockoutPolicy_Normalized(t *testing.T) {
	tracker := NewAttemptTracker(LockoutPolicy{}, nil)
	assert.Equal(t, DefaultLockoutPolicy(), tracker.Policy())

	custom := LockoutPolicy{MaxAttempts: 3, AttemptWindow: time.Minute, LockoutDuration: time.Second}
	assert.Equal(t, custom, NewAttemptTracker(custom, nil).Policy())
}

func TestLockoutPolicy_Decisions(t *testing.T) {
	policy := DefaultLockoutPolicy()

	assert.False(t, policy.ShouldLock(4))
	assert.True(t, policy.ShouldLock(5))
	assert.True(t, policy.ShouldLock(6))

	assert.False(t, policy.WindowExpired(testEpoch, testEpoch.Add(time.Hour)))
	assert.True(t, policy.WindowExpired(testEpoch, testEpoch.Add(time.Hour+time.Nanosecond)))

	assert.Equal(t, testEpoch.Add(15*time.Minute), policy.LockedUntil(testEpoch))
}

func TestRemainingLockoutSeconds(t *testing.T) {
	lockedUntil := testEpoch.Add(90 * time.Second)
	record := recordWithLock(&lockedUntil)

	assert.Equal(t, 90, RemainingLockoutSeconds(record, testEpoch))
	assert.Equal(t, 1, RemainingLockoutSeconds(record, testEpoch.Add(89500*time.Millisecond)))
	assert.Equal(t, 0, RemainingLockoutSeconds(record, testEpoch.Add(2*time.Minute)))
	assert.Equal(t, 0, RemainingLockoutSeconds(recordWithLock(nil), testEpoch))
}

func recordWithLock(lockedUntil *time.Time) models.LoginAttemptRecord {
	return models.LoginAttemptRecord{Identifier: "x", Attempts: 5, LockedUntil: lockedUntil}
}

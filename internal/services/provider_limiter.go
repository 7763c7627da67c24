package services

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultProviderRatePerMinute = 10
	limiterIdleTTL               = 10 * time.Minute
	limiterPruneThreshold        = 1024
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// emailLimiter is a token bucket per canonical email address
type emailLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	clock    Clock
}

func newEmailLimiter(perMinute int, clock Clock) *emailLimiter {
	if perMinute <= 0 {
		perMinute = defaultProviderRatePerMinute
	}
	return &emailLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		clock:    clock,
	}
}

// Allow consumes one token for email and reports whether it was available
func (l *emailLimiter) Allow(email string) bool {
	key := Canonicalize(email)
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= limiterPruneThreshold {
			l.pruneLocked(now)
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *emailLimiter) pruneLocked(now time.Time) {
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.limiters, key)
		}
	}
}

package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/BradenHooton/authguard/internal/models"
	pkglogger "github.com/BradenHooton/authguard/pkg/logger"
	"github.com/google/uuid"
)

// DefaultAuditCapacity is the number of entries retained by the security audit log
const DefaultAuditCapacity = 100

// SecurityAuditLog is an append-only, capacity-bounded log of security events.
// Entries are held newest first and handed out as copies.
type SecurityAuditLog struct {
	mu       sync.RWMutex
	entries  []models.SecurityLogEntry
	capacity int
	clock    Clock
	mirror   *pkglogger.AuditLogger
	logger   *slog.Logger
}

// NewSecurityAuditLog creates a new SecurityAuditLog. A nil mirror disables the slog copy.
func NewSecurityAuditLog(capacity int, clock Clock, mirror *pkglogger.AuditLogger, logger *slog.Logger) *SecurityAuditLog {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SecurityAuditLog{
		entries:  make([]models.SecurityLogEntry, 0, capacity),
		capacity: capacity,
		clock:    clock,
		mirror:   mirror,
		logger:   logger,
	}
}

// Append inserts entry at the head and evicts the oldest entries beyond capacity.
// Missing id, timestamp and client fields are filled in.
func (l *SecurityAuditLog) Append(ctx context.Context, entry models.SecurityLogEntry) models.SecurityLogEntry {
	if entry.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			l.logger.Warn("failed to generate v7 audit id, falling back to v4", slog.Any("error", err))
			id = uuid.New()
		}
		entry.ID = id
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.clock.Now()
	}
	if entry.IPAddress == "" {
		entry.IPAddress = models.UnknownClientValue
	}
	if entry.UserAgent == "" {
		entry.UserAgent = models.UnknownClientValue
	}
	if entry.UserID != nil {
		userID := *entry.UserID
		entry.UserID = &userID
	}

	l.mu.Lock()
	l.entries = append(l.entries, models.SecurityLogEntry{})
	copy(l.entries[1:], l.entries)
	l.entries[0] = entry
	if len(l.entries) > l.capacity {
		clear(l.entries[l.capacity:])
		l.entries = l.entries[:l.capacity]
	}
	l.mu.Unlock()

	if l.mirror != nil {
		event := pkglogger.AuditEvent{
			EntryID:   entry.ID.String(),
			EventType: string(entry.Action),
			IPAddress: entry.IPAddress,
			UserAgent: entry.UserAgent,
			Success:   entry.Success,
			Details:   entry.Details,
			Timestamp: entry.Timestamp,
		}
		if entry.UserID != nil {
			event.UserID = *entry.UserID
		}
		l.mirror.LogSecurityEvent(ctx, event)
	}

	return cloneEntry(entry)
}

// Query returns entries newest first. A non-nil userID keeps only entries
// attributed to that user; entries without a user are excluded.
func (l *SecurityAuditLog) Query(userID *string) []models.SecurityLogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.SecurityLogEntry, 0, len(l.entries))
	for _, entry := range l.entries {
		if userID != nil && !entry.HasUser(*userID) {
			continue
		}
		out = append(out, cloneEntry(entry))
	}
	return out
}

// Len returns the number of retained entries
func (l *SecurityAuditLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Capacity returns the retention bound
func (l *SecurityAuditLog) Capacity() int {
	return l.capacity
}

func cloneEntry(entry models.SecurityLogEntry) models.SecurityLogEntry {
	if entry.UserID != nil {
		userID := *entry.UserID
		entry.UserID = &userID
	}
	return entry
}

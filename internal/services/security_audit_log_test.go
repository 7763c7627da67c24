package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/authguard/internal/models"
	pkglogger "github.com/BradenHooton/authguard/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuditLog(capacity int) (*SecurityAuditLog, *FakeClock) {
	clock := NewFakeClock(testEpoch)
	return NewSecurityAuditLog(capacity, clock, nil, slog.Default()), clock
}

func userEntry(userID string, action models.SecurityAction) models.SecurityLogEntry {
	return models.SecurityLogEntry{UserID: &userID, Action: action, Success: true}
}

func TestSecurityAuditLog_AppendFillsDefaults(t *testing.T) {
	log, clock := newTestAuditLog(DefaultAuditCapacity)

	entry := log.Append(context.Background(), models.SecurityLogEntry{
		Action:  models.ActionLoginFailed,
		Details: "invalid credentials",
	})

	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, uuid.Version(7), entry.ID.Version())
	assert.Equal(t, clock.Now(), entry.Timestamp)
	assert.Equal(t, models.UnknownClientValue, entry.IPAddress)
	assert.Equal(t, models.UnknownClientValue, entry.UserAgent)
	assert.Nil(t, entry.UserID)
}

func TestSecurityAuditLog_NewestFirst(t *testing.T) {
	log, clock := newTestAuditLog(DefaultAuditCapacity)

	log.Append(context.Background(), userEntry("u1", models.ActionLoginFailed))
	clock.Advance(time.Second)
	log.Append(context.Background(), userEntry("u1", models.ActionLoginSuccess))

	entries := log.Query(nil)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActionLoginSuccess, entries[0].Action)
	assert.Equal(t, models.ActionLoginFailed, entries[1].Action)
	assert.True(t, entries[0].Timestamp.After(entries[1].Timestamp))
}

func TestSecurityAuditLog_CapacityEvictsOldest(t *testing.T) {
	log, _ := newTestAuditLog(DefaultAuditCapacity)

	for i := 0; i < DefaultAuditCapacity+1; i++ {
		log.Append(context.Background(), models.SecurityLogEntry{
			Action:  models.ActionLoginFailed,
			Details: fmt.Sprintf("attempt %d", i),
		})
	}

	entries := log.Query(nil)
	require.Len(t, entries, DefaultAuditCapacity)
	assert.Equal(t, DefaultAuditCapacity, log.Len())
	assert.Equal(t, "attempt 100", entries[0].Details)
	assert.Equal(t, "attempt 1", entries[len(entries)-1].Details)
	for _, entry := range entries {
		assert.NotEqual(t, "attempt 0", entry.Details)
	}
}

func TestSecurityAuditLog_QueryByUser(t *testing.T) {
	log, clock := newTestAuditLog(DefaultAuditCapacity)

	log.Append(context.Background(), userEntry("alice", models.ActionLoginSuccess))
	clock.Advance(time.Second)
	log.Append(context.Background(), userEntry("bob", models.ActionLoginSuccess))
	clock.Advance(time.Second)
	log.Append(context.Background(), models.SecurityLogEntry{Action: models.ActionLoginFailed})
	clock.Advance(time.Second)
	log.Append(context.Background(), userEntry("alice", models.ActionLogoutSuccess))

	alice := "alice"
	entries := log.Query(&alice)

	require.Len(t, entries, 2)
	assert.Equal(t, models.ActionLogoutSuccess, entries[0].Action)
	assert.Equal(t, models.ActionLoginSuccess, entries[1].Action)
	for _, entry := range entries {
		require.NotNil(t, entry.UserID)
		assert.Equal(t, "alice", *entry.UserID)
	}

	nobody := "nobody"
	assert.Empty(t, log.Query(&nobody))
	assert.Len(t, log.Query(nil), 4)
}

func TestSecurityAuditLog_QueryReturnsCopies(t *testing.T) {
	log, _ := newTestAuditLog(DefaultAuditCapacity)
	log.Append(context.Background(), userEntry("alice", models.ActionLoginSuccess))

	entries := log.Query(nil)
	*entries[0].UserID = "mallory"
	entries[0].Details = "tampered"

	fresh := log.Query(nil)
	assert.Equal(t, "alice", *fresh[0].UserID)
	assert.Empty(t, fresh[0].Details)
}

func TestSecurityAuditLog_MirrorsToSlog(t *testing.T) {
	var buf bytes.Buffer
	mirror := pkglogger.NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	log := NewSecurityAuditLog(10, NewFakeClock(testEpoch), mirror, slog.Default())

	userID := "alice"
	entry := log.Append(context.Background(), models.SecurityLogEntry{
		UserID:    &userID,
		Action:    models.ActionLoginFailed,
		Details:   "invalid credentials",
		IPAddress: "10.0.0.1",
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line))
	assert.Equal(t, "audit", line["msg"])
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "LOGIN_FAILED", line["event_type"])
	assert.Equal(t, "alice", line["user_id"])
	assert.Equal(t, "10.0.0.1", line["ip_address"])
	assert.Equal(t, entry.ID.String(), line["entry_id"])
}

func TestSecurityAuditLog_ConcurrentAppend(t *testing.T) {
	log, _ := newTestAuditLog(50)

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Append(context.Background(), models.SecurityLogEntry{Action: models.ActionLoginFailed})
			_ = log.Query(nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, log.Len())
	assert.Equal(t, 50, log.Capacity())
}

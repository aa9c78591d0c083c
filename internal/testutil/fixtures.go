package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/hanogt/hanogt-bot/internal/db"
)

// Code samples used across classifier and pipeline tests.
const (
	// MaliciousCode trips both systemCommands and fileAttacks.
	MaliciousCode = "import os\nos.system('rm -rf /')"
	// CleanCode trips nothing in the catalog.
	CleanCode = "print('hello world')"
)

// BanOption customizes a test ban record.
type BanOption func(*db.BanRecord)

// BanWithReason sets the ban reason.
func BanWithReason(reason string) BanOption {
	return func(b *db.BanRecord) {
		b.Reason = reason
	}
}

// MakeBan creates and inserts a ban record.
func MakeBan(t *testing.T, database *db.DB, email string, opts ...BanOption) *db.BanRecord {
	t.Helper()

	b := &db.BanRecord{
		Email:         email,
		Reason:        "test ban " + randHex(4),
		MaliciousCode: MaliciousCode,
		Permanent:     true,
		BannedBy:      "Hanogt Security Bot",
		BanType:       "PERMANENT_MALICIOUS_CODE",
	}
	for _, opt := range opts {
		opt(b)
	}
	RequireNoError(t, database.UpsertBan(context.Background(), b), "upsert ban")
	return b
}

// EventOption customizes a test security event.
type EventOption func(*db.SecurityEvent)

// EventWithType sets the event type.
func EventWithType(eventType string) EventOption {
	return func(ev *db.SecurityEvent) {
		ev.EventType = eventType
	}
}

// EventWithCreatedAt sets the event timestamp.
func EventWithCreatedAt(at time.Time) EventOption {
	return func(ev *db.SecurityEvent) {
		ev.CreatedAt = at
	}
}

// MakeEvent creates and inserts a security event.
func MakeEvent(t *testing.T, database *db.DB, email string, opts ...EventOption) *db.SecurityEvent {
	t.Helper()

	ev := &db.SecurityEvent{
		Email:           email,
		EventType:       "warning",
		Threats:         []string{"systemCommands"},
		Severity:        "critical",
		MatchedSnippets: []string{"os.system("},
		CodeSnippet:     MaliciousCode,
		IssuedBy:        "Hanogt Security Bot",
	}
	for _, opt := range opts {
		opt(ev)
	}
	RequireNoError(t, database.InsertEvent(context.Background(), ev), "insert event")
	return ev
}

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

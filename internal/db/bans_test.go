package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	database, err := OpenAndMigrate(path)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})
	return database
}

func TestUpsertBan_AndGet(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	b := &BanRecord{
		Email:         "user@example.com",
		Reason:        "malicious code detected",
		MaliciousCode: "os.system('rm -rf /')",
		Permanent:     true,
		BannedBy:      "Hanogt Security Bot",
		BanType:       "PERMANENT_MALICIOUS_CODE",
	}
	if err := database.UpsertBan(ctx, b); err != nil {
		t.Fatalf("UpsertBan: %v", err)
	}
	if b.BannedAt.IsZero() {
		t.Fatalf("BannedAt not set on insert")
	}

	got, err := database.GetBan(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("GetBan: %v", err)
	}
	if got.Reason != b.Reason || got.MaliciousCode != b.MaliciousCode {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	if !got.Permanent {
		t.Fatalf("permanent flag lost")
	}
}

func TestGetBan_NotFound(t *testing.T) {
	database := newTestDB(t)
	_, err := database.GetBan(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrBanNotFound) {
		t.Fatalf("err=%v want ErrBanNotFound", err)
	}
}

func TestUpsertBan_OverwritesExisting(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	first := &BanRecord{Email: "u@example.com", Reason: "first", MaliciousCode: "a", Permanent: true, BannedBy: "bot", BanType: "PERMANENT_MALICIOUS_CODE"}
	second := &BanRecord{Email: "u@example.com", Reason: "second", MaliciousCode: "b", Permanent: true, BannedBy: "bot", BanType: "PERMANENT_MALICIOUS_CODE"}

	if err := database.UpsertBan(ctx, first); err != nil {
		t.Fatalf("first UpsertBan: %v", err)
	}
	if err := database.UpsertBan(ctx, second); err != nil {
		t.Fatalf("second UpsertBan: %v", err)
	}

	got, err := database.GetBan(ctx, "u@example.com")
	if err != nil {
		t.Fatalf("GetBan: %v", err)
	}
	if got.Reason != "second" || got.MaliciousCode != "b" {
		t.Fatalf("expected second ban to win, got %+v", got)
	}
}

func TestSetUserBanFlag_AndGet(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	f := &UserBanFlag{Email: "u@example.com", Banned: true, BanReason: "violation", BannedAt: &now}
	if err := database.SetUserBanFlag(ctx, f); err != nil {
		t.Fatalf("SetUserBanFlag: %v", err)
	}

	got, err := database.GetUserBanFlag(ctx, "u@example.com")
	if err != nil {
		t.Fatalf("GetUserBanFlag: %v", err)
	}
	if !got.Banned || got.BanReason != "violation" {
		t.Fatalf("flag mismatch: %+v", got)
	}
	if got.BannedAt == nil || !got.BannedAt.Equal(now) {
		t.Fatalf("banned_at mismatch: %v want %v", got.BannedAt, now)
	}
}

func TestGetUserBanFlag_NotFound(t *testing.T) {
	database := newTestDB(t)
	_, err := database.GetUserBanFlag(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err=%v want ErrUserNotFound", err)
	}
}

func TestBanUserTx_WritesBoth(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	b := &BanRecord{Email: "u@example.com", Reason: "tx", MaliciousCode: "code", BannedAt: now, Permanent: true, BannedBy: "bot", BanType: "PERMANENT_MALICIOUS_CODE"}
	f := &UserBanFlag{Email: "u@example.com", Banned: true, BanReason: "tx", BannedAt: &now}

	if err := database.BanUserTx(ctx, b, f); err != nil {
		t.Fatalf("BanUserTx: %v", err)
	}

	if _, err := database.GetBan(ctx, "u@example.com"); err != nil {
		t.Fatalf("ban record missing after tx: %v", err)
	}
	flag, err := database.GetUserBanFlag(ctx, "u@example.com")
	if err != nil {
		t.Fatalf("user flag missing after tx: %v", err)
	}
	if !flag.Banned {
		t.Fatalf("user flag not set")
	}
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrBanNotFound is returned when no ban record exists for an identity.
var ErrBanNotFound = errors.New("ban record not found")

// ErrUserNotFound is returned when no user record exists for an identity.
var ErrUserNotFound = errors.New("user record not found")

// UpsertBan writes a ban record, replacing any existing record for the same
// email. Sets BannedAt to now if unset.
func (db *DB) UpsertBan(ctx context.Context, b *BanRecord) error {
	if b.Email == "" {
		return fmt.Errorf("email is required")
	}
	if b.BannedAt.IsZero() {
		b.BannedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO banned_users (email, reason, malicious_code, banned_at, permanent, banned_by, ban_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			reason = excluded.reason,
			malicious_code = excluded.malicious_code,
			banned_at = excluded.banned_at,
			permanent = excluded.permanent,
			banned_by = excluded.banned_by,
			ban_type = excluded.ban_type
	`, b.Email, b.Reason, b.MaliciousCode, b.BannedAt.Format(time.RFC3339), boolToInt(b.Permanent), b.BannedBy, b.BanType)
	if err != nil {
		return fmt.Errorf("upserting ban record: %w", err)
	}
	return nil
}

// GetBan retrieves the ban record for an email.
// Returns ErrBanNotFound if none exists.
func (db *DB) GetBan(ctx context.Context, email string) (*BanRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT email, reason, malicious_code, banned_at, permanent, banned_by, ban_type
		FROM banned_users WHERE email = ?
	`, email)

	b := &BanRecord{}
	var bannedAt string
	var permanent int
	err := row.Scan(&b.Email, &b.Reason, &b.MaliciousCode, &bannedAt, &permanent, &b.BannedBy, &b.BanType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBanNotFound
		}
		return nil, fmt.Errorf("scanning ban record: %w", err)
	}

	b.BannedAt, err = time.Parse(time.RFC3339, bannedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing banned_at: %w", err)
	}
	b.Permanent = permanent != 0

	return b, nil
}

// SetUserBanFlag merges the ban fields onto the user record, creating the row
// if the account subsystem has not written it yet. Only the ban fields are
// touched.
func (db *DB) SetUserBanFlag(ctx context.Context, f *UserBanFlag) error {
	if f.Email == "" {
		return fmt.Errorf("email is required")
	}

	var bannedAt any
	if f.BannedAt != nil {
		bannedAt = f.BannedAt.UTC().Format(time.RFC3339)
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO users (email, banned, ban_reason, banned_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			banned = excluded.banned,
			ban_reason = excluded.ban_reason,
			banned_at = excluded.banned_at
	`, f.Email, boolToInt(f.Banned), nullIfEmpty(f.BanReason), bannedAt)
	if err != nil {
		return fmt.Errorf("setting user ban flag: %w", err)
	}
	return nil
}

// GetUserBanFlag retrieves the ban fields of a user record.
// Returns ErrUserNotFound if no user row exists.
func (db *DB) GetUserBanFlag(ctx context.Context, email string) (*UserBanFlag, error) {
	row := db.QueryRowContext(ctx, `
		SELECT email, banned, ban_reason, banned_at FROM users WHERE email = ?
	`, email)

	f := &UserBanFlag{}
	var banned int
	var reason, bannedAt sql.NullString
	err := row.Scan(&f.Email, &banned, &reason, &bannedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user record: %w", err)
	}

	f.Banned = banned != 0
	if reason.Valid {
		f.BanReason = reason.String
	}
	if bannedAt.Valid && bannedAt.String != "" {
		t, err := time.Parse(time.RFC3339, bannedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing banned_at: %w", err)
		}
		t = t.UTC()
		f.BannedAt = &t
	}

	return f, nil
}

// BanUserTx writes the ban record and the user ban flag in one transaction,
// so enforcement cannot leave the two stores disagreeing.
func (db *DB) BanUserTx(ctx context.Context, b *BanRecord, f *UserBanFlag) error {
	if b.Email == "" {
		return fmt.Errorf("email is required")
	}
	if b.BannedAt.IsZero() {
		b.BannedAt = time.Now().UTC()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning ban transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO banned_users (email, reason, malicious_code, banned_at, permanent, banned_by, ban_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			reason = excluded.reason,
			malicious_code = excluded.malicious_code,
			banned_at = excluded.banned_at,
			permanent = excluded.permanent,
			banned_by = excluded.banned_by,
			ban_type = excluded.ban_type
	`, b.Email, b.Reason, b.MaliciousCode, b.BannedAt.Format(time.RFC3339), boolToInt(b.Permanent), b.BannedBy, b.BanType)
	if err != nil {
		return fmt.Errorf("writing ban record: %w", err)
	}

	var bannedAt any
	if f.BannedAt != nil {
		bannedAt = f.BannedAt.UTC().Format(time.RFC3339)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (email, banned, ban_reason, banned_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			banned = excluded.banned,
			ban_reason = excluded.ban_reason,
			banned_at = excluded.banned_at
	`, f.Email, boolToInt(f.Banned), nullIfEmpty(f.BanReason), bannedAt)
	if err != nil {
		return fmt.Errorf("writing user ban flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing ban transaction: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

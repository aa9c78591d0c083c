package enforce

import (
	"context"
	"errors"
	"time"

	"github.com/hanogt/hanogt-bot/internal/db"
)

// Source identifies which store answered a ban lookup.
type Source string

const (
	// SourceBanRecord means the authoritative ban record store answered.
	SourceBanRecord Source = "ban_record"
	// SourceUserFlag means the denormalized user flag answered. This covers
	// flags set by writers that predate the dedicated ban record.
	SourceUserFlag Source = "user_flag"
	// SourceError means the store could not be read and the configured
	// fail mode decided the answer.
	SourceError Source = "error"
)

// fallbackBanReason is reported when the user flag carries no reason.
const fallbackBanReason = "Güvenlik ihlali"

// BanStatus answers "is this identity banned, and why".
type BanStatus struct {
	Banned   bool       `json:"banned"`
	Reason   string     `json:"reason,omitempty"`
	BannedAt *time.Time `json:"banned_at,omitempty"`
	Source   Source     `json:"source,omitempty"`
}

// IsBanned checks whether an identity is banned. The ban record store is
// authoritative; the user flag is consulted only when no record exists.
//
// On a store read error the default is fail-closed: the identity is reported
// banned with Source set to SourceError. WithFailOpen restores the lenient
// behavior. IsBanned never panics past its boundary.
func (s *Service) IsBanned(ctx context.Context, email string) BanStatus {
	record, err := s.db.GetBan(ctx, email)
	if err == nil {
		bannedAt := record.BannedAt
		return BanStatus{
			Banned:   true,
			Reason:   record.Reason,
			BannedAt: &bannedAt,
			Source:   SourceBanRecord,
		}
	}
	if !errors.Is(err, db.ErrBanNotFound) {
		return s.lookupFailed(email, err)
	}

	flag, err := s.db.GetUserBanFlag(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return BanStatus{Banned: false}
		}
		return s.lookupFailed(email, err)
	}
	if !flag.Banned {
		return BanStatus{Banned: false}
	}

	reason := flag.BanReason
	if reason == "" {
		reason = fallbackBanReason
	}
	return BanStatus{
		Banned:   true,
		Reason:   reason,
		BannedAt: flag.BannedAt,
		Source:   SourceUserFlag,
	}
}

func (s *Service) lookupFailed(email string, err error) BanStatus {
	s.logger.Error("ban lookup failed", "email", email, "fail_open", s.failOpen, "error", err)
	if s.failOpen {
		return BanStatus{Banned: false, Source: SourceError}
	}
	return BanStatus{
		Banned: true,
		Reason: "ban status unavailable",
		Source: SourceError,
	}
}

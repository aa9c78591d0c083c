// Package enforce implements the ban pipeline around the classifier: the
// enforcement service that permanently bans an identity, the append-only
// audit trail, and the ban lookup consulted by login gating.
package enforce

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hanogt/hanogt-bot/internal/db"
)

const (
	// Authority is the issuing authority recorded on bans and audit events.
	Authority = "Hanogt Security Bot"
	// BanTypePermanent tags every ban written by this service. There are no
	// temporary bans.
	BanTypePermanent = "PERMANENT_MALICIOUS_CODE"

	// MaxStoredCodeLen bounds the offending code kept on a ban record.
	MaxStoredCodeLen = 2000
	// MaxAuditSnippetLen bounds the code snippet kept on an audit event.
	MaxAuditSnippetLen = 1000
)

// Service performs enforcement actions against the persistent store.
type Service struct {
	db       *db.DB
	logger   *log.Logger
	failOpen bool
	now      func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithFailOpen makes ban lookups report not-banned when the store cannot be
// read. The default is fail-closed.
func WithFailOpen(failOpen bool) Option {
	return func(s *Service) {
		s.failOpen = failOpen
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates an enforcement service.
func NewService(database *db.DB, logger *log.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{
		db:     database,
		logger: logger.WithPrefix("enforce"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ban permanently bans an identity: it writes the ban record and sets the
// ban flag on the user record in one transaction. The offending code is
// truncated to MaxStoredCodeLen before storage.
//
// Ban never panics or propagates an error; persistence failures are logged
// and reported as false. Re-banning an already banned identity overwrites
// the existing record (email is the key), so the operation is idempotent.
func (s *Service) Ban(ctx context.Context, email, reason, maliciousCode string) bool {
	if email == "" {
		s.logger.Error("ban rejected: empty email")
		return false
	}

	now := s.now()
	record := &db.BanRecord{
		Email:         email,
		Reason:        reason,
		MaliciousCode: truncate(maliciousCode, MaxStoredCodeLen),
		BannedAt:      now,
		Permanent:     true,
		BannedBy:      Authority,
		BanType:       BanTypePermanent,
	}
	flag := &db.UserBanFlag{
		Email:     email,
		Banned:    true,
		BanReason: reason,
		BannedAt:  &now,
	}

	if err := s.db.BanUserTx(ctx, record, flag); err != nil {
		s.logger.Error("banning user failed", "email", email, "error", err)
		return false
	}

	s.logger.Warn("user permanently banned", "email", email, "reason", reason)
	return true
}

// truncate bounds s to max runes without splitting a multi-byte character.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

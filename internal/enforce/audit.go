package enforce

import (
	"context"

	"github.com/hanogt/hanogt-bot/internal/core"
	"github.com/hanogt/hanogt-bot/internal/db"
)

// EventType classifies an audit entry.
type EventType string

const (
	EventWarning EventType = "warning"
	EventBlock   EventType = "block"
	EventBan     EventType = "ban"
)

// Record appends one security event to the audit trail, truncating the code
// snippet to MaxAuditSnippetLen.
//
// Audit failures must never abort the security decision they are describing,
// so persistence errors are logged and swallowed.
func (s *Service) Record(ctx context.Context, email string, eventType EventType, verdict *core.Verdict, code string) {
	ev := &db.SecurityEvent{
		Email:       email,
		EventType:   string(eventType),
		CodeSnippet: truncate(code, MaxAuditSnippetLen),
		CreatedAt:   s.now(),
		IssuedBy:    Authority,
	}

	if verdict != nil {
		ev.Severity = string(verdict.Severity)
		ev.Threats = make([]string, 0, len(verdict.Threats))
		for _, threat := range verdict.Threats {
			ev.Threats = append(ev.Threats, string(threat))
		}
		ev.MatchedSnippets = append([]string{}, verdict.MatchedSnippets...)
	} else {
		ev.Severity = string(core.SeverityLow)
	}

	if err := s.db.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("recording security event failed", "email", email, "event_type", eventType, "error", err)
	}
}

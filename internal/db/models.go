package db

import "time"

// BanRecord is the authoritative, permanent record that an identity is banned.
// Keyed by email; created once by enforcement and only ever overwritten by a
// subsequent ban of the same identity.
type BanRecord struct {
	Email         string    `json:"email"`
	Reason        string    `json:"reason"`
	MaliciousCode string    `json:"malicious_code"`
	BannedAt      time.Time `json:"banned_at"`
	Permanent     bool      `json:"permanent"`
	BannedBy      string    `json:"banned_by"`
	BanType       string    `json:"ban_type"`
}

// UserBanFlag is the denormalized ban indicator merged onto the user record.
// The user record itself belongs to the account subsystem; enforcement only
// touches these three fields.
type UserBanFlag struct {
	Email     string     `json:"email"`
	Banned    bool       `json:"banned"`
	BanReason string     `json:"ban_reason,omitempty"`
	BannedAt  *time.Time `json:"banned_at,omitempty"`
}

// SecurityEvent is one append-only audit entry.
type SecurityEvent struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	EventType       string    `json:"event_type"`
	Threats         []string  `json:"threats"`
	Severity        string    `json:"severity"`
	MatchedSnippets []string  `json:"matched_snippets"`
	CodeSnippet     string    `json:"code_snippet"`
	CreatedAt       time.Time `json:"created_at"`
	IssuedBy        string    `json:"issued_by"`
}

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrEventNotFound is returned when no security event exists for an ID.
var ErrEventNotFound = errors.New("security event not found")

// InsertEvent appends one security event. Generates a UUID if unset.
// Events are never updated or deleted individually; PruneEvents is the only
// destructive path and operates on age alone.
func (db *DB) InsertEvent(ctx context.Context, ev *SecurityEvent) error {
	if ev.Email == "" {
		return fmt.Errorf("email is required")
	}
	if ev.EventType == "" {
		return fmt.Errorf("event_type is required")
	}

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if ev.Threats == nil {
		ev.Threats = []string{}
	}
	if ev.MatchedSnippets == nil {
		ev.MatchedSnippets = []string{}
	}

	threats, err := json.Marshal(ev.Threats)
	if err != nil {
		return fmt.Errorf("encoding threats: %w", err)
	}
	snippets, err := json.Marshal(ev.MatchedSnippets)
	if err != nil {
		return fmt.Errorf("encoding matched snippets: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO security_events (id, email, event_type, threats, severity, matched_snippets, code_snippet, created_at, issued_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.Email, ev.EventType, string(threats), ev.Severity, string(snippets), ev.CodeSnippet, ev.CreatedAt.Format(time.RFC3339), ev.IssuedBy)
	if err != nil {
		return fmt.Errorf("inserting security event: %w", err)
	}
	return nil
}

// GetEvent retrieves a single security event by ID.
// Returns ErrEventNotFound if none exists.
func (db *DB) GetEvent(ctx context.Context, id string) (*SecurityEvent, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, email, event_type, threats, severity, matched_snippets, code_snippet, created_at, issued_by
		FROM security_events WHERE id = ?
	`, id)

	ev := &SecurityEvent{}
	var threats, snippets, createdAt string
	err := row.Scan(&ev.ID, &ev.Email, &ev.EventType, &threats, &ev.Severity, &snippets, &ev.CodeSnippet, &createdAt, &ev.IssuedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("scanning security event: %w", err)
	}
	if err := json.Unmarshal([]byte(threats), &ev.Threats); err != nil {
		return nil, fmt.Errorf("decoding threats: %w", err)
	}
	if err := json.Unmarshal([]byte(snippets), &ev.MatchedSnippets); err != nil {
		return nil, fmt.Errorf("decoding matched snippets: %w", err)
	}
	ev.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return ev, nil
}

// EventFilter narrows ListEvents results.
type EventFilter struct {
	Email     string
	EventType string
	Since     time.Time
	Limit     int
}

// ListEvents returns security events newest first, optionally filtered.
func (db *DB) ListEvents(ctx context.Context, filter EventFilter) ([]*SecurityEvent, error) {
	query := `
		SELECT id, email, event_type, threats, severity, matched_snippets, code_snippet, created_at, issued_by
		FROM security_events
		WHERE 1=1`
	var args []any

	if filter.Email != "" {
		query += " AND email = ?"
		args = append(args, filter.Email)
	}
	if filter.EventType != "" {
		query += " AND event_type = ?"
		args = append(args, filter.EventType)
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.Since.UTC().Format(time.RFC3339))
	}

	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying security events: %w", err)
	}
	defer rows.Close()

	var events []*SecurityEvent
	for rows.Next() {
		ev := &SecurityEvent{}
		var threats, snippets, createdAt string
		err := rows.Scan(&ev.ID, &ev.Email, &ev.EventType, &threats, &ev.Severity, &snippets, &ev.CodeSnippet, &createdAt, &ev.IssuedBy)
		if err != nil {
			return nil, fmt.Errorf("scanning security event: %w", err)
		}
		if err := json.Unmarshal([]byte(threats), &ev.Threats); err != nil {
			return nil, fmt.Errorf("decoding threats: %w", err)
		}
		if err := json.Unmarshal([]byte(snippets), &ev.MatchedSnippets); err != nil {
			return nil, fmt.Errorf("decoding matched snippets: %w", err)
		}
		ev.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating security events: %w", err)
	}
	return events, nil
}

// CountEvents returns the total number of stored security events.
func (db *DB) CountEvents(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM security_events`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting security events: %w", err)
	}
	return count, nil
}

// PruneEvents deletes events created before the cutoff and reports how many
// were removed. Retention is an operator decision; the enforcement pipeline
// itself never deletes events.
func (db *DB) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	result, err := db.ExecContext(ctx, `
		DELETE FROM security_events WHERE created_at < ?
	`, before.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("pruning security events: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return n, nil
}

// Package activity records an immutable trail of user-visible actions.
package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// EntryType classifies an activity entry.
type EntryType string

const (
	// EntryAppointmentBooked is recorded when an appointment is created.
	EntryAppointmentBooked EntryType = "appointment.booked"
	// EntryAppointmentCancelled is recorded when an appointment is cancelled.
	EntryAppointmentCancelled EntryType = "appointment.cancelled"
	// EntryAppointmentRescheduled is recorded when an appointment is moved.
	EntryAppointmentRescheduled EntryType = "appointment.rescheduled"
	// EntryAppointmentCompleted is recorded when an appointment is completed.
	EntryAppointmentCompleted EntryType = "appointment.completed"
)

// Entry is one activity record visible to its participants.
type Entry struct {
	ID           string          `json:"id"`
	Type         EntryType       `json:"type"`
	ActorID      string          `json:"actor_id"`
	Participants []string        `json:"participants"`
	Summary      string          `json:"summary"`
	Details      json.RawMessage `json:"details,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Recorder writes activity entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Service persists activity entries to Postgres.
type Service struct {
	db *sql.DB
}

// NewService creates an activity service.
func NewService(db *sql.DB) *Service {
	if db == nil {
		return nil
	}
	return &Service{db: db}
}

// Record inserts one activity entry.
func (s *Service) Record(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO user_activity (
			id, type, actor_id, participants, summary, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Type,
		entry.ActorID,
		pq.Array(entry.Participants),
		entry.Summary,
		entry.Details,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("activity: failed to record entry: %w", err)
	}
	return nil
}

// ListForUser returns the most recent entries that include the user as a
// participant, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT id, type, actor_id, participants, summary, details, created_at
		FROM user_activity
		WHERE $1 = ANY(participants)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("activity: failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.Type, &e.ActorID, pq.Array(&e.Participants), &e.Summary, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("activity: failed to scan entry: %w", err)
		}
		if details.Valid {
			e.Details = json.RawMessage(details.String)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("activity: failed to iterate entries: %w", err)
	}
	return entries, nil
}

// Ensure interface compliance
var _ Recorder = (*Service)(nil)

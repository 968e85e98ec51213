package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs. Satisfied by
// *pgxpool.Pool and by pgxmock pools in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads and updates the user directory.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by pgx.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("users: pgx pool required")
	}
	return &Repository{db: db}
}

const userColumns = `id, email, name, role, dietitian_id, health_counselor_id, assigned_dietitians, timezone, created_at, updated_at`

// GetByID fetches a user by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	row := r.db.QueryRow(ctx, query, id)

	var u User
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Role,
		&u.DietitianID,
		&u.HealthCounselorID,
		&u.AssignedDietitians,
		&u.Timezone,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("users: select failed: %w", err)
	}
	return &u, nil
}

// Availability returns the provider's recurring weekly windows in
// weekday/start order.
func (r *Repository) Availability(ctx context.Context, providerID uuid.UUID) ([]AvailabilityWindow, error) {
	query := `
		SELECT weekday, start_time, end_time
		FROM provider_availability
		WHERE provider_id = $1
		ORDER BY weekday, start_time
	`
	rows, err := r.db.Query(ctx, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("users: availability query failed: %w", err)
	}
	defer rows.Close()

	var windows []AvailabilityWindow
	for rows.Next() {
		var w AvailabilityWindow
		var weekday int16
		if err := rows.Scan(&weekday, &w.StartTime, &w.EndTime); err != nil {
			return nil, fmt.Errorf("users: availability scan failed: %w", err)
		}
		w.Weekday = time.Weekday(weekday)
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

// EnsureCounselorAssignment assigns the counselor to the client if the
// client has no counselor yet. Idempotent: re-running for the same
// counselor succeeds, a different existing counselor reports false.
func (r *Repository) EnsureCounselorAssignment(ctx context.Context, clientID, counselorID uuid.UUID) (bool, error) {
	query := `
		UPDATE users
		SET health_counselor_id = $2, updated_at = now()
		WHERE id = $1
		  AND role = 'client'
		  AND (health_counselor_id IS NULL OR health_counselor_id = $2)
	`
	ct, err := r.db.Exec(ctx, query, clientID, counselorID)
	if err != nil {
		return false, fmt.Errorf("users: ensure counselor assignment: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

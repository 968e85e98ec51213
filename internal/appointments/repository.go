package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
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
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository is the sole writer of appointment rows and their
// lifecycle events.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by pgx.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{db: db}
}

// exclusion_violation: the no-overlap constraint on appointments.
const pgExclusionViolation = "23P01"

const apptColumns = `id, provider_id, client_id, scheduled_at, duration_minutes, type,
	type_id, mode_id, mode_name, location, notes, status,
	meeting_link, meeting_provider, meeting_metadata,
	provider_event_id, client_event_id, email_receipts,
	created_by, cancelled_by, rescheduled_by, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var meetingMeta, receipts []byte
	if err := row.Scan(
		&a.ID, &a.ProviderID, &a.ClientID, &a.ScheduledAt, &a.DurationMinutes, &a.Type,
		&a.TypeID, &a.ModeID, &a.ModeName, &a.Location, &a.Notes, &a.Status,
		&a.MeetingLink, &a.MeetingProvider, &meetingMeta,
		&a.ProviderEventID, &a.ClientEventID, &receipts,
		&a.CreatedBy, &a.CancelledBy, &a.RescheduledBy, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(meetingMeta) > 0 {
		a.MeetingMetadata = json.RawMessage(meetingMeta)
	}
	if len(receipts) > 0 {
		if err := json.Unmarshal(receipts, &a.EmailReceipts); err != nil {
			return nil, fmt.Errorf("appointments: decode email receipts: %w", err)
		}
	}
	return &a, nil
}

// Get fetches an appointment by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `SELECT ` + apptColumns + ` FROM appointments WHERE id = $1`
	a, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	return a, nil
}

// FindOverlapping returns non-cancelled appointments for the provider
// whose intervals intersect [start, start+duration). excludeID skips a
// row, used when rescheduling an existing appointment.
func (r *Repository) FindOverlapping(ctx context.Context, providerID uuid.UUID, start time.Time, durationMinutes int, excludeID uuid.UUID) ([]Appointment, error) {
	query := `
		SELECT ` + apptColumns + `
		FROM appointments
		WHERE provider_id = $1
		  AND status <> 'cancelled'
		  AND id <> $4
		  AND scheduled_at < $3
		  AND scheduled_at + make_interval(mins => duration_minutes) > $2
		ORDER BY scheduled_at
	`
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	rows, err := r.db.Query(ctx, query, providerID, start, end, excludeID)
	if err != nil {
		return nil, fmt.Errorf("appointments: overlap query failed: %w", err)
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// ListActiveForProviderOnDate returns non-cancelled appointments whose
// interval touches the given UTC date.
func (r *Repository) ListActiveForProviderOnDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	query := `
		SELECT ` + apptColumns + `
		FROM appointments
		WHERE provider_id = $1
		  AND status <> 'cancelled'
		  AND scheduled_at < $3
		  AND scheduled_at + make_interval(mins => duration_minutes) > $2
		ORDER BY scheduled_at
	`
	rows, err := r.db.Query(ctx, query, providerID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("appointments: day query failed: %w", err)
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// CreateWithEvent inserts the appointment and its first lifecycle event
// in one transaction. A per-provider advisory lock serializes the
// conflict re-check against concurrent bookings; the table's exclusion
// constraint backstops the race at the store level.
func (r *Repository) CreateWithEvent(ctx context.Context, a *Appointment, event LifecycleEvent) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("appointments: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockProvider(ctx, tx, a.ProviderID); err != nil {
		return err
	}
	if err := checkNoOverlap(ctx, tx, a.ProviderID, a.ScheduledAt, a.DurationMinutes, uuid.Nil); err != nil {
		return err
	}

	insert := `
		INSERT INTO appointments (
			id, provider_id, client_id, scheduled_at, duration_minutes, type,
			type_id, mode_id, mode_name, location, notes, status, created_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	if err := tx.QueryRow(ctx, insert,
		a.ID, a.ProviderID, a.ClientID, a.ScheduledAt, a.DurationMinutes, a.Type,
		a.TypeID, a.ModeID, a.ModeName, a.Location, a.Notes, a.Status, a.CreatedBy,
	).Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
			return ErrConflict
		}
		return fmt.Errorf("appointments: insert failed: %w", err)
	}

	if err := appendEvent(ctx, tx, a.ID, event); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("appointments: commit: %w", err)
	}
	return nil
}

// StatusUpdate describes a lifecycle transition's row changes.
type StatusUpdate struct {
	Status          Status
	ScheduledAt     *time.Time
	DurationMinutes *int
	CancelledBy     *uuid.UUID
	RescheduledBy   *uuid.UUID
}

// TransitionWithEvent applies a lifecycle transition and appends its
// event atomically. The current status must not be terminal; a
// reschedule re-runs the conflict gate for the new interval.
func (r *Repository) TransitionWithEvent(ctx context.Context, id uuid.UUID, update StatusUpdate, event LifecycleEvent) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanAppointment(tx.QueryRow(ctx,
		`SELECT `+apptColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: select for update: %w", err)
	}
	if current.Status.Terminal() {
		return nil, ErrInvalidState
	}

	scheduledAt := current.ScheduledAt
	duration := current.DurationMinutes
	if update.ScheduledAt != nil {
		scheduledAt = *update.ScheduledAt
		if update.DurationMinutes != nil {
			duration = *update.DurationMinutes
		}
		if err := lockProvider(ctx, tx, current.ProviderID); err != nil {
			return nil, err
		}
		if err := checkNoOverlap(ctx, tx, current.ProviderID, scheduledAt, duration, id); err != nil {
			return nil, err
		}
	}

	updateSQL := `
		UPDATE appointments
		SET status = $2,
		    scheduled_at = $3,
		    duration_minutes = $4,
		    cancelled_by = COALESCE($5, cancelled_by),
		    rescheduled_by = COALESCE($6, rescheduled_by),
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + apptColumns + `
	`
	updated, err := scanAppointment(tx.QueryRow(ctx, updateSQL,
		id, update.Status, scheduledAt, duration, update.CancelledBy, update.RescheduledBy))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("appointments: update failed: %w", err)
	}

	if err := appendEvent(ctx, tx, id, event); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointments: commit: %w", err)
	}
	return updated, nil
}

func lockProvider(ctx context.Context, tx pgx.Tx, providerID uuid.UUID) error {
	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, providerID); err != nil {
		return fmt.Errorf("appointments: provider lock: %w", err)
	}
	return nil
}

func checkNoOverlap(ctx context.Context, tx pgx.Tx, providerID uuid.UUID, start time.Time, durationMinutes int, excludeID uuid.UUID) error {
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	var count int
	query := `
		SELECT count(*)
		FROM appointments
		WHERE provider_id = $1
		  AND status <> 'cancelled'
		  AND id <> $4
		  AND scheduled_at < $3
		  AND scheduled_at + make_interval(mins => duration_minutes) > $2
	`
	if err := tx.QueryRow(ctx, query, providerID, start, end, excludeID).Scan(&count); err != nil {
		return fmt.Errorf("appointments: conflict check: %w", err)
	}
	if count > 0 {
		return ErrConflict
	}
	return nil
}

// appendEvent inserts the next lifecycle event for the appointment.
// Seq is derived inside the insert so history stays gapless under the
// row lock held by the surrounding transaction.
func appendEvent(ctx context.Context, tx pgx.Tx, appointmentID uuid.UUID, event LifecycleEvent) error {
	query := `
		INSERT INTO appointment_events (
			id, appointment_id, seq, action,
			performed_by, performed_by_role, performed_by_name, details
		)
		SELECT $1, $2, COALESCE(MAX(seq), 0) + 1, $3, $4, $5, $6, $7
		FROM appointment_events
		WHERE appointment_id = $2
	`
	eventID := event.ID
	if eventID == uuid.Nil {
		eventID = uuid.New()
	}
	details := event.Details
	if details == nil {
		details = json.RawMessage(`{}`)
	}
	if _, err := tx.Exec(ctx, query,
		eventID, appointmentID, event.Action,
		event.PerformedBy, event.PerformedByRole, event.PerformedByName, details,
	); err != nil {
		return fmt.Errorf("appointments: append event: %w", err)
	}
	return nil
}

// History returns the appointment's lifecycle events in append order.
func (r *Repository) History(ctx context.Context, appointmentID uuid.UUID) ([]LifecycleEvent, error) {
	query := `
		SELECT id, appointment_id, seq, action,
		       performed_by, performed_by_role, performed_by_name, details, created_at
		FROM appointment_events
		WHERE appointment_id = $1
		ORDER BY seq
	`
	rows, err := r.db.Query(ctx, query, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("appointments: history query failed: %w", err)
	}
	defer rows.Close()

	var events []LifecycleEvent
	for rows.Next() {
		var e LifecycleEvent
		var details []byte
		if err := rows.Scan(&e.ID, &e.AppointmentID, &e.Seq, &e.Action,
			&e.PerformedBy, &e.PerformedByRole, &e.PerformedByName, &details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("appointments: history scan failed: %w", err)
		}
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// AttachMeetingLink patches meeting fields only, so it cannot clobber
// concurrent calendar or email patches.
func (r *Repository) AttachMeetingLink(ctx context.Context, id uuid.UUID, link, provider string, metadata json.RawMessage) error {
	if metadata == nil {
		metadata = json.RawMessage(`{}`)
	}
	query := `
		UPDATE appointments
		SET meeting_link = $2, meeting_provider = $3, meeting_metadata = $4, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, query, id, link, provider, metadata); err != nil {
		return fmt.Errorf("appointments: attach meeting link: %w", err)
	}
	return nil
}

// AttachCalendarEvents patches external calendar event ids, keeping any
// already-stored id when the new value is empty.
func (r *Repository) AttachCalendarEvents(ctx context.Context, id uuid.UUID, providerEventID, clientEventID string) error {
	query := `
		UPDATE appointments
		SET provider_event_id = COALESCE(NULLIF($2, ''), provider_event_id),
		    client_event_id = COALESCE(NULLIF($3, ''), client_event_id),
		    updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, query, id, providerEventID, clientEventID); err != nil {
		return fmt.Errorf("appointments: attach calendar events: %w", err)
	}
	return nil
}

// RecordEmailReceipts patches the per-recipient confirmation outcome.
func (r *Repository) RecordEmailReceipts(ctx context.Context, id uuid.UUID, receipts []EmailReceipt) error {
	data, err := json.Marshal(receipts)
	if err != nil {
		return fmt.Errorf("appointments: marshal receipts: %w", err)
	}
	query := `UPDATE appointments SET email_receipts = $2, updated_at = now() WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id, data); err != nil {
		return fmt.Errorf("appointments: record email receipts: %w", err)
	}
	return nil
}

// ListFilter narrows and pages the appointment listing.
type ListFilter struct {
	Status     string
	Date       string // "2006-01-02", UTC day
	Search     string
	ProviderID *uuid.UUID
	ClientID   *uuid.UUID
	// ScopeProviderID restricts to the provider's own appointments
	// plus those of clients assigned to them.
	ScopeProviderID *uuid.UUID
	// ScopeClientID restricts to the client's own appointments.
	ScopeClientID *uuid.UUID
	// IncludeAll keeps cancelled appointments in the listing when no
	// explicit status filter is set.
	IncludeAll bool
	Limit      int
	Page       int
}

// List returns a page of appointments plus the unpaged total.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Appointment, int, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		where = append(where, "a.status = "+arg(filter.Status))
	} else if !filter.IncludeAll {
		where = append(where, "a.status <> "+arg(string(StatusCancelled)))
	}
	if filter.Date != "" {
		day, err := time.Parse("2006-01-02", filter.Date)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: invalid date %q", ErrInvalidInput, filter.Date)
		}
		where = append(where, "a.scheduled_at >= "+arg(day), "a.scheduled_at < "+arg(day.Add(24*time.Hour)))
	}
	if filter.ProviderID != nil {
		where = append(where, "a.provider_id = "+arg(*filter.ProviderID))
	}
	if filter.ClientID != nil {
		where = append(where, "a.client_id = "+arg(*filter.ClientID))
	}
	if filter.ScopeProviderID != nil {
		p := arg(*filter.ScopeProviderID)
		where = append(where, fmt.Sprintf(`(a.provider_id = %s OR a.client_id IN (
			SELECT id FROM users
			WHERE dietitian_id = %s OR health_counselor_id = %s OR %s = ANY(assigned_dietitians)
		))`, p, p, p, p))
	}
	if filter.ScopeClientID != nil {
		where = append(where, "a.client_id = "+arg(*filter.ScopeClientID))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where = append(where, fmt.Sprintf("(c.name ILIKE %s OR p.name ILIKE %s OR a.notes ILIKE %s)", p, p, p))
	}

	base := `
		FROM appointments a
		JOIN users p ON p.id = a.provider_id
		JOIN users c ON c.id = a.client_id
		WHERE ` + strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT count(*) "+base, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("appointments: count failed: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	query := "SELECT " + prefixColumns("a.") + " " + base +
		" ORDER BY a.scheduled_at DESC LIMIT " + arg(limit) + " OFFSET " + arg((page-1)*limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("appointments: list failed: %w", err)
	}
	defer rows.Close()

	items, err := collectAppointments(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func prefixColumns(prefix string) string {
	cols := strings.Split(apptColumns, ",")
	for i, c := range cols {
		cols[i] = prefix + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

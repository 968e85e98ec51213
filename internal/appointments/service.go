package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/avirajsharma-ops/DTPS-sub006/internal/identity"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/observability/metrics"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/users"
	"github.com/avirajsharma-ops/DTPS-sub006/pkg/logging"
)

// Store is the persistence surface the service writes through.
// Implemented by *Repository; faked in tests.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	CreateWithEvent(ctx context.Context, a *Appointment, event LifecycleEvent) error
	TransitionWithEvent(ctx context.Context, id uuid.UUID, update StatusUpdate, event LifecycleEvent) (*Appointment, error)
	FindOverlapping(ctx context.Context, providerID uuid.UUID, start time.Time, durationMinutes int, excludeID uuid.UUID) ([]Appointment, error)
	History(ctx context.Context, appointmentID uuid.UUID) ([]LifecycleEvent, error)
	List(ctx context.Context, filter ListFilter) ([]Appointment, int, error)
}

// Directory resolves users and manages counselor assignment.
type Directory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
	EnsureCounselorAssignment(ctx context.Context, clientID, counselorID uuid.UUID) (bool, error)
}

// Enricher runs the best-effort post-write side effects. Failures never
// propagate to the booking result.
type Enricher interface {
	AppointmentBooked(ctx context.Context, a *Appointment, provider, client *users.User)
	AppointmentCancelled(ctx context.Context, a *Appointment, provider, client *users.User)
	AppointmentRescheduled(ctx context.Context, a *Appointment, provider, client *users.User)
}

// Service is the appointment lifecycle recorder: the only code path
// that creates appointments or moves them between states.
type Service struct {
	store     Store
	directory Directory
	enricher  Enricher
	cache     *SlotCache
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
	tracer    trace.Tracer
}

// NewService wires the lifecycle recorder.
func NewService(store Store, directory Directory, enricher Enricher, cache *SlotCache, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:     store,
		directory: directory,
		enricher:  enricher,
		cache:     cache,
		metrics:   m,
		logger:    logger,
		tracer:    otel.Tracer("appointments"),
	}
}

// CreateInput is a booking request after JSON decoding.
type CreateInput struct {
	ProviderID      uuid.UUID
	ClientID        uuid.UUID
	ScheduledAt     time.Time
	DurationMinutes int
	Type            string
	TypeID          string
	Notes           string
	ModeID          string
	ModeName        string
	Location        string
}

// Create validates, authorizes, and durably records a booking, then
// fires enrichment. The conflict gate runs inside the store write so
// two near-simultaneous bookings cannot both land.
func (s *Service) Create(ctx context.Context, caller identity.Caller, input CreateInput) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.Create",
		trace.WithAttributes(
			attribute.String("provider_id", input.ProviderID.String()),
			attribute.String("caller_role", string(caller.Role)),
		))
	defer span.End()

	if input.ProviderID == uuid.Nil || input.ClientID == uuid.Nil || input.ScheduledAt.IsZero() {
		return nil, fmt.Errorf("%w: dietitianId, clientId and scheduledAt are required", ErrInvalidInput)
	}
	performer, err := callerUUID(caller)
	if err != nil {
		return nil, err
	}

	provider, err := s.directory.GetByID(ctx, input.ProviderID)
	if err != nil {
		if err == users.ErrUserNotFound {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	if !provider.Role.IsProvider() {
		return nil, fmt.Errorf("%w: user %s cannot take appointments", ErrProviderNotFound, provider.ID)
	}

	client, err := s.directory.GetByID(ctx, input.ClientID)
	if err != nil {
		if err == users.ErrUserNotFound {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if client.Role != identity.RoleClient {
		return nil, fmt.Errorf("%w: user %s is not a client", ErrClientNotFound, client.ID)
	}

	policy, err := PolicyFor(caller.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrForbidden, err)
	}
	decision := policy.Authorize(caller, provider, client)
	if !decision.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, decision.Reason)
	}
	if decision.AssignCounselor {
		ok, err := s.directory.EnsureCounselorAssignment(ctx, client.ID, provider.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: client is assigned to a different health counselor", ErrForbidden)
		}
		s.logger.Info("health counselor auto-assigned",
			"client_id", client.ID, "counselor_id", provider.ID)
	}

	appt := &Appointment{
		ID:              uuid.New(),
		ProviderID:      provider.ID,
		ClientID:        client.ID,
		ScheduledAt:     input.ScheduledAt.UTC(),
		DurationMinutes: NormalizeDuration(input.DurationMinutes),
		Type:            NormalizeType(input.Type),
		TypeID:          input.TypeID,
		ModeID:          input.ModeID,
		ModeName:        input.ModeName,
		Location:        input.Location,
		Notes:           input.Notes,
		Status:          StatusScheduled,
		CreatedBy:       performer,
	}

	event := s.event(performer, caller, ActionCreated, map[string]any{
		"scheduledAt": appt.ScheduledAt,
		"duration":    appt.DurationMinutes,
		"type":        appt.Type,
	})

	if err := s.store.CreateWithEvent(ctx, appt, event); err != nil {
		if errors.Is(err, ErrConflict) {
			s.metrics.ObserveConflict()
			return nil, s.conflictDetail(ctx, appt.ProviderID, appt.ScheduledAt, appt.DurationMinutes, uuid.Nil)
		}
		return nil, err
	}

	s.metrics.ObserveLifecycle(ActionCreated, string(appt.Status))
	s.cache.Invalidate(ctx, appt.ProviderID, appt.ScheduledAt)
	s.logger.Info("appointment created",
		"id", appt.ID,
		"provider_id", appt.ProviderID,
		"client_id", appt.ClientID,
		"scheduled_at", appt.ScheduledAt,
	)

	if s.enricher != nil {
		s.enricher.AppointmentBooked(ctx, appt, provider, client)
	}
	return appt, nil
}

// Cancel moves the appointment to cancelled. Allowed for admins and
// for either party of the appointment.
func (s *Service) Cancel(ctx context.Context, caller identity.Caller, id uuid.UUID, reason string) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.Cancel")
	defer span.End()

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canActOn(caller, current, false) {
		return nil, fmt.Errorf("%w: not a party to this appointment", ErrForbidden)
	}

	performer, err := callerUUID(caller)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.TransitionWithEvent(ctx, id,
		StatusUpdate{Status: StatusCancelled, CancelledBy: &performer},
		s.event(performer, caller, ActionCancelled, map[string]any{"reason": reason}),
	)
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveLifecycle(ActionCancelled, string(updated.Status))
	s.cache.Invalidate(ctx, updated.ProviderID, updated.ScheduledAt)
	s.notifyParties(ctx, updated, s.enricherCancelled)
	return updated, nil
}

// Reschedule moves the appointment to a new time, re-running the
// conflict gate for the new interval inside the store transaction.
func (s *Service) Reschedule(ctx context.Context, caller identity.Caller, id uuid.UUID, newTime time.Time, newDuration int) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.Reschedule")
	defer span.End()

	if newTime.IsZero() {
		return nil, fmt.Errorf("%w: scheduledAt is required", ErrInvalidInput)
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canActOn(caller, current, false) {
		return nil, fmt.Errorf("%w: not a party to this appointment", ErrForbidden)
	}

	performer, err := callerUUID(caller)
	if err != nil {
		return nil, err
	}
	newTime = newTime.UTC()
	duration := current.DurationMinutes
	if newDuration != 0 {
		duration = NormalizeDuration(newDuration)
	}

	updated, err := s.store.TransitionWithEvent(ctx, id,
		StatusUpdate{
			Status:          StatusRescheduled,
			ScheduledAt:     &newTime,
			DurationMinutes: &duration,
			RescheduledBy:   &performer,
		},
		s.event(performer, caller, ActionRescheduled, map[string]any{
			"from": current.ScheduledAt,
			"to":   newTime,
		}),
	)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			s.metrics.ObserveConflict()
			return nil, s.conflictDetail(ctx, current.ProviderID, newTime, duration, id)
		}
		return nil, err
	}

	s.metrics.ObserveLifecycle(ActionRescheduled, string(updated.Status))
	s.cache.Invalidate(ctx, updated.ProviderID, current.ScheduledAt, newTime)
	s.notifyParties(ctx, updated, s.enricherRescheduled)
	return updated, nil
}

// Complete marks the appointment completed. Only the provider or an
// admin may complete.
func (s *Service) Complete(ctx context.Context, caller identity.Caller, id uuid.UUID) (*Appointment, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canActOn(caller, current, true) {
		return nil, fmt.Errorf("%w: only the provider or an admin may complete", ErrForbidden)
	}

	performer, err := callerUUID(caller)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.TransitionWithEvent(ctx, id,
		StatusUpdate{Status: StatusCompleted},
		s.event(performer, caller, ActionCompleted, nil),
	)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveLifecycle(ActionCompleted, string(updated.Status))
	return updated, nil
}

// Get returns the appointment if the caller may see it.
func (s *Service) Get(ctx context.Context, caller identity.Caller, id uuid.UUID) (*Appointment, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canActOn(caller, a, false) {
		return nil, fmt.Errorf("%w: not a party to this appointment", ErrForbidden)
	}
	return a, nil
}

// History returns the appointment's lifecycle events in append order.
func (s *Service) History(ctx context.Context, caller identity.Caller, id uuid.UUID) ([]LifecycleEvent, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return nil, err
	}
	return s.store.History(ctx, id)
}

// List returns the role-scoped, paginated appointment listing.
func (s *Service) List(ctx context.Context, caller identity.Caller, filter ListFilter) ([]Appointment, int, error) {
	callerID, err := callerUUID(caller)
	if err != nil {
		return nil, 0, err
	}
	switch caller.Role {
	case identity.RoleAdmin:
		// no scoping
	case identity.RoleDietitian, identity.RoleHealthCounselor:
		filter.ScopeProviderID = &callerID
	default:
		filter.ScopeClientID = &callerID
	}
	return s.store.List(ctx, filter)
}

func (s *Service) event(performer uuid.UUID, caller identity.Caller, action string, details map[string]any) LifecycleEvent {
	var raw json.RawMessage
	if details != nil {
		raw, _ = json.Marshal(details)
	}
	return LifecycleEvent{
		ID:              uuid.New(),
		Action:          action,
		PerformedBy:     performer,
		PerformedByRole: string(caller.Role),
		PerformedByName: caller.Name,
		Details:         raw,
	}
}

func callerUUID(caller identity.Caller) (uuid.UUID, error) {
	id, err := uuid.Parse(caller.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid caller id", ErrForbidden)
	}
	return id, nil
}

// canActOn reports whether the caller may read or transition the
// appointment. providerOnly excludes the client party.
// conflictDetail looks up the appointment that blocked the write so
// the 409 can name the occupied interval. Falls back to the bare
// sentinel when the lookup fails or the winner is already gone.
func (s *Service) conflictDetail(ctx context.Context, providerID uuid.UUID, start time.Time, durationMinutes int, excludeID uuid.UUID) error {
	overlapping, err := s.store.FindOverlapping(ctx, providerID, start, durationMinutes, excludeID)
	if err != nil || len(overlapping) == 0 {
		return ErrConflict
	}
	winner := overlapping[0]
	return &ConflictError{Start: winner.ScheduledAt, End: winner.End()}
}

func (s *Service) canActOn(caller identity.Caller, a *Appointment, providerOnly bool) bool {
	if caller.Role == identity.RoleAdmin {
		return true
	}
	if a.ProviderID.String() == caller.ID {
		return true
	}
	if providerOnly {
		return false
	}
	return a.ClientID.String() == caller.ID
}

func (s *Service) notifyParties(ctx context.Context, a *Appointment, fire func(context.Context, *Appointment, *users.User, *users.User)) {
	if s.enricher == nil {
		return
	}
	provider, err := s.directory.GetByID(ctx, a.ProviderID)
	if err != nil {
		s.logger.Warn("enrichment skipped: provider lookup failed", "error", err, "appointment_id", a.ID)
		return
	}
	client, err := s.directory.GetByID(ctx, a.ClientID)
	if err != nil {
		s.logger.Warn("enrichment skipped: client lookup failed", "error", err, "appointment_id", a.ID)
		return
	}
	fire(ctx, a, provider, client)
}

func (s *Service) enricherCancelled(ctx context.Context, a *Appointment, p, c *users.User) {
	s.enricher.AppointmentCancelled(ctx, a, p, c)
}

func (s *Service) enricherRescheduled(ctx context.Context, a *Appointment, p, c *users.User) {
	s.enricher.AppointmentRescheduled(ctx, a, p, c)
}

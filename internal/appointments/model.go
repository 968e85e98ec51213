// Package appointments implements the booking core: slot calculation,
// conflict detection, role-scoped booking authorization, lifecycle
// recording, and best-effort post-booking enrichment.
package appointments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusRescheduled Status = "rescheduled"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Appointment type enum values.
const (
	TypeConsultation        = "consultation"
	TypeFollowUp            = "follow_up"
	TypeGroupSession        = "group_session"
	TypeVideoConsultation   = "video_consultation"
	TypeInitialConsultation = "initial_consultation"
	TypeNutritionAssessment = "nutrition_assessment"
)

// typeSynonyms maps free-form input to canonical appointment types.
var typeSynonyms = map[string]string{
	TypeConsultation:        TypeConsultation,
	TypeFollowUp:            TypeFollowUp,
	TypeGroupSession:        TypeGroupSession,
	TypeVideoConsultation:   TypeVideoConsultation,
	TypeInitialConsultation: TypeInitialConsultation,
	TypeNutritionAssessment: TypeNutritionAssessment,

	"video":      TypeVideoConsultation,
	"video-call": TypeVideoConsultation,
	"video_call": TypeVideoConsultation,
	"follow-up":  TypeFollowUp,
	"followup":   TypeFollowUp,
	"initial":    TypeInitialConsultation,
	"first":      TypeInitialConsultation,
	"assessment": TypeNutritionAssessment,
	"nutrition":  TypeNutritionAssessment,
	"group":      TypeGroupSession,
}

// NormalizeType maps arbitrary input to a canonical appointment type.
// Unrecognized values fall back to consultation.
func NormalizeType(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := typeSynonyms[key]; ok {
		return canonical
	}
	return TypeConsultation
}

// Duration bounds in minutes.
const (
	MinDurationMinutes     = 15
	MaxDurationMinutes     = 180
	DefaultDurationMinutes = 60
)

// NormalizeDuration clamps invalid or missing durations to the default.
func NormalizeDuration(minutes int) int {
	if minutes < MinDurationMinutes || minutes > MaxDurationMinutes {
		return DefaultDurationMinutes
	}
	return minutes
}

// Lifecycle actions recorded in the event log.
const (
	ActionCreated     = "created"
	ActionCancelled   = "cancelled"
	ActionRescheduled = "rescheduled"
	ActionCompleted   = "completed"
)

// LifecycleEvent is one append-only entry in an appointment's history.
type LifecycleEvent struct {
	ID              uuid.UUID       `json:"id"`
	AppointmentID   uuid.UUID       `json:"appointmentId"`
	Seq             int             `json:"seq"`
	Action          string          `json:"action"`
	PerformedBy     uuid.UUID       `json:"performedBy"`
	PerformedByRole string          `json:"performedByRole"`
	PerformedByName string          `json:"performedByName"`
	Details         json.RawMessage `json:"details,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

// EmailReceipt records whether a confirmation email reached a recipient.
type EmailReceipt struct {
	Recipient string    `json:"recipient"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	SentAt    time.Time `json:"sentAt"`
}

// Appointment is the central booking entity. Only the Service mutates
// it, and only through defined lifecycle transitions.
type Appointment struct {
	ID         uuid.UUID `json:"id"`
	ProviderID uuid.UUID `json:"providerId"`
	ClientID   uuid.UUID `json:"clientId"`

	ScheduledAt     time.Time `json:"scheduledAt"`
	DurationMinutes int       `json:"duration"`

	Type     string `json:"type"`
	TypeID   string `json:"appointmentTypeId,omitempty"`
	ModeID   string `json:"appointmentModeId,omitempty"`
	ModeName string `json:"modeName,omitempty"`
	Location string `json:"location,omitempty"`
	Notes    string `json:"notes,omitempty"`

	Status Status `json:"status"`

	MeetingLink     string          `json:"meetingLink,omitempty"`
	MeetingProvider string          `json:"meetingProvider,omitempty"`
	MeetingMetadata json.RawMessage `json:"meetingMetadata,omitempty"`

	ProviderEventID string `json:"providerCalendarEventId,omitempty"`
	ClientEventID   string `json:"clientCalendarEventId,omitempty"`

	EmailReceipts []EmailReceipt `json:"emailReceipts,omitempty"`

	CreatedBy     uuid.UUID  `json:"createdBy"`
	CancelledBy   *uuid.UUID `json:"cancelledBy,omitempty"`
	RescheduledBy *uuid.UUID `json:"rescheduledBy,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// End returns the exclusive end of the appointment's interval.
func (a *Appointment) End() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Overlaps reports whether [start, start+duration) intersects the
// appointment's interval.
func (a *Appointment) Overlaps(start time.Time, duration time.Duration) bool {
	return a.ScheduledAt.Before(start.Add(duration)) && start.Before(a.End())
}

// RequiresMeetingLink reports whether the appointment's mode needs a
// virtual meeting link generated.
func (a *Appointment) RequiresMeetingLink() bool {
	if a.Type == TypeVideoConsultation {
		return true
	}
	mode := strings.ToLower(a.ModeName)
	return strings.Contains(mode, "video") || strings.Contains(mode, "audio") || strings.Contains(mode, "virtual")
}

// ConflictError reports the interval of the existing appointment that
// blocked a booking. It unwraps to ErrConflict.
type ConflictError struct {
	Start time.Time
	End   time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("appointments: scheduling conflict with %s to %s",
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Sentinel errors mapped to HTTP statuses by the handlers.
var (
	ErrInvalidInput     = errors.New("appointments: invalid input")
	ErrForbidden        = errors.New("appointments: not permitted")
	ErrNotFound         = errors.New("appointments: not found")
	ErrConflict         = errors.New("appointments: scheduling conflict")
	ErrInvalidState     = errors.New("appointments: invalid lifecycle transition")
	ErrClientNotFound   = errors.New("appointments: client not found")
	ErrProviderNotFound = errors.New("appointments: provider not found")
)

package appointments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avirajsharma-ops/DTPS-sub006/internal/activity"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/calendar"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/meetings"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/notify"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/observability/metrics"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/push"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/realtime"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/users"
	"github.com/avirajsharma-ops/DTPS-sub006/pkg/logging"
)

// EnrichmentStore is the subset of the repository the orchestrator
// patches after the booking write. Each patch is additive so concurrent
// enrichment never clobbers another step's columns.
type EnrichmentStore interface {
	AttachMeetingLink(ctx context.Context, id uuid.UUID, link, provider string, metadata json.RawMessage) error
	AttachCalendarEvents(ctx context.Context, id uuid.UUID, providerEventID, clientEventID string) error
	RecordEmailReceipts(ctx context.Context, id uuid.UUID, receipts []EmailReceipt) error
}

// Orchestrator runs the post-write side effects of a lifecycle change:
// meeting link, confirmation emails, calendar sync, activity trail,
// realtime and mobile push. Every step is best-effort. A step failure
// is logged and counted but never surfaces to the caller, and never
// stops the remaining steps.
type Orchestrator struct {
	store    EnrichmentStore
	meetings meetings.LinkProvider
	mailer   *notify.Mailer
	calendar calendar.Syncer
	activity activity.Recorder
	realtime realtime.Publisher
	push     push.Sender
	timeout  time.Duration
	topic    string
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
}

// OrchestratorConfig carries the optional side-effect targets. Any nil
// field simply skips its step.
type OrchestratorConfig struct {
	Store    EnrichmentStore
	Meetings meetings.LinkProvider
	Mailer   *notify.Mailer
	Calendar calendar.Syncer
	Activity activity.Recorder
	Realtime realtime.Publisher
	Push     push.Sender
	Timeout  time.Duration

	// TopicPrefix leads the generated meeting topic.
	TopicPrefix string

	Metrics *metrics.BookingMetrics
}

// NewOrchestrator wires the side-effect orchestrator.
func NewOrchestrator(cfg OrchestratorConfig, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "Nutrition consultation"
	}
	return &Orchestrator{
		store:    cfg.Store,
		meetings: cfg.Meetings,
		mailer:   cfg.Mailer,
		calendar: cfg.Calendar,
		activity: cfg.Activity,
		realtime: cfg.Realtime,
		push:     cfg.Push,
		timeout:  cfg.Timeout,
		topic:    cfg.TopicPrefix,
		metrics:  cfg.Metrics,
		logger:   logger,
	}
}

type enrichmentStep struct {
	name string
	run  func(ctx context.Context) error
}

// runSteps executes steps in order, each under its own deadline and
// detached from the request's cancellation.
func (o *Orchestrator) runSteps(ctx context.Context, apptID uuid.UUID, steps []enrichmentStep) {
	base := context.WithoutCancel(ctx)
	for _, step := range steps {
		stepCtx, cancel := context.WithTimeout(base, o.timeout)
		err := step.run(stepCtx)
		cancel()
		if err != nil {
			o.metrics.ObserveEnrichmentFailure(step.name)
			o.logger.Warn("enrichment step failed",
				"step", step.name, "appointment_id", apptID, "error", err)
		}
	}
}

// AppointmentBooked runs the full enrichment chain for a new booking.
// The meeting link runs first so the emails and calendar events that
// follow can include it.
func (o *Orchestrator) AppointmentBooked(ctx context.Context, a *Appointment, provider, client *users.User) {
	steps := []enrichmentStep{
		{"meeting_link", func(ctx context.Context) error {
			return o.createMeetingLink(ctx, a)
		}},
		{"emails", func(ctx context.Context) error {
			return o.sendEmails(ctx, a, provider, client, func(to notify.Recipient, d notify.AppointmentDetails) error {
				return o.mailer.BookingConfirmation(ctx, to, d)
			})
		}},
		{"calendar", func(ctx context.Context) error {
			return o.createCalendarEvents(ctx, a, provider, client)
		}},
		{"activity", func(ctx context.Context) error {
			return o.recordActivity(ctx, a, provider, client, activity.EntryAppointmentBooked,
				fmt.Sprintf("%s booked an appointment with %s", client.Name, provider.Name))
		}},
		{"realtime", func(ctx context.Context) error {
			return o.publishRealtime(ctx, a, provider, client, "appointment.booked")
		}},
		{"push", func(ctx context.Context) error {
			return o.sendPush(ctx, a, provider, client, "Appointment confirmed",
				fmt.Sprintf("Your appointment on %s is confirmed.", a.ScheduledAt.Format("Jan 2 at 3:04 PM")))
		}},
	}
	o.runSteps(ctx, a.ID, steps)
}

// AppointmentCancelled notifies both parties and tears down calendar
// events for a cancelled booking.
func (o *Orchestrator) AppointmentCancelled(ctx context.Context, a *Appointment, provider, client *users.User) {
	steps := []enrichmentStep{
		{"emails", func(ctx context.Context) error {
			return o.sendEmails(ctx, a, provider, client, func(to notify.Recipient, d notify.AppointmentDetails) error {
				return o.mailer.CancellationNotice(ctx, to, d)
			})
		}},
		{"calendar", func(ctx context.Context) error {
			return o.deleteCalendarEvents(ctx, a, provider, client)
		}},
		{"activity", func(ctx context.Context) error {
			return o.recordActivity(ctx, a, provider, client, activity.EntryAppointmentCancelled,
				fmt.Sprintf("Appointment between %s and %s was cancelled", client.Name, provider.Name))
		}},
		{"realtime", func(ctx context.Context) error {
			return o.publishRealtime(ctx, a, provider, client, "appointment.cancelled")
		}},
		{"push", func(ctx context.Context) error {
			return o.sendPush(ctx, a, provider, client, "Appointment cancelled",
				fmt.Sprintf("Your appointment on %s was cancelled.", a.ScheduledAt.Format("Jan 2 at 3:04 PM")))
		}},
	}
	o.runSteps(ctx, a.ID, steps)
}

// AppointmentRescheduled notifies both parties and moves the calendar
// events to the new time.
func (o *Orchestrator) AppointmentRescheduled(ctx context.Context, a *Appointment, provider, client *users.User) {
	steps := []enrichmentStep{
		{"emails", func(ctx context.Context) error {
			return o.sendEmails(ctx, a, provider, client, func(to notify.Recipient, d notify.AppointmentDetails) error {
				return o.mailer.RescheduleNotice(ctx, to, d)
			})
		}},
		{"calendar", func(ctx context.Context) error {
			return o.updateCalendarEvents(ctx, a, provider, client)
		}},
		{"activity", func(ctx context.Context) error {
			return o.recordActivity(ctx, a, provider, client, activity.EntryAppointmentRescheduled,
				fmt.Sprintf("Appointment between %s and %s was rescheduled", client.Name, provider.Name))
		}},
		{"realtime", func(ctx context.Context) error {
			return o.publishRealtime(ctx, a, provider, client, "appointment.rescheduled")
		}},
		{"push", func(ctx context.Context) error {
			return o.sendPush(ctx, a, provider, client, "Appointment rescheduled",
				fmt.Sprintf("Your appointment moved to %s.", a.ScheduledAt.Format("Jan 2 at 3:04 PM")))
		}},
	}
	o.runSteps(ctx, a.ID, steps)
}

func (o *Orchestrator) createMeetingLink(ctx context.Context, a *Appointment) error {
	if o.meetings == nil || o.store == nil || !a.RequiresMeetingLink() {
		return nil
	}
	topic := fmt.Sprintf("%s %s", o.topic, a.ScheduledAt.Format("2006-01-02 15:04"))
	meeting, err := o.meetings.CreateMeeting(ctx, topic, a.ScheduledAt, a.DurationMinutes)
	if err != nil {
		return err
	}
	metadata, _ := json.Marshal(map[string]string{"meetingId": meeting.ID})
	if err := o.store.AttachMeetingLink(ctx, a.ID, meeting.JoinURL, meeting.Provider, metadata); err != nil {
		return err
	}
	a.MeetingLink = meeting.JoinURL
	a.MeetingProvider = meeting.Provider
	return nil
}

func (o *Orchestrator) sendEmails(ctx context.Context, a *Appointment, provider, client *users.User,
	send func(notify.Recipient, notify.AppointmentDetails) error) error {
	if o.mailer == nil {
		return nil
	}
	details := notify.AppointmentDetails{
		ClientName:      client.Name,
		ProviderName:    provider.Name,
		ScheduledAt:     a.ScheduledAt,
		DurationMinutes: a.DurationMinutes,
		Type:            a.Type,
		MeetingLink:     a.MeetingLink,
		Location:        a.Location,
	}

	recipients := []notify.Recipient{
		{Email: client.Email, Name: client.Name},
		{Email: provider.Email, Name: provider.Name},
	}
	receipts := make([]EmailReceipt, 0, len(recipients))
	var failed int
	for _, to := range recipients {
		receipt := EmailReceipt{Recipient: to.Email, Success: true, SentAt: time.Now().UTC()}
		if err := send(to, details); err != nil {
			receipt.Success = false
			receipt.Error = err.Error()
			failed++
		}
		receipts = append(receipts, receipt)
	}
	if o.store != nil {
		if err := o.store.RecordEmailReceipts(ctx, a.ID, receipts); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d emails failed", failed, len(recipients))
	}
	return nil
}

func (o *Orchestrator) createCalendarEvents(ctx context.Context, a *Appointment, provider, client *users.User) error {
	if o.calendar == nil || o.store == nil {
		return nil
	}
	ev := calendar.Event{
		Title:       fmt.Sprintf("Appointment: %s / %s", client.Name, provider.Name),
		Description: a.Notes,
		StartAt:     a.ScheduledAt,
		EndAt:       a.End(),
		MeetingLink: a.MeetingLink,
		Location:    a.Location,
	}

	ev.OwnerEmail = provider.Email
	providerEventID, err := o.calendar.CreateEvent(ctx, ev)
	if err != nil {
		return fmt.Errorf("provider event: %w", err)
	}

	ev.OwnerEmail = client.Email
	clientEventID, err := o.calendar.CreateEvent(ctx, ev)
	if err != nil {
		// Keep the provider event id even when the client copy failed.
		if storeErr := o.store.AttachCalendarEvents(ctx, a.ID, providerEventID, ""); storeErr != nil {
			return fmt.Errorf("client event: %v; attach: %w", err, storeErr)
		}
		return fmt.Errorf("client event: %w", err)
	}

	if err := o.store.AttachCalendarEvents(ctx, a.ID, providerEventID, clientEventID); err != nil {
		return err
	}
	a.ProviderEventID = providerEventID
	a.ClientEventID = clientEventID
	return nil
}

func (o *Orchestrator) updateCalendarEvents(ctx context.Context, a *Appointment, provider, client *users.User) error {
	if o.calendar == nil {
		return nil
	}
	ev := calendar.Event{
		Title:       fmt.Sprintf("Appointment: %s / %s", client.Name, provider.Name),
		Description: a.Notes,
		StartAt:     a.ScheduledAt,
		EndAt:       a.End(),
		MeetingLink: a.MeetingLink,
		Location:    a.Location,
	}
	var errs []error
	if a.ProviderEventID != "" {
		ev.OwnerEmail = provider.Email
		if err := o.calendar.UpdateEvent(ctx, a.ProviderEventID, ev); err != nil {
			errs = append(errs, fmt.Errorf("provider event: %w", err))
		}
	}
	if a.ClientEventID != "" {
		ev.OwnerEmail = client.Email
		if err := o.calendar.UpdateEvent(ctx, a.ClientEventID, ev); err != nil {
			errs = append(errs, fmt.Errorf("client event: %w", err))
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (o *Orchestrator) deleteCalendarEvents(ctx context.Context, a *Appointment, provider, client *users.User) error {
	if o.calendar == nil {
		return nil
	}
	var errs []error
	if a.ProviderEventID != "" {
		if err := o.calendar.DeleteEvent(ctx, provider.Email, a.ProviderEventID); err != nil {
			errs = append(errs, err)
		}
	}
	if a.ClientEventID != "" {
		if err := o.calendar.DeleteEvent(ctx, client.Email, a.ClientEventID); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (o *Orchestrator) recordActivity(ctx context.Context, a *Appointment, provider, client *users.User, entryType activity.EntryType, summary string) error {
	if o.activity == nil {
		return nil
	}
	details, _ := json.Marshal(map[string]any{
		"appointmentId": a.ID,
		"scheduledAt":   a.ScheduledAt,
		"status":        a.Status,
	})
	return o.activity.Record(ctx, activity.Entry{
		Type:         entryType,
		ActorID:      a.CreatedBy.String(),
		Participants: []string{provider.ID.String(), client.ID.String()},
		Summary:      summary,
		Details:      details,
	})
}

func (o *Orchestrator) publishRealtime(ctx context.Context, a *Appointment, provider, client *users.User, eventType string) error {
	if o.realtime == nil {
		return nil
	}
	var errs []error
	if err := o.realtime.SendToUser(ctx, provider.ID, eventType, a); err != nil {
		errs = append(errs, err)
	}
	if err := o.realtime.SendToUser(ctx, client.ID, eventType, a); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (o *Orchestrator) sendPush(ctx context.Context, a *Appointment, provider, client *users.User, title, body string) error {
	if o.push == nil {
		return nil
	}
	data := map[string]string{"appointmentId": a.ID.String()}
	var errs []error
	for _, userID := range []uuid.UUID{client.ID, provider.ID} {
		if err := o.push.Push(ctx, push.Notification{UserID: userID, Title: title, Body: body, Data: data}); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Ensure interface compliance
var _ Enricher = (*Orchestrator)(nil)

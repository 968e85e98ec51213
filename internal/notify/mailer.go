package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/avirajsharma-ops/DTPS-sub006/pkg/logging"
)

// Recipient identifies one party of an appointment email.
type Recipient struct {
	Email string
	Name  string
}

// AppointmentDetails carries the fields rendered into appointment emails.
type AppointmentDetails struct {
	ClientName      string
	ProviderName    string
	ScheduledAt     time.Time
	DurationMinutes int
	Type            string
	MeetingLink     string
	Location        string
	PreviousTime    time.Time // Set for reschedule emails
	Reason          string    // Set for cancellation emails
}

// Mailer composes and sends appointment lifecycle emails.
type Mailer struct {
	sender   EmailSender
	fromName string
	logger   *logging.Logger
}

// NewMailer creates an appointment mailer on top of an EmailSender.
func NewMailer(sender EmailSender, fromName string, logger *logging.Logger) *Mailer {
	if logger == nil {
		logger = logging.Default()
	}
	if fromName == "" {
		fromName = "NutriPractice"
	}
	return &Mailer{sender: sender, fromName: fromName, logger: logger}
}

// BookingConfirmation sends a confirmation email to one recipient.
func (m *Mailer) BookingConfirmation(ctx context.Context, to Recipient, d AppointmentDetails) error {
	if m.sender == nil {
		return fmt.Errorf("notify: email sender not configured")
	}
	if to.Email == "" {
		return fmt.Errorf("notify: recipient has no email address")
	}

	when := d.ScheduledAt.Format("Monday, January 2, 2006 at 3:04 PM")
	subject := fmt.Sprintf("Appointment Confirmed - %s", when)
	body := fmt.Sprintf(`Your appointment has been confirmed.

Client: %s
Provider: %s
When: %s
Duration: %d minutes
Type: %s%s%s

— %s`, d.ClientName, d.ProviderName, when, d.DurationMinutes, d.Type,
		m.formatMeetingLink(d.MeetingLink), m.formatLocation(d.Location), m.fromName)

	msg := EmailMessage{To: to.Email, ToName: to.Name, Subject: subject, Body: body}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: booking confirmation to %s: %w", to.Email, err)
	}
	m.logger.Info("booking confirmation sent", "to", to.Email, "scheduled_at", d.ScheduledAt)
	return nil
}

// CancellationNotice sends a cancellation email to one recipient.
func (m *Mailer) CancellationNotice(ctx context.Context, to Recipient, d AppointmentDetails) error {
	if m.sender == nil {
		return fmt.Errorf("notify: email sender not configured")
	}
	if to.Email == "" {
		return fmt.Errorf("notify: recipient has no email address")
	}

	when := d.ScheduledAt.Format("Monday, January 2, 2006 at 3:04 PM")
	subject := fmt.Sprintf("Appointment Cancelled - %s", when)
	reasonInfo := ""
	if d.Reason != "" {
		reasonInfo = fmt.Sprintf("\nReason: %s", d.Reason)
	}
	body := fmt.Sprintf(`The following appointment has been cancelled.

Client: %s
Provider: %s
Was scheduled for: %s%s

— %s`, d.ClientName, d.ProviderName, when, reasonInfo, m.fromName)

	msg := EmailMessage{To: to.Email, ToName: to.Name, Subject: subject, Body: body}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: cancellation notice to %s: %w", to.Email, err)
	}
	return nil
}

// RescheduleNotice sends a reschedule email to one recipient.
func (m *Mailer) RescheduleNotice(ctx context.Context, to Recipient, d AppointmentDetails) error {
	if m.sender == nil {
		return fmt.Errorf("notify: email sender not configured")
	}
	if to.Email == "" {
		return fmt.Errorf("notify: recipient has no email address")
	}

	newWhen := d.ScheduledAt.Format("Monday, January 2, 2006 at 3:04 PM")
	subject := fmt.Sprintf("Appointment Rescheduled - %s", newWhen)
	previousInfo := ""
	if !d.PreviousTime.IsZero() {
		previousInfo = fmt.Sprintf("\nPreviously: %s", d.PreviousTime.Format("Monday, January 2, 2006 at 3:04 PM"))
	}
	body := fmt.Sprintf(`Your appointment has been rescheduled.

Client: %s
Provider: %s
New time: %s%s
Duration: %d minutes%s%s

— %s`, d.ClientName, d.ProviderName, newWhen, previousInfo, d.DurationMinutes,
		m.formatMeetingLink(d.MeetingLink), m.formatLocation(d.Location), m.fromName)

	msg := EmailMessage{To: to.Email, ToName: to.Name, Subject: subject, Body: body}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: reschedule notice to %s: %w", to.Email, err)
	}
	return nil
}

func (m *Mailer) formatMeetingLink(link string) string {
	if link == "" {
		return ""
	}
	return fmt.Sprintf("\nJoin link: %s", link)
}

func (m *Mailer) formatLocation(location string) string {
	if location == "" {
		return ""
	}
	return fmt.Sprintf("\nLocation: %s", location)
}

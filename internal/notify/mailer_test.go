package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type captureSender struct {
	last EmailMessage
	err  error
}

func (s *captureSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.err != nil {
		return s.err
	}
	s.last = msg
	return nil
}

func testDetails() AppointmentDetails {
	return AppointmentDetails{
		ClientName:      "Chris",
		ProviderName:    "Dana",
		ScheduledAt:     time.Date(2030, 6, 3, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Type:            "video_consultation",
	}
}

func TestBookingConfirmation(t *testing.T) {
	sender := &captureSender{}
	mailer := NewMailer(sender, "NutriPractice", nil)

	d := testDetails()
	d.MeetingLink = "https://zoom.example.com/j/42"
	to := Recipient{Email: "chris@example.com", Name: "Chris"}
	if err := mailer.BookingConfirmation(context.Background(), to, d); err != nil {
		t.Fatalf("BookingConfirmation returned error: %v", err)
	}

	if sender.last.To != "chris@example.com" {
		t.Errorf("to = %s, want chris@example.com", sender.last.To)
	}
	if !strings.Contains(sender.last.Subject, "Appointment Confirmed") {
		t.Errorf("unexpected subject %q", sender.last.Subject)
	}
	if !strings.Contains(sender.last.Body, "Monday, June 3, 2030 at 10:00 AM") {
		t.Errorf("body missing formatted time:\n%s", sender.last.Body)
	}
	if !strings.Contains(sender.last.Body, "Join link: https://zoom.example.com/j/42") {
		t.Errorf("body missing join link:\n%s", sender.last.Body)
	}
}

func TestBookingConfirmationOmitsEmptyLink(t *testing.T) {
	sender := &captureSender{}
	mailer := NewMailer(sender, "", nil)

	to := Recipient{Email: "chris@example.com"}
	if err := mailer.BookingConfirmation(context.Background(), to, testDetails()); err != nil {
		t.Fatalf("BookingConfirmation returned error: %v", err)
	}
	if strings.Contains(sender.last.Body, "Join link") {
		t.Errorf("body should omit the join link line:\n%s", sender.last.Body)
	}
	if !strings.Contains(sender.last.Body, "NutriPractice") {
		t.Errorf("body should carry the default from name:\n%s", sender.last.Body)
	}
}

func TestBookingConfirmationRequiresEmail(t *testing.T) {
	mailer := NewMailer(&captureSender{}, "NutriPractice", nil)
	if err := mailer.BookingConfirmation(context.Background(), Recipient{}, testDetails()); err == nil {
		t.Fatal("expected an error for a recipient without an email")
	}
}

func TestBookingConfirmationWrapsSendError(t *testing.T) {
	sendErr := errors.New("rate limited")
	mailer := NewMailer(&captureSender{err: sendErr}, "NutriPractice", nil)

	err := mailer.BookingConfirmation(context.Background(), Recipient{Email: "x@example.com"}, testDetails())
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}

func TestCancellationNoticeIncludesReason(t *testing.T) {
	sender := &captureSender{}
	mailer := NewMailer(sender, "NutriPractice", nil)

	d := testDetails()
	d.Reason = "provider unavailable"
	if err := mailer.CancellationNotice(context.Background(), Recipient{Email: "chris@example.com"}, d); err != nil {
		t.Fatalf("CancellationNotice returned error: %v", err)
	}
	if !strings.Contains(sender.last.Body, "Reason: provider unavailable") {
		t.Errorf("body missing reason:\n%s", sender.last.Body)
	}
	if !strings.Contains(sender.last.Subject, "Appointment Cancelled") {
		t.Errorf("unexpected subject %q", sender.last.Subject)
	}
}

func TestRescheduleNoticeShowsPreviousTime(t *testing.T) {
	sender := &captureSender{}
	mailer := NewMailer(sender, "NutriPractice", nil)

	d := testDetails()
	d.PreviousTime = time.Date(2030, 6, 1, 9, 0, 0, 0, time.UTC)
	if err := mailer.RescheduleNotice(context.Background(), Recipient{Email: "chris@example.com"}, d); err != nil {
		t.Fatalf("RescheduleNotice returned error: %v", err)
	}
	if !strings.Contains(sender.last.Body, "Previously: Saturday, June 1, 2030 at 9:00 AM") {
		t.Errorf("body missing previous time:\n%s", sender.last.Body)
	}
	if !strings.Contains(sender.last.Body, "New time: Monday, June 3, 2030 at 10:00 AM") {
		t.Errorf("body missing new time:\n%s", sender.last.Body)
	}
}

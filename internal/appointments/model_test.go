package appointments

import (
	"testing"
	"time"
)

func TestNormalizeType(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"consultation", TypeConsultation},
		{"video", TypeVideoConsultation},
		{"Video-Call", TypeVideoConsultation},
		{"video_consultation", TypeVideoConsultation},
		{"follow-up", TypeFollowUp},
		{"FOLLOWUP", TypeFollowUp},
		{"initial", TypeInitialConsultation},
		{"assessment", TypeNutritionAssessment},
		{"group", TypeGroupSession},
		{"", TypeConsultation},
		{"something-weird", TypeConsultation},
		{"  consultation  ", TypeConsultation},
	}
	for _, c := range cases {
		if got := NormalizeType(c.in); got != c.want {
			t.Errorf("NormalizeType(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeDuration(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, 60},
		{-5, 60},
		{14, 60},
		{15, 15},
		{45, 45},
		{180, 180},
		{181, 60},
		{1000, 60},
	}
	for _, c := range cases {
		if got := NormalizeDuration(c.in); got != c.want {
			t.Errorf("NormalizeDuration(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if !StatusCompleted.Terminal() {
		t.Error("completed should be terminal")
	}
	if !StatusCancelled.Terminal() {
		t.Error("cancelled should be terminal")
	}
	if StatusScheduled.Terminal() {
		t.Error("scheduled should not be terminal")
	}
	if StatusRescheduled.Terminal() {
		t.Error("rescheduled should not be terminal")
	}
}

func TestAppointmentOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	appt := Appointment{ScheduledAt: base, DurationMinutes: 60}

	cases := []struct {
		name     string
		start    time.Time
		duration time.Duration
		want     bool
	}{
		{"identical interval", base, time.Hour, true},
		{"contained inside", base.Add(15 * time.Minute), 30 * time.Minute, true},
		{"straddles start", base.Add(-30 * time.Minute), time.Hour, true},
		{"straddles end", base.Add(30 * time.Minute), time.Hour, true},
		{"back to back after", base.Add(time.Hour), time.Hour, false},
		{"back to back before", base.Add(-time.Hour), time.Hour, false},
		{"well before", base.Add(-3 * time.Hour), time.Hour, false},
		{"well after", base.Add(3 * time.Hour), time.Hour, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := appt.Overlaps(c.start, c.duration); got != c.want {
				t.Errorf("Overlaps(%v, %v) = %v, want %v", c.start, c.duration, got, c.want)
			}
		})
	}
}

func TestRequiresMeetingLink(t *testing.T) {
	if !(&Appointment{Type: TypeVideoConsultation}).RequiresMeetingLink() {
		t.Error("video consultation should need a link")
	}
	if !(&Appointment{Type: TypeConsultation, ModeName: "Video Call"}).RequiresMeetingLink() {
		t.Error("video mode should need a link")
	}
	if !(&Appointment{Type: TypeFollowUp, ModeName: "Audio only"}).RequiresMeetingLink() {
		t.Error("audio mode should need a link")
	}
	if (&Appointment{Type: TypeConsultation, ModeName: "In Person"}).RequiresMeetingLink() {
		t.Error("in-person should not need a link")
	}
}

func TestAppointmentEnd(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	a := Appointment{ScheduledAt: start, DurationMinutes: 45}
	want := start.Add(45 * time.Minute)
	if !a.End().Equal(want) {
		t.Errorf("End() = %v, want %v", a.End(), want)
	}
}

package appointments

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/avirajsharma-ops/DTPS-sub006/internal/users"
)

// Slot is one candidate bookable window for a provider on a date.
type Slot struct {
	Time      string `json:"time"`      // "HH:MM"
	EndTime   string `json:"endTime"`   // "HH:MM"
	Available bool   `json:"available"`
}

// AvailabilitySource provides a provider's recurring weekly windows.
type AvailabilitySource interface {
	Availability(ctx context.Context, providerID uuid.UUID) ([]users.AvailabilityWindow, error)
}

// ReservationSource lists a provider's non-cancelled appointments
// overlapping a date.
type ReservationSource interface {
	ListActiveForProviderOnDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error)
}

// SlotCalculator enumerates candidate slots across a provider's working
// hours and marks each against existing reservations. Results are
// computed fresh on every call; callers that cache must invalidate on
// every appointment write.
type SlotCalculator struct {
	availability AvailabilitySource
	reservations ReservationSource

	defaultStart   string
	defaultEnd     string
	defaultMinutes int

	// now is swapped in tests to pin the current moment.
	now func() time.Time
}

// NewSlotCalculator builds a calculator with the given fallback window,
// used when a provider has no configured availability for a weekday,
// and the slot duration used when a query does not name one.
func NewSlotCalculator(availability AvailabilitySource, reservations ReservationSource, defaultStart, defaultEnd string, defaultMinutes int) *SlotCalculator {
	if defaultStart == "" {
		defaultStart = "09:00"
	}
	if defaultEnd == "" {
		defaultEnd = "17:00"
	}
	if defaultMinutes <= 0 {
		defaultMinutes = 30
	}
	return &SlotCalculator{
		availability:   availability,
		reservations:   reservations,
		defaultStart:   defaultStart,
		defaultEnd:     defaultEnd,
		defaultMinutes: defaultMinutes,
		now:            time.Now,
	}
}

// DefaultDuration is the slot length in minutes used when the caller
// does not specify one.
func (c *SlotCalculator) DefaultDuration() int {
	return c.defaultMinutes
}

// Slots returns the chronological sequence of candidate slots for the
// provider on the given date, stepped by duration.
func (c *SlotCalculator) Slots(ctx context.Context, providerID uuid.UUID, date time.Time, durationMinutes int) ([]Slot, error) {
	if durationMinutes <= 0 {
		durationMinutes = c.defaultMinutes
	}
	duration := time.Duration(durationMinutes) * time.Minute

	windows, err := c.windowsFor(ctx, providerID, date.Weekday())
	if err != nil {
		return nil, err
	}

	existing, err := c.reservations.ListActiveForProviderOnDate(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("appointments: load reservations for slots: %w", err)
	}

	now := c.now().UTC()
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	slots := make([]Slot, 0, 32)
	for _, w := range windows {
		start, err := atClock(day, w.StartTime)
		if err != nil {
			return nil, err
		}
		end, err := atClock(day, w.EndTime)
		if err != nil {
			return nil, err
		}

		for t := start; !t.Add(duration).After(end); t = t.Add(duration) {
			// Past candidates on the current date are excluded.
			if t.Before(now) {
				continue
			}
			slots = append(slots, Slot{
				Time:      t.Format("15:04"),
				EndTime:   t.Add(duration).Format("15:04"),
				Available: !overlapsAny(existing, t, duration),
			})
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Time < slots[j].Time })
	return slots, nil
}

func (c *SlotCalculator) windowsFor(ctx context.Context, providerID uuid.UUID, weekday time.Weekday) ([]users.AvailabilityWindow, error) {
	all, err := c.availability.Availability(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("appointments: load availability: %w", err)
	}

	var windows []users.AvailabilityWindow
	for _, w := range all {
		if w.Weekday == weekday {
			windows = append(windows, w)
		}
	}
	if len(windows) == 0 {
		windows = []users.AvailabilityWindow{{
			Weekday:   weekday,
			StartTime: c.defaultStart,
			EndTime:   c.defaultEnd,
		}}
	}
	return windows, nil
}

func overlapsAny(existing []Appointment, start time.Time, duration time.Duration) bool {
	for i := range existing {
		if existing[i].Overlaps(start, duration) {
			return true
		}
	}
	return false
}

// atClock combines a day with an "HH:MM" clock value.
func atClock(day time.Time, clock string) (time.Time, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("appointments: bad availability time %q: %w", clock, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), parsed.Hour(), parsed.Minute(), 0, 0, day.Location()), nil
}

package users

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/avirajsharma-ops/DTPS-sub006/internal/identity"
)

// ErrUserNotFound is returned when a lookup misses.
var ErrUserNotFound = errors.New("users: not found")

// User is a member of the practice: staff or client.
type User struct {
	ID    uuid.UUID     `json:"id"`
	Email string        `json:"email"`
	Name  string        `json:"name"`
	Role  identity.Role `json:"role"`

	// Assignment fields, populated for clients only.
	DietitianID        *uuid.UUID  `json:"dietitianId,omitempty"`
	HealthCounselorID  *uuid.UUID  `json:"healthCounselorId,omitempty"`
	AssignedDietitians []uuid.UUID `json:"assignedDietitians,omitempty"`

	Timezone  string    `json:"timezone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AssignedToDietitian reports whether the client is assigned to the
// given dietitian, either directly or through the multi-assignment list.
func (u *User) AssignedToDietitian(dietitianID uuid.UUID) bool {
	if u.DietitianID != nil && *u.DietitianID == dietitianID {
		return true
	}
	for _, id := range u.AssignedDietitians {
		if id == dietitianID {
			return true
		}
	}
	return false
}

// AvailabilityWindow is one recurring weekly working-hours window for a
// provider. Times are "HH:MM" in the provider's local day.
type AvailabilityWindow struct {
	Weekday   time.Weekday `json:"weekday"`
	StartTime string       `json:"startTime"`
	EndTime   string       `json:"endTime"`
}

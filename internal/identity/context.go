// Package identity carries the authenticated caller through request context.
package identity

import "context"

// Role is the caller's role within the practice.
type Role string

const (
	RoleAdmin           Role = "admin"
	RoleDietitian       Role = "dietitian"
	RoleHealthCounselor Role = "health_counselor"
	RoleClient          Role = "client"
)

// IsProvider reports whether the role can be booked for appointments.
func (r Role) IsProvider() bool {
	return r == RoleDietitian || r == RoleHealthCounselor
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDietitian, RoleHealthCounselor, RoleClient:
		return true
	}
	return false
}

// Caller identifies the authenticated user behind a request.
type Caller struct {
	ID    string
	Role  Role
	Name  string
	Email string
}

type ctxKey string

const callerKey ctxKey = "booking.caller"

// WithCaller stores the caller in context.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFromContext extracts the caller if present.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	val := ctx.Value(callerKey)
	if val == nil {
		return Caller{}, false
	}
	c, ok := val.(Caller)
	return c, ok && c.ID != ""
}

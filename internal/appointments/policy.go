package appointments

import (
	"fmt"

	"github.com/avirajsharma-ops/DTPS-sub006/internal/identity"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/users"
)

// Decision is the outcome of a booking authorization check.
type Decision struct {
	Allowed bool
	Reason  string
	// AssignCounselor asks the service to run the idempotent
	// counselor assignment before recording the booking. The policy
	// itself never mutates state.
	AssignCounselor bool
}

func allow() Decision               { return Decision{Allowed: true} }
func deny(reason string) Decision   { return Decision{Reason: reason} }
func allowWithAssignment() Decision { return Decision{Allowed: true, AssignCounselor: true} }

// BookingPolicy decides whether a caller may book the given provider
// for the given client. Implementations are selected by caller role.
type BookingPolicy interface {
	Authorize(caller identity.Caller, provider, client *users.User) Decision
}

// PolicyFor returns the policy matching the caller's role.
func PolicyFor(role identity.Role) (BookingPolicy, error) {
	switch role {
	case identity.RoleAdmin:
		return AdminPolicy{}, nil
	case identity.RoleDietitian:
		return DietitianPolicy{}, nil
	case identity.RoleHealthCounselor:
		return HealthCounselorPolicy{}, nil
	case identity.RoleClient:
		return ClientPolicy{}, nil
	}
	return nil, fmt.Errorf("appointments: no booking policy for role %q", role)
}

// AdminPolicy allows any booking, no scoping restriction.
type AdminPolicy struct{}

func (AdminPolicy) Authorize(identity.Caller, *users.User, *users.User) Decision {
	return allow()
}

// DietitianPolicy allows a dietitian to book only for themselves, and
// only for clients currently assigned to them.
type DietitianPolicy struct{}

func (DietitianPolicy) Authorize(caller identity.Caller, provider, client *users.User) Decision {
	if provider.ID.String() != caller.ID {
		return deny("cannot book appointments for another provider")
	}
	if !client.AssignedToDietitian(provider.ID) {
		return deny("client is not assigned to you")
	}
	return allow()
}

// HealthCounselorPolicy allows a counselor to book only for themselves.
// An unassigned client is claimed on first booking; a client already
// assigned to a different counselor is denied.
type HealthCounselorPolicy struct{}

func (HealthCounselorPolicy) Authorize(caller identity.Caller, provider, client *users.User) Decision {
	if provider.ID.String() != caller.ID {
		return deny("cannot book appointments for another provider")
	}
	if client.HealthCounselorID == nil {
		return allowWithAssignment()
	}
	if *client.HealthCounselorID != provider.ID {
		return deny("client is assigned to a different health counselor")
	}
	return allow()
}

// ClientPolicy governs the client self-service path: a client may book
// themselves with their own assigned provider. The staff booking
// endpoint never reaches this policy with a foreign client because the
// handler pins the client id to the caller.
type ClientPolicy struct{}

func (ClientPolicy) Authorize(caller identity.Caller, provider, client *users.User) Decision {
	if client.ID.String() != caller.ID {
		return deny("clients may only book for themselves")
	}
	if client.AssignedToDietitian(provider.ID) {
		return allow()
	}
	if client.HealthCounselorID != nil && *client.HealthCounselorID == provider.ID {
		return allow()
	}
	return deny("provider is not assigned to you")
}

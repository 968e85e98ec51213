package appointments

import (
	"testing"

	"github.com/google/uuid"

	"github.com/avirajsharma-ops/DTPS-sub006/internal/identity"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/users"
)

func staffCaller(id uuid.UUID, role identity.Role) identity.Caller {
	return identity.Caller{ID: id.String(), Role: role, Name: "Test User"}
}

func TestPolicyFor(t *testing.T) {
	for _, role := range []identity.Role{
		identity.RoleAdmin, identity.RoleDietitian,
		identity.RoleHealthCounselor, identity.RoleClient,
	} {
		if _, err := PolicyFor(role); err != nil {
			t.Errorf("PolicyFor(%s) returned error: %v", role, err)
		}
	}
	if _, err := PolicyFor(identity.Role("intern")); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestAdminPolicyAllowsAnyPair(t *testing.T) {
	provider := &users.User{ID: uuid.New(), Role: identity.RoleDietitian}
	client := &users.User{ID: uuid.New(), Role: identity.RoleClient}

	d := AdminPolicy{}.Authorize(staffCaller(uuid.New(), identity.RoleAdmin), provider, client)
	if !d.Allowed {
		t.Errorf("admin should be allowed, got reason %q", d.Reason)
	}
	if d.AssignCounselor {
		t.Error("admin bookings should not trigger counselor assignment")
	}
}

func TestDietitianPolicy(t *testing.T) {
	dietitianID := uuid.New()
	provider := &users.User{ID: dietitianID, Role: identity.RoleDietitian}

	t.Run("assigned client allowed", func(t *testing.T) {
		client := &users.User{ID: uuid.New(), Role: identity.RoleClient, DietitianID: &dietitianID}
		d := DietitianPolicy{}.Authorize(staffCaller(dietitianID, identity.RoleDietitian), provider, client)
		if !d.Allowed {
			t.Errorf("expected allow, got %q", d.Reason)
		}
	})

	t.Run("multi-assignment list allowed", func(t *testing.T) {
		client := &users.User{ID: uuid.New(), Role: identity.RoleClient, AssignedDietitians: []uuid.UUID{uuid.New(), dietitianID}}
		d := DietitianPolicy{}.Authorize(staffCaller(dietitianID, identity.RoleDietitian), provider, client)
		if !d.Allowed {
			t.Errorf("expected allow, got %q", d.Reason)
		}
	})

	t.Run("unassigned client denied", func(t *testing.T) {
		client := &users.User{ID: uuid.New(), Role: identity.RoleClient}
		d := DietitianPolicy{}.Authorize(staffCaller(dietitianID, identity.RoleDietitian), provider, client)
		if d.Allowed {
			t.Error("expected deny for unassigned client")
		}
	})

	t.Run("other provider denied", func(t *testing.T) {
		client := &users.User{ID: uuid.New(), Role: identity.RoleClient, DietitianID: &dietitianID}
		d := DietitianPolicy{}.Authorize(staffCaller(uuid.New(), identity.RoleDietitian), provider, client)
		if d.Allowed {
			t.Error("expected deny when booking another provider's calendar")
		}
	})
}

func TestHealthCounselorPolicy(t *testing.T) {
	counselorID := uuid.New()
	provider := &users.User{ID: counselorID, Role: identity.RoleHealthCounselor}
	caller := staffCaller(counselorID, identity.RoleHealthCounselor)

	t.Run("unassigned client claims assignment", func(t *testing.T) {
		client := &users.User{ID: uuid.New(), Role: identity.RoleClient}
		d := HealthCounselorPolicy{}.Authorize(caller, provider, client)
		if !d.Allowed {
			t.Fatalf("expected allow, got %q", d.Reason)
		}
		if !d.AssignCounselor {
			t.Error("expected assignment request for unassigned client")
		}
	})

	t.Run("own client allowed without assignment", func(t *testing.T) {
		client := &users.User{ID: uuid.New(), Role: identity.RoleClient, HealthCounselorID: &counselorID}
		d := HealthCounselorPolicy{}.Authorize(caller, provider, client)
		if !d.Allowed {
			t.Fatalf("expected allow, got %q", d.Reason)
		}
		if d.AssignCounselor {
			t.Error("already-assigned client should not re-trigger assignment")
		}
	})

	t.Run("other counselor's client denied", func(t *testing.T) {
		other := uuid.New()
		client := &users.User{ID: uuid.New(), Role: identity.RoleClient, HealthCounselorID: &other}
		d := HealthCounselorPolicy{}.Authorize(caller, provider, client)
		if d.Allowed {
			t.Error("expected deny for a client owned by another counselor")
		}
	})

	t.Run("other provider denied", func(t *testing.T) {
		client := &users.User{ID: uuid.New(), Role: identity.RoleClient}
		d := HealthCounselorPolicy{}.Authorize(staffCaller(uuid.New(), identity.RoleHealthCounselor), provider, client)
		if d.Allowed {
			t.Error("expected deny when booking another provider's calendar")
		}
	})
}

func TestClientPolicy(t *testing.T) {
	dietitianID := uuid.New()
	counselorID := uuid.New()
	clientID := uuid.New()
	caller := staffCaller(clientID, identity.RoleClient)

	t.Run("own assigned dietitian allowed", func(t *testing.T) {
		provider := &users.User{ID: dietitianID, Role: identity.RoleDietitian}
		client := &users.User{ID: clientID, Role: identity.RoleClient, DietitianID: &dietitianID}
		d := ClientPolicy{}.Authorize(caller, provider, client)
		if !d.Allowed {
			t.Errorf("expected allow, got %q", d.Reason)
		}
	})

	t.Run("own counselor allowed", func(t *testing.T) {
		provider := &users.User{ID: counselorID, Role: identity.RoleHealthCounselor}
		client := &users.User{ID: clientID, Role: identity.RoleClient, HealthCounselorID: &counselorID}
		d := ClientPolicy{}.Authorize(caller, provider, client)
		if !d.Allowed {
			t.Errorf("expected allow, got %q", d.Reason)
		}
	})

	t.Run("unrelated provider denied", func(t *testing.T) {
		provider := &users.User{ID: uuid.New(), Role: identity.RoleDietitian}
		client := &users.User{ID: clientID, Role: identity.RoleClient, DietitianID: &dietitianID}
		d := ClientPolicy{}.Authorize(caller, provider, client)
		if d.Allowed {
			t.Error("expected deny for a provider the client is not assigned to")
		}
	})

	t.Run("booking for another client denied", func(t *testing.T) {
		provider := &users.User{ID: dietitianID, Role: identity.RoleDietitian}
		other := &users.User{ID: uuid.New(), Role: identity.RoleClient, DietitianID: &dietitianID}
		d := ClientPolicy{}.Authorize(caller, provider, other)
		if d.Allowed {
			t.Error("expected deny when the client books for someone else")
		}
	})
}

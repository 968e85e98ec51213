package identity

import (
	"context"
	"testing"
)

func TestCallerRoundTrip(t *testing.T) {
	caller := Caller{ID: "u-1", Role: RoleDietitian, Name: "Dana", Email: "dana@example.com"}
	ctx := WithCaller(context.Background(), caller)

	got, ok := CallerFromContext(ctx)
	if !ok {
		t.Fatalf("expected caller in context")
	}
	if got != caller {
		t.Fatalf("caller mismatch: got %+v", got)
	}
}

func TestCallerMissing(t *testing.T) {
	if _, ok := CallerFromContext(context.Background()); ok {
		t.Fatalf("expected no caller in empty context")
	}
}

func TestCallerEmptyIDRejected(t *testing.T) {
	ctx := WithCaller(context.Background(), Caller{Role: RoleAdmin})
	if _, ok := CallerFromContext(ctx); ok {
		t.Fatalf("caller without id should not be returned")
	}
}

func TestRoleHelpers(t *testing.T) {
	if !RoleDietitian.IsProvider() || !RoleHealthCounselor.IsProvider() {
		t.Fatalf("provider roles misclassified")
	}
	if RoleAdmin.IsProvider() || RoleClient.IsProvider() {
		t.Fatalf("non-provider roles misclassified")
	}
	if !RoleClient.Valid() || Role("intern").Valid() {
		t.Fatalf("role validity misclassified")
	}
}

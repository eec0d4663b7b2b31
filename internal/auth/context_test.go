package auth

import (
	"context"
	"testing"

	"github.com/hearthhq/hearth/internal/model"
)

func TestAuthContextRoundTrip(t *testing.T) {
	ac := AuthContext{UserID: 42, FamilyID: 7, Role: model.RoleParent, SessionID: 99}
	ctx := WithAuth(context.Background(), ac)

	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("FromContext returned ok = false")
	}
	if got != ac {
		t.Errorf("got %+v, want %+v", got, ac)
	}
}

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()

	if _, ok := FromContext(ctx); ok {
		t.Error("FromContext on empty context should return ok = false")
	}
	if got := UserID(ctx); got != 0 {
		t.Errorf("UserID = %d, want 0", got)
	}
	if got := FamilyID(ctx); got != 0 {
		t.Errorf("FamilyID = %d, want 0", got)
	}
	if IsParent(ctx) {
		t.Error("IsParent on empty context should be false")
	}
}

func TestIsParent(t *testing.T) {
	parent := WithAuth(context.Background(), AuthContext{UserID: 1, FamilyID: 1, Role: model.RoleParent})
	if !IsParent(parent) {
		t.Error("parent role should report IsParent = true")
	}

	child := WithAuth(context.Background(), AuthContext{UserID: 2, FamilyID: 1, Role: model.RoleChild})
	if IsParent(child) {
		t.Error("child role should report IsParent = false")
	}
}

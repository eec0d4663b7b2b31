package store

import (
	"testing"

	"github.com/hearthhq/hearth/internal/model"
)

func TestFamilyMembership(t *testing.T) {
	db := openTestDB(t)
	fs := NewFamilyStore(db)
	us := NewUserStore(db)

	user, err := us.Create("Third@Example.com", "Alex")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Email != "third@example.com" {
		t.Errorf("email = %q, want lowercased", user.Email)
	}

	member, err := fs.AddMember(1, user.ID, model.RoleChild, "#81b29a")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if member.Role != model.RoleChild || member.Color != "#81b29a" {
		t.Errorf("member = %+v", member)
	}

	members, err := fs.ListMembers(1)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("got %d members, want 3", len(members))
	}

	families, err := fs.ListForUser(user.ID)
	if err != nil {
		t.Fatalf("list families: %v", err)
	}
	if len(families) != 1 || families[0].ID != 1 {
		t.Fatalf("families = %+v, want family 1", families)
	}

	if err := fs.UpdateMemberRole(1, user.ID, model.RoleParent); err != nil {
		t.Fatalf("update role: %v", err)
	}
	got, err := fs.GetMember(1, user.ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if !got.IsParent() {
		t.Error("role update not persisted")
	}

	if err := fs.SetMemberPIN(1, user.ID, "hash-value"); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	got, _ = fs.GetMember(1, user.ID)
	if got.PinHash != "hash-value" {
		t.Errorf("pin hash = %q", got.PinHash)
	}

	if err := fs.RemoveMember(1, user.ID); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	got, err = fs.GetMember(1, user.ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if got != nil {
		t.Error("removed member still present")
	}
}

func TestGetMemberMissing(t *testing.T) {
	fs := NewFamilyStore(openTestDB(t))

	got, err := fs.GetMember(1, 999)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v for a non-member", got)
	}
}

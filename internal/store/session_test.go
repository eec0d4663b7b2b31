package store

import (
	"testing"
	"time"
)

func TestSessionLifecycle(t *testing.T) {
	ss := NewSessionStore(openTestDB(t))

	sess, err := ss.Create(1, 1, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(sess.Token))
	}

	got, err := ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got == nil || got.UserID != 1 || got.FamilyID != 1 {
		t.Fatalf("got %+v, want session for user 1 family 1", got)
	}

	if err := ss.Delete(sess.Token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	got, err = ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got != nil {
		t.Error("deleted session still resolves")
	}
}

func TestExpiredSessionNotReturned(t *testing.T) {
	ss := NewSessionStore(openTestDB(t))

	sess, err := ss.Create(1, 1, -time.Minute)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	got, err := ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got != nil {
		t.Error("expired session still resolves")
	}

	if err := ss.DeleteExpired(); err != nil {
		t.Fatalf("delete expired: %v", err)
	}
}

func TestMagicLinkConsumeOnce(t *testing.T) {
	ms := NewMagicLinkStore(openTestDB(t))

	link, err := ms.Create("Parent@Example.com", "login", nil)
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	if link.Email != "parent@example.com" {
		t.Errorf("email = %q, want lowercased", link.Email)
	}

	got, err := ms.Consume(link.Token)
	if err != nil {
		t.Fatalf("consume link: %v", err)
	}
	if got == nil || got.Email != "parent@example.com" {
		t.Fatalf("consume returned %+v", got)
	}

	again, err := ms.Consume(link.Token)
	if err != nil {
		t.Fatalf("consume link twice: %v", err)
	}
	if again != nil {
		t.Error("token consumed twice")
	}
}

func TestMagicLinkReissueInvalidatesPrevious(t *testing.T) {
	ms := NewMagicLinkStore(openTestDB(t))

	first, err := ms.Create("kid@example.com", "login", nil)
	if err != nil {
		t.Fatalf("create first link: %v", err)
	}
	second, err := ms.Create("kid@example.com", "login", nil)
	if err != nil {
		t.Fatalf("create second link: %v", err)
	}

	if got, err := ms.Consume(first.Token); err != nil || got != nil {
		t.Errorf("stale token still valid (got %+v, err %v)", got, err)
	}
	if got, err := ms.Consume(second.Token); err != nil || got == nil {
		t.Errorf("fresh token rejected (got %+v, err %v)", got, err)
	}
}

func TestMagicLinkCarriesFamilyScope(t *testing.T) {
	ms := NewMagicLinkStore(openTestDB(t))

	familyID := int64(1)
	link, err := ms.Create("invitee@example.com", "invite", &familyID)
	if err != nil {
		t.Fatalf("create invite link: %v", err)
	}

	got, err := ms.Consume(link.Token)
	if err != nil {
		t.Fatalf("consume link: %v", err)
	}
	if got.Purpose != "invite" || got.FamilyID == nil || *got.FamilyID != 1 {
		t.Errorf("consumed link = %+v, want invite scoped to family 1", got)
	}
}

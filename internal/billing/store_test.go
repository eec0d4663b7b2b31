package billing

import (
	"database/sql"
	"testing"
	"time"

	"github.com/hearthhq/hearth/internal/database"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`INSERT INTO families (id, name) VALUES (1, 'The Does')`); err != nil {
		t.Fatalf("seed family: %v", err)
	}
	return db
}

func TestGetOrCreateDefaultsToFree(t *testing.T) {
	ss := NewSubscriptionStore(openTestDB(t))

	sub, err := ss.GetOrCreate(1)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if sub.Plan != PlanFree {
		t.Errorf("plan = %q, want %q", sub.Plan, PlanFree)
	}
	if sub.Active() {
		t.Error("free plan should not report Active()")
	}

	again, err := ss.GetOrCreate(1)
	if err != nil {
		t.Fatalf("second get or create: %v", err)
	}
	if again.ID != sub.ID {
		t.Errorf("GetOrCreate created a second row: %d != %d", again.ID, sub.ID)
	}
}

func TestSubscriptionStripeLookups(t *testing.T) {
	ss := NewSubscriptionStore(openTestDB(t))

	sub, err := ss.GetOrCreate(1)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if err := ss.SetStripeCustomerID(sub.ID, "cus_123"); err != nil {
		t.Fatalf("set customer id: %v", err)
	}
	if err := ss.SetStripeSubscriptionID(sub.ID, "sub_456"); err != nil {
		t.Fatalf("set subscription id: %v", err)
	}

	byCustomer, err := ss.GetByStripeCustomerID("cus_123")
	if err != nil {
		t.Fatalf("get by customer: %v", err)
	}
	if byCustomer == nil || byCustomer.ID != sub.ID {
		t.Fatalf("lookup by customer id failed: %+v", byCustomer)
	}

	bySub, err := ss.GetByStripeID("sub_456")
	if err != nil {
		t.Fatalf("get by stripe id: %v", err)
	}
	if bySub == nil || bySub.ID != sub.ID {
		t.Fatalf("lookup by stripe subscription id failed: %+v", bySub)
	}

	missing, err := ss.GetByStripeID("sub_nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("got %+v for unknown stripe id", missing)
	}
}

func TestSubscriptionPlanChanges(t *testing.T) {
	ss := NewSubscriptionStore(openTestDB(t))

	sub, err := ss.GetOrCreate(1)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}

	if err := ss.UpdatePlan(sub.ID, PlanFamily, "active"); err != nil {
		t.Fatalf("update plan: %v", err)
	}
	periodEnd := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	if err := ss.UpdatePeriodEnd(sub.ID, periodEnd); err != nil {
		t.Fatalf("update period end: %v", err)
	}
	if err := ss.SetCancelAtPeriodEnd(sub.ID, true); err != nil {
		t.Fatalf("set cancel: %v", err)
	}

	got, err := ss.GetByFamilyID(1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Plan != PlanFamily || got.Status != "active" {
		t.Errorf("plan/status = %q/%q", got.Plan, got.Status)
	}
	if !got.Active() {
		t.Error("active family plan should report Active()")
	}
	if got.CurrentPeriodEnd == nil || !got.CurrentPeriodEnd.Equal(periodEnd) {
		t.Errorf("period end = %v, want %v", got.CurrentPeriodEnd, periodEnd)
	}
	if !got.CancelAtPeriodEnd {
		t.Error("cancel_at_period_end not persisted")
	}

	if err := ss.UpdateStatus(sub.ID, "past_due"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ = ss.GetByFamilyID(1)
	if got.Active() {
		t.Error("past_due plan should not report Active()")
	}
}

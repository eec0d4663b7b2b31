package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/hearthhq/hearth/internal/database"
	"github.com/hearthhq/hearth/internal/model"
)

// openTestDB opens an in-memory database and seeds family 1 with a parent
// (user 1) and a child (user 2).
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	seed := []string{
		`INSERT INTO users (id, email, name) VALUES (1, 'parent@example.com', 'Pat'), (2, 'kid@example.com', 'Sam')`,
		`INSERT INTO families (id, name) VALUES (1, 'The Does')`,
		`INSERT INTO family_members (family_id, user_id, role) VALUES (1, 1, 'parent'), (1, 2, 'child')`,
	}
	for _, stmt := range seed {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed test db: %v", err)
		}
	}
	return db
}

func setupTestDB(t *testing.T) *TaskStore {
	t.Helper()
	return NewTaskStore(openTestDB(t))
}

func TestTaskLifecycle(t *testing.T) {
	ts := setupTestDB(t)

	assignee := int64(2)
	due := time.Now().UTC().Add(48 * time.Hour)
	task, err := ts.Create(1, "Take out trash", "bins by 8am", &assignee, &due, 1, 10)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != model.TaskStatusPending {
		t.Errorf("status = %q, want pending", task.Status)
	}
	if task.Points != 10 {
		t.Errorf("points = %d, want 10", task.Points)
	}

	started, err := ts.Start(task.ID)
	if err != nil {
		t.Fatalf("start task: %v", err)
	}
	if started.Status != model.TaskStatusInProgress {
		t.Errorf("status = %q, want in_progress", started.Status)
	}

	key := "families/1/photos/abc"
	completedAt := time.Now().UTC()
	completed, err := ts.Complete(task.ID, &key, completedAt)
	if err != nil {
		t.Fatalf("complete task: %v", err)
	}
	if completed.Status != model.TaskStatusCompleted {
		t.Errorf("status = %q, want completed", completed.Status)
	}
	if completed.PhotoStatus != model.PhotoStatusPending {
		t.Errorf("photo status = %q, want pending", completed.PhotoStatus)
	}
	if completed.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}

	verified, err := ts.Verify(task.ID, completedAt.Add(time.Hour))
	if err != nil {
		t.Fatalf("verify task: %v", err)
	}
	if verified.Status != model.TaskStatusVerified {
		t.Errorf("status = %q, want verified", verified.Status)
	}
	if verified.PhotoStatus != model.PhotoStatusApproved {
		t.Errorf("photo status = %q, want approved", verified.PhotoStatus)
	}
	if verified.VerifiedAt == nil || verified.VerifiedAt.Before(*verified.CompletedAt) {
		t.Errorf("verified_at %v precedes completed_at %v", verified.VerifiedAt, verified.CompletedAt)
	}
}

func TestVerifyRequiresCompletion(t *testing.T) {
	ts := setupTestDB(t)

	task, err := ts.Create(1, "Dishes", "", nil, nil, 0, 5)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	got, err := ts.Verify(task.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("verify task: %v", err)
	}
	if got.Status != model.TaskStatusPending {
		t.Errorf("verify of a pending task changed status to %q", got.Status)
	}
}

func TestRejectClearsCompletion(t *testing.T) {
	ts := setupTestDB(t)

	key := "families/1/photos/xyz"
	task, err := ts.Create(1, "Vacuum", "", nil, nil, 0, 5)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := ts.Complete(task.ID, &key, time.Now().UTC()); err != nil {
		t.Fatalf("complete task: %v", err)
	}

	rejected, err := ts.Reject(task.ID)
	if err != nil {
		t.Fatalf("reject task: %v", err)
	}
	if rejected.Status != model.TaskStatusRejected {
		t.Errorf("status = %q, want rejected", rejected.Status)
	}
	if rejected.CompletedAt != nil {
		t.Error("completed_at survived rejection")
	}
	if rejected.PhotoStatus != model.PhotoStatusRejected {
		t.Errorf("photo status = %q, want rejected", rejected.PhotoStatus)
	}
}

func TestFindDueWithin(t *testing.T) {
	ts := setupTestDB(t)

	now := time.Now().UTC()
	assignee := int64(2)

	mk := func(title string, due *time.Time, assigned bool) *model.Task {
		t.Helper()
		var a *int64
		if assigned {
			a = &assignee
		}
		task, err := ts.Create(1, title, "", a, due, 0, 0)
		if err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
		return task
	}

	soon := now.Add(6 * time.Hour)
	overdue := now.Add(-30 * time.Hour)
	far := now.Add(72 * time.Hour)

	mk("due soon", &soon, true)
	mk("overdue", &overdue, true)
	mk("far out", &far, true)
	mk("no due date", nil, true)
	mk("unassigned", &soon, false)
	done := mk("already done", &soon, true)
	if _, err := ts.Complete(done.ID, nil, now); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, err := ts.FindDueWithin(now.Add(24 * time.Hour))
	if err != nil {
		t.Fatalf("find due within: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2 (overdue and due soon)", len(got))
	}
	// Ordered by due date, so the overdue task comes first.
	if got[0].Title != "overdue" || got[1].Title != "due soon" {
		t.Errorf("candidates = [%s, %s], want [overdue, due soon]", got[0].Title, got[1].Title)
	}
}

func TestFindOverdueAndCounts(t *testing.T) {
	ts := setupTestDB(t)

	now := time.Now().UTC()
	assignee := int64(2)
	past := now.Add(-48 * time.Hour)
	today := now.Add(2 * time.Hour)
	nextWeek := now.Add(5 * 24 * time.Hour)

	if _, err := ts.Create(1, "late", "", &assignee, &past, 0, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := ts.Create(1, "today", "", &assignee, &today, 0, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := ts.Create(1, "next week", "", &assignee, &nextWeek, 0, 0); err != nil {
		t.Fatalf("create: %v", err)
	}

	overdue, err := ts.FindOverdue(1, now)
	if err != nil {
		t.Fatalf("find overdue: %v", err)
	}
	if len(overdue) != 1 || overdue[0].Title != "late" {
		t.Fatalf("overdue = %+v, want only the late task", overdue)
	}

	familyID := int64(1)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	count, err := ts.CountDueBetween(&familyID, dayStart, dayStart.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("count due: %v", err)
	}
	if count != 2 {
		t.Errorf("due this week = %d, want 2", count)
	}

	overdueCount, err := ts.CountOverdue(&familyID, now)
	if err != nil {
		t.Fatalf("count overdue: %v", err)
	}
	if overdueCount != 1 {
		t.Errorf("overdue count = %d, want 1", overdueCount)
	}
}

func TestFindCompletedInRange(t *testing.T) {
	ts := setupTestDB(t)

	now := time.Now().UTC()
	inWindow, err := ts.Create(1, "recent", "", nil, nil, 0, 5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := ts.Complete(inWindow.ID, nil, now.Add(-2*time.Hour)); err != nil {
		t.Fatalf("complete: %v", err)
	}

	old, err := ts.Create(1, "ancient", "", nil, nil, 0, 5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := ts.Complete(old.ID, nil, now.Add(-80*time.Hour)); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, err := ts.FindCompletedInRange(1, now.Add(-24*time.Hour), now)
	if err != nil {
		t.Fatalf("find completed: %v", err)
	}
	if len(got) != 1 || got[0].Title != "recent" {
		t.Fatalf("completed in range = %+v, want only the recent task", got)
	}
}

func TestCountPendingApprovals(t *testing.T) {
	ts := setupTestDB(t)

	key := "families/1/photos/a"
	withPhoto, err := ts.Create(1, "with photo", "", nil, nil, 0, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := ts.Complete(withPhoto.ID, &key, time.Now().UTC()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	plain, err := ts.Create(1, "no photo", "", nil, nil, 0, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := ts.Complete(plain.ID, nil, time.Now().UTC()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	count, err := ts.CountPendingApprovals(1)
	if err != nil {
		t.Fatalf("count approvals: %v", err)
	}
	if count != 1 {
		t.Errorf("pending approvals = %d, want 1", count)
	}
}

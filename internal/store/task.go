package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hearthhq/hearth/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var assigneeID sql.NullInt64
	var dueDate, completedAt, verifiedAt sql.NullTime
	var photoKey sql.NullString

	err := scanner.Scan(
		&t.ID, &t.FamilyID, &t.Title, &t.Notes, &assigneeID, &dueDate,
		&t.Status, &t.Priority, &t.Points, &completedAt, &verifiedAt,
		&photoKey, &t.PhotoStatus, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if assigneeID.Valid {
		t.AssigneeID = &assigneeID.Int64
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	if verifiedAt.Valid {
		t.VerifiedAt = &verifiedAt.Time
	}
	if photoKey.Valid {
		t.PhotoKey = &photoKey.String
	}
	return &t, nil
}

const taskCols = `id, family_id, title, notes, assignee_id, due_date, status, priority, points, completed_at, verified_at, photo_key, photo_status, created_at, updated_at`

func (s *TaskStore) Create(familyID int64, title, notes string, assigneeID *int64, dueDate *time.Time, priority, points int) (*model.Task, error) {
	var aID sql.NullInt64
	if assigneeID != nil {
		aID = sql.NullInt64{Int64: *assigneeID, Valid: true}
	}
	var due sql.NullTime
	if dueDate != nil {
		due = sql.NullTime{Time: dueDate.UTC(), Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO tasks (family_id, title, notes, assignee_id, due_date, priority, points) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		familyID, title, notes, aID, due, priority, points,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) ListByFamily(familyID int64) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks WHERE family_id = ? ORDER BY due_date IS NULL, due_date ASC, priority DESC, title ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (s *TaskStore) Update(id int64, title, notes string, assigneeID *int64, dueDate *time.Time, priority, points int) (*model.Task, error) {
	var aID sql.NullInt64
	if assigneeID != nil {
		aID = sql.NullInt64{Int64: *assigneeID, Valid: true}
	}
	var due sql.NullTime
	if dueDate != nil {
		due = sql.NullTime{Time: dueDate.UTC(), Valid: true}
	}

	_, err := s.db.Exec(
		`UPDATE tasks SET title = ?, notes = ?, assignee_id = ?, due_date = ?, priority = ?, points = ?, updated_at = datetime('now') WHERE id = ?`,
		title, notes, aID, due, priority, points, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// Start moves a pending task to in_progress.
func (s *TaskStore) Start(id int64) (*model.Task, error) {
	_, err := s.db.Exec(
		`UPDATE tasks SET status = ?, updated_at = datetime('now') WHERE id = ? AND status = ?`,
		model.TaskStatusInProgress, id, model.TaskStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("start task: %w", err)
	}
	return s.GetByID(id)
}

// Complete marks a task completed at the given time. When a photo key is
// provided the photo enters the pending-approval state.
func (s *TaskStore) Complete(id int64, photoKey *string, at time.Time) (*model.Task, error) {
	photoStatus := model.PhotoStatusNone
	var key sql.NullString
	if photoKey != nil {
		key = sql.NullString{String: *photoKey, Valid: true}
		photoStatus = model.PhotoStatusPending
	}

	_, err := s.db.Exec(
		`UPDATE tasks SET status = ?, completed_at = ?, verified_at = NULL, photo_key = ?, photo_status = ?, updated_at = datetime('now') WHERE id = ?`,
		model.TaskStatusCompleted, at.UTC(), key, photoStatus, id,
	)
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	return s.GetByID(id)
}

// Verify approves a completed task. Verification time is never earlier than
// completion time.
func (s *TaskStore) Verify(id int64, at time.Time) (*model.Task, error) {
	_, err := s.db.Exec(
		`UPDATE tasks SET status = ?, verified_at = ?, photo_status = CASE photo_status WHEN ? THEN ? ELSE photo_status END, updated_at = datetime('now')
		 WHERE id = ? AND status = ? AND completed_at IS NOT NULL AND completed_at <= ?`,
		model.TaskStatusVerified, at.UTC(), model.PhotoStatusPending, model.PhotoStatusApproved,
		id, model.TaskStatusCompleted, at.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify task: %w", err)
	}
	return s.GetByID(id)
}

// Reject sends a completed task back. The completion timestamp is cleared so
// rejected tasks never count as done.
func (s *TaskStore) Reject(id int64) (*model.Task, error) {
	_, err := s.db.Exec(
		`UPDATE tasks SET status = ?, completed_at = NULL, verified_at = NULL, photo_status = CASE photo_status WHEN ? THEN ? ELSE photo_status END, updated_at = datetime('now')
		 WHERE id = ? AND status = ?`,
		model.TaskStatusRejected, model.PhotoStatusPending, model.PhotoStatusRejected,
		id, model.TaskStatusCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("reject task: %w", err)
	}
	return s.GetByID(id)
}

// --- Scheduling queries ---

// FindDueWithin returns open, assigned tasks whose due date is at or before
// until. Overdue tasks are swept in by the unbounded lower edge.
func (s *TaskStore) FindDueWithin(until time.Time) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks
		 WHERE due_date IS NOT NULL AND due_date <= ? AND assignee_id IS NOT NULL AND status IN (?, ?)
		 ORDER BY due_date ASC, id ASC`,
		until.UTC(), model.TaskStatusPending, model.TaskStatusInProgress,
	)
	if err != nil {
		return nil, fmt.Errorf("find due tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// FindOverdue returns open tasks in the family whose due date is strictly in
// the past.
func (s *TaskStore) FindOverdue(familyID int64, now time.Time) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks
		 WHERE family_id = ? AND due_date IS NOT NULL AND due_date < ? AND status IN (?, ?)
		 ORDER BY due_date ASC, id ASC`,
		familyID, now.UTC(), model.TaskStatusPending, model.TaskStatusInProgress,
	)
	if err != nil {
		return nil, fmt.Errorf("find overdue tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// FindCompletedInRange returns completed or verified family tasks whose
// completion time falls in [start, end].
func (s *TaskStore) FindCompletedInRange(familyID int64, start, end time.Time) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks
		 WHERE family_id = ? AND status IN (?, ?) AND completed_at IS NOT NULL AND completed_at >= ? AND completed_at <= ?
		 ORDER BY completed_at ASC, id ASC`,
		familyID, model.TaskStatusCompleted, model.TaskStatusVerified, start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("find completed tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// CountPendingApprovals counts family tasks awaiting photo review.
func (s *TaskStore) CountPendingApprovals(familyID int64) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM tasks WHERE family_id = ? AND photo_status = ?`,
		familyID, model.PhotoStatusPending,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending approvals: %w", err)
	}
	return count, nil
}

// CountDueBetween counts open tasks due in [start, end), optionally scoped to
// a family.
func (s *TaskStore) CountDueBetween(familyID *int64, start, end time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM tasks WHERE due_date IS NOT NULL AND due_date >= ? AND due_date < ? AND status IN (?, ?)`
	args := []any{start.UTC(), end.UTC(), model.TaskStatusPending, model.TaskStatusInProgress}
	if familyID != nil {
		query += ` AND family_id = ?`
		args = append(args, *familyID)
	}

	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count due tasks: %w", err)
	}
	return count, nil
}

// CountOverdue counts open tasks with a due date strictly before now,
// optionally scoped to a family.
func (s *TaskStore) CountOverdue(familyID *int64, now time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM tasks WHERE due_date IS NOT NULL AND due_date < ? AND status IN (?, ?)`
	args := []any{now.UTC(), model.TaskStatusPending, model.TaskStatusInProgress}
	if familyID != nil {
		query += ` AND family_id = ?`
		args = append(args, *familyID)
	}

	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count overdue tasks: %w", err)
	}
	return count, nil
}

func scanTasks(rows *sql.Rows) ([]model.Task, error) {
	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

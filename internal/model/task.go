package model

import "time"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusVerified   TaskStatus = "verified"
	TaskStatusRejected   TaskStatus = "rejected"
)

type PhotoStatus string

const (
	PhotoStatusNone     PhotoStatus = "none"
	PhotoStatusPending  PhotoStatus = "pending"
	PhotoStatusApproved PhotoStatus = "approved"
	PhotoStatusRejected PhotoStatus = "rejected"
)

type Task struct {
	ID          int64       `json:"id"`
	FamilyID    int64       `json:"family_id"`
	Title       string      `json:"title"`
	Notes       string      `json:"notes"`
	AssigneeID  *int64      `json:"assignee_id"`
	DueDate     *time.Time  `json:"due_date"`
	Status      TaskStatus  `json:"status"`
	Priority    int         `json:"priority"`
	Points      int         `json:"points"`
	CompletedAt *time.Time  `json:"completed_at"`
	VerifiedAt  *time.Time  `json:"verified_at"`
	PhotoKey    *string     `json:"photo_key"`
	PhotoStatus PhotoStatus `json:"photo_status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Open reports whether the task still needs doing.
func (t *Task) Open() bool {
	return t.Status == TaskStatusPending || t.Status == TaskStatusInProgress
}

// Done reports whether the task has been completed (verified or not).
func (t *Task) Done() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusVerified
}

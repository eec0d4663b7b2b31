// Package notify holds the reminder and digest scheduling engines. The
// engines pull candidate tasks and preference records from their sources,
// apply quiet-hours and rate-limit policy, and hand qualifying notifications
// to a dispatcher. All temporal branching goes through an injected Clock.
package notify

import (
	"time"

	"github.com/hearthhq/hearth/internal/model"
)

// TaskSource is the slice of the task store the engines read.
type TaskSource interface {
	FindDueWithin(until time.Time) ([]model.Task, error)
	FindOverdue(familyID int64, now time.Time) ([]model.Task, error)
	FindCompletedInRange(familyID int64, start, end time.Time) ([]model.Task, error)
	CountPendingApprovals(familyID int64) (int, error)
}

// PreferenceSource reads and updates per (user, family) notification records.
// Updating the last-sent timestamp is the only mutation the engines perform.
type PreferenceSource interface {
	GetOrCreate(userID, familyID int64) (*model.NotificationPreferences, error)
	FindSubscribedForDigest(hhmm string) ([]model.NotificationPreferences, error)
	UpdateLastNotification(userID, familyID int64, category string, at time.Time) error
}

// ReminderTier identifies which lead-time tier triggered a reminder.
type ReminderTier string

const (
	TierFirst  ReminderTier = "first"
	TierSecond ReminderTier = "second"
	TierFinal  ReminderTier = "final"
)

// ReminderJob is the transient unit of work handed to the dispatcher. It is
// recomputed on every evaluation pass, never stored.
type ReminderJob struct {
	TaskID       int64
	UserID       int64
	FamilyID     int64
	Tier         ReminderTier
	TaskTitle    string
	Points       int
	DueDate      time.Time
	DaysUntilDue int
}

// DigestPayload is the once-daily summary for one (user, family) pair.
type DigestPayload struct {
	UserID               int64
	FamilyID             int64
	Date                 time.Time
	CompletedTasks       []model.Task
	OverdueTasks         []model.Task
	PendingApprovalCount int
	TotalPointsEarned    int
}

// Dispatcher delivers rendered notifications. Implementations report delivery
// failure through the returned error; the engines treat any error as
// "not sent" and leave rate-limit bookkeeping untouched.
type Dispatcher interface {
	SendReminder(job ReminderJob) error
	SendDigest(payload DigestPayload) error
}

// Config carries the scheduling policy knobs. Zero values fall back to the
// defaults below so tests can set only what they exercise.
type Config struct {
	// LookaheadWindow bounds candidate selection: tasks due at or before
	// now+window are considered (overdue tasks sweep in underneath).
	LookaheadWindow time.Duration
	// ReminderRateLimit is the minimum gap between two chore reminders to
	// the same user.
	ReminderRateLimit time.Duration
	// Location anchors calendar-day math (digest idempotence, day counts).
	Location *time.Location
}

const (
	defaultLookaheadWindow   = 24 * time.Hour
	defaultReminderRateLimit = 12 * time.Hour
)

func (c Config) withDefaults() Config {
	if c.LookaheadWindow <= 0 {
		c.LookaheadWindow = defaultLookaheadWindow
	}
	if c.ReminderRateLimit <= 0 {
		c.ReminderRateLimit = defaultReminderRateLimit
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

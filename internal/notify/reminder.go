package notify

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/hearthhq/hearth/internal/model"
)

// ReminderEngine decides, per evaluation pass, which due or overdue tasks
// warrant a reminder right now.
type ReminderEngine struct {
	mu       sync.Mutex
	tasks    TaskSource
	prefs    PreferenceSource
	dispatch Dispatcher
	clock    Clock
	cfg      Config
	logger   *slog.Logger
}

func NewReminderEngine(tasks TaskSource, prefs PreferenceSource, dispatch Dispatcher, clock Clock, cfg Config, logger *slog.Logger) *ReminderEngine {
	return &ReminderEngine{
		tasks:    tasks,
		prefs:    prefs,
		dispatch: dispatch,
		clock:    clock,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// ProcessDueReminders runs one evaluation pass, optionally scoped to a single
// family. Candidate selection failure aborts the pass; per-task failures are
// logged and skipped. Overlapping invocations are dropped, not queued.
func (e *ReminderEngine) ProcessDueReminders(familyID *int64) error {
	if !e.mu.TryLock() {
		e.logger.Warn("reminder pass already running, skipping")
		return nil
	}
	defer e.mu.Unlock()

	now := e.clock.Now().In(e.cfg.Location)

	candidates, err := e.tasks.FindDueWithin(now.Add(e.cfg.LookaheadWindow))
	if err != nil {
		return fmt.Errorf("find due tasks: %w", err)
	}

	for _, task := range candidates {
		if familyID != nil && task.FamilyID != *familyID {
			continue
		}
		// Selection should have excluded these; guard against bad rows.
		if task.DueDate == nil || task.AssigneeID == nil || !task.Open() {
			continue
		}
		if err := e.processTask(task, now); err != nil {
			e.logger.Error("reminder failed", "task_id", task.ID, "error", err)
		}
	}
	return nil
}

func (e *ReminderEngine) processTask(task model.Task, now time.Time) error {
	prefs, err := e.prefs.GetOrCreate(*task.AssigneeID, task.FamilyID)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}

	if !prefs.EmailEnabled || !prefs.RemindersEnabled {
		return nil
	}
	if !prefs.AllowsAt(now) {
		return nil
	}

	due := task.DueDate.In(e.cfg.Location)
	tier, ok := dueTier(due, prefs, now)
	if !ok {
		return nil
	}

	// Preferences are re-read per candidate, so the first send in a pass
	// suppresses the user's remaining qualifying tasks.
	if prefs.LastChoreReminder != nil && now.Sub(*prefs.LastChoreReminder) < e.cfg.ReminderRateLimit {
		return nil
	}

	job := ReminderJob{
		TaskID:       task.ID,
		UserID:       *task.AssigneeID,
		FamilyID:     task.FamilyID,
		Tier:         tier,
		TaskTitle:    task.Title,
		Points:       task.Points,
		DueDate:      due,
		DaysUntilDue: daysUntil(due, now),
	}
	if err := e.dispatch.SendReminder(job); err != nil {
		return fmt.Errorf("dispatch reminder: %w", err)
	}

	if err := e.prefs.UpdateLastNotification(job.UserID, job.FamilyID, model.CategoryChoreReminder, now); err != nil {
		return fmt.Errorf("record reminder send: %w", err)
	}

	e.logger.Info("reminder sent", "task_id", task.ID, "user_id", job.UserID, "tier", tier)
	return nil
}

// dueTier decides whether a reminder fires at now and which tier it belongs
// to. Tiers match on exact day counts; a tier whose evaluation day passes
// without a pass is lost, not caught up.
func dueTier(due time.Time, prefs *model.NotificationPreferences, now time.Time) (ReminderTier, bool) {
	days := daysUntil(due, now)

	switch {
	case days <= 0:
		// Overdue or due today: always eligible regardless of tier settings.
		return TierFinal, true
	case prefs.FirstReminderDays > 0 && days == prefs.FirstReminderDays:
		return TierFirst, true
	case prefs.SecondReminderDays > 0 && days == prefs.SecondReminderDays:
		return TierSecond, true
	case prefs.FinalReminderHours > 0 && due.Sub(now) <= time.Duration(prefs.FinalReminderHours)*time.Hour:
		return TierFinal, true
	}
	return "", false
}

// daysUntil is ceil((due - now) / 24h): 0 for due-today-or-just-passed,
// negative once a full day overdue.
func daysUntil(due, now time.Time) int {
	return int(math.Ceil(due.Sub(now).Hours() / 24))
}

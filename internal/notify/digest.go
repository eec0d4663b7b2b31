package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hearthhq/hearth/internal/model"
)

// DigestEngine produces the once-daily summary for each subscribed
// (user, family) pair.
type DigestEngine struct {
	mu       sync.Mutex
	tasks    TaskSource
	prefs    PreferenceSource
	dispatch Dispatcher
	clock    Clock
	cfg      Config
	logger   *slog.Logger
}

func NewDigestEngine(tasks TaskSource, prefs PreferenceSource, dispatch Dispatcher, clock Clock, cfg Config, logger *slog.Logger) *DigestEngine {
	return &DigestEngine{
		tasks:    tasks,
		prefs:    prefs,
		dispatch: dispatch,
		clock:    clock,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// ProcessDailyDigests runs one evaluation pass, optionally scoped to a single
// family. Candidates are records whose delivery time matches now's HH:MM, so
// the trigger must fire at least once a minute. The same-calendar-day guard
// makes repeat invocations within that minute idempotent.
func (e *DigestEngine) ProcessDailyDigests(familyID *int64) error {
	if !e.mu.TryLock() {
		e.logger.Warn("digest pass already running, skipping")
		return nil
	}
	defer e.mu.Unlock()

	now := e.clock.Now().In(e.cfg.Location)

	subscribers, err := e.prefs.FindSubscribedForDigest(now.Format("15:04"))
	if err != nil {
		return fmt.Errorf("find digest subscribers: %w", err)
	}

	for _, prefs := range subscribers {
		if familyID != nil && prefs.FamilyID != *familyID {
			continue
		}
		if err := e.processDigest(prefs, now); err != nil {
			e.logger.Error("digest failed", "user_id", prefs.UserID, "family_id", prefs.FamilyID, "error", err)
		}
	}
	return nil
}

func (e *DigestEngine) processDigest(prefs model.NotificationPreferences, now time.Time) error {
	if !prefs.EmailEnabled {
		return nil
	}
	if prefs.LastDailyDigest != nil && sameCalendarDay(prefs.LastDailyDigest.In(e.cfg.Location), now) {
		return nil
	}
	if !prefs.AllowsAt(now) {
		return nil
	}

	payload, err := e.buildPayload(prefs.UserID, prefs.FamilyID, now)
	if err != nil {
		return err
	}

	if err := e.dispatch.SendDigest(*payload); err != nil {
		return fmt.Errorf("dispatch digest: %w", err)
	}

	if err := e.prefs.UpdateLastNotification(prefs.UserID, prefs.FamilyID, model.CategoryDailyDigest, now); err != nil {
		return fmt.Errorf("record digest send: %w", err)
	}

	e.logger.Info("digest sent", "user_id", prefs.UserID, "family_id", prefs.FamilyID)
	return nil
}

// buildPayload aggregates the trailing window: completions since yesterday
// midnight through the end of today, every overdue task, the family's
// pending photo approvals, and the points earned by the completed set.
func (e *DigestEngine) buildPayload(userID, familyID int64, now time.Time) (*DigestPayload, error) {
	year, month, day := now.Date()
	start := time.Date(year, month, day-1, 0, 0, 0, 0, e.cfg.Location)
	end := time.Date(year, month, day, 23, 59, 59, int(999*time.Millisecond), e.cfg.Location)

	completed, err := e.tasks.FindCompletedInRange(familyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("find completed tasks: %w", err)
	}
	overdue, err := e.tasks.FindOverdue(familyID, now)
	if err != nil {
		return nil, fmt.Errorf("find overdue tasks: %w", err)
	}
	pending, err := e.tasks.CountPendingApprovals(familyID)
	if err != nil {
		return nil, fmt.Errorf("count pending approvals: %w", err)
	}

	points := 0
	for _, t := range completed {
		points += t.Points
	}

	return &DigestPayload{
		UserID:               userID,
		FamilyID:             familyID,
		Date:                 now,
		CompletedTasks:       completed,
		OverdueTasks:         overdue,
		PendingApprovalCount: pending,
		TotalPointsEarned:    points,
	}, nil
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

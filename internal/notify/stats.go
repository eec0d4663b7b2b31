package notify

import (
	"fmt"
	"time"
)

// StatsSource is the slice of the task store the reporter reads.
type StatsSource interface {
	CountDueBetween(familyID *int64, start, end time.Time) (int, error)
	CountOverdue(familyID *int64, now time.Time) (int, error)
}

// PreferenceCounter counts notification subscriptions.
type PreferenceCounter interface {
	CountRemindersEnabled(familyID *int64) (int, error)
	CountDigestEnabled(familyID *int64) (int, error)
}

// Stats is a read-only operational snapshot.
type Stats struct {
	TasksDueToday    int `json:"tasks_due_today"`
	TasksDueThisWeek int `json:"tasks_due_this_week"`
	TasksOverdue     int `json:"tasks_overdue"`
	RemindersEnabled int `json:"reminders_enabled"`
	DigestEnabled    int `json:"digest_enabled"`
}

// Reporter computes aggregate counts for operational visibility. It has no
// side effects.
type Reporter struct {
	tasks StatsSource
	prefs PreferenceCounter
	clock Clock
	loc   *time.Location
}

func NewReporter(tasks StatsSource, prefs PreferenceCounter, clock Clock, loc *time.Location) *Reporter {
	if loc == nil {
		loc = time.Local
	}
	return &Reporter{tasks: tasks, prefs: prefs, clock: clock, loc: loc}
}

// Report returns counts optionally scoped to one family. Any query failure
// fails the whole report.
func (r *Reporter) Report(familyID *int64) (*Stats, error) {
	now := r.clock.Now().In(r.loc)
	year, month, day := now.Date()
	today := time.Date(year, month, day, 0, 0, 0, 0, r.loc)
	tomorrow := today.AddDate(0, 0, 1)
	weekEnd := today.AddDate(0, 0, 7)

	dueToday, err := r.tasks.CountDueBetween(familyID, today, tomorrow)
	if err != nil {
		return nil, fmt.Errorf("count due today: %w", err)
	}
	dueWeek, err := r.tasks.CountDueBetween(familyID, today, weekEnd)
	if err != nil {
		return nil, fmt.Errorf("count due this week: %w", err)
	}
	overdue, err := r.tasks.CountOverdue(familyID, now)
	if err != nil {
		return nil, fmt.Errorf("count overdue: %w", err)
	}
	reminders, err := r.prefs.CountRemindersEnabled(familyID)
	if err != nil {
		return nil, fmt.Errorf("count reminder subscribers: %w", err)
	}
	digest, err := r.prefs.CountDigestEnabled(familyID)
	if err != nil {
		return nil, fmt.Errorf("count digest subscribers: %w", err)
	}

	return &Stats{
		TasksDueToday:    dueToday,
		TasksDueThisWeek: dueWeek,
		TasksOverdue:     overdue,
		RemindersEnabled: reminders,
		DigestEnabled:    digest,
	}, nil
}

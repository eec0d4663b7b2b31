package model

import "time"

// Notification categories used for last-sent bookkeeping.
const (
	CategoryChoreReminder = "chore_reminder"
	CategoryDailyDigest   = "daily_digest"
	CategoryAssignment    = "assignment"
)

// NotificationPreferences is the per (user, family) notification record.
// Lead times of 0 disable that reminder tier. Quiet hours are local HH:MM
// strings; an empty start or end disables the window.
type NotificationPreferences struct {
	ID                 int64      `json:"id"`
	UserID             int64      `json:"user_id"`
	FamilyID           int64      `json:"family_id"`
	EmailEnabled       bool       `json:"email_enabled"`
	AssignmentEnabled  bool       `json:"assignment_enabled"`
	RemindersEnabled   bool       `json:"reminders_enabled"`
	DigestEnabled      bool       `json:"digest_enabled"`
	FirstReminderDays  int        `json:"first_reminder_days"`
	SecondReminderDays int        `json:"second_reminder_days"`
	FinalReminderHours int        `json:"final_reminder_hours"`
	QuietHoursStart    string     `json:"quiet_hours_start"`
	QuietHoursEnd      string     `json:"quiet_hours_end"`
	DailyDigestTime    string     `json:"daily_digest_time"`
	LastChoreReminder  *time.Time `json:"last_chore_reminder"`
	LastDailyDigest    *time.Time `json:"last_daily_digest"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// DefaultPreferences returns the record created on first access for a
// (user, family) pair.
func DefaultPreferences(userID, familyID int64) NotificationPreferences {
	return NotificationPreferences{
		UserID:             userID,
		FamilyID:           familyID,
		EmailEnabled:       true,
		AssignmentEnabled:  true,
		RemindersEnabled:   true,
		DigestEnabled:      false,
		FirstReminderDays:  3,
		SecondReminderDays: 1,
		FinalReminderHours: 2,
		DailyDigestTime:    "18:00",
	}
}

// AllowsAt reports whether a notification may be sent at t, i.e. t is
// outside the quiet-hours window [start, end). Windows may wrap midnight.
func (p *NotificationPreferences) AllowsAt(t time.Time) bool {
	start, okStart := parseMinuteOfDay(p.QuietHoursStart)
	end, okEnd := parseMinuteOfDay(p.QuietHoursEnd)
	if !okStart || !okEnd || start == end {
		return true
	}

	minute := t.Hour()*60 + t.Minute()
	if start < end {
		return minute < start || minute >= end
	}
	// Window wraps midnight, e.g. 21:00-07:00.
	return minute < start && minute >= end
}

func parseMinuteOfDay(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

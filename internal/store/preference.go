package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hearthhq/hearth/internal/model"
)

type PreferenceStore struct {
	db *sql.DB
}

func NewPreferenceStore(db *sql.DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

func scanPreferences(scanner interface{ Scan(...any) error }) (*model.NotificationPreferences, error) {
	var p model.NotificationPreferences
	var email, assignment, reminders, digest int
	var lastReminder, lastDigest sql.NullTime

	err := scanner.Scan(
		&p.ID, &p.UserID, &p.FamilyID, &email, &assignment, &reminders, &digest,
		&p.FirstReminderDays, &p.SecondReminderDays, &p.FinalReminderHours,
		&p.QuietHoursStart, &p.QuietHoursEnd, &p.DailyDigestTime,
		&lastReminder, &lastDigest, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.EmailEnabled = email != 0
	p.AssignmentEnabled = assignment != 0
	p.RemindersEnabled = reminders != 0
	p.DigestEnabled = digest != 0
	if lastReminder.Valid {
		p.LastChoreReminder = &lastReminder.Time
	}
	if lastDigest.Valid {
		p.LastDailyDigest = &lastDigest.Time
	}
	return &p, nil
}

const preferenceCols = `id, user_id, family_id, email_enabled, assignment_enabled, reminders_enabled, digest_enabled, first_reminder_days, second_reminder_days, final_reminder_hours, quiet_hours_start, quiet_hours_end, daily_digest_time, last_chore_reminder, last_daily_digest, created_at, updated_at`

// GetOrCreate returns the preference record for the (user, family) pair,
// inserting the defaults if none exists yet.
func (s *PreferenceStore) GetOrCreate(userID, familyID int64) (*model.NotificationPreferences, error) {
	def := model.DefaultPreferences(userID, familyID)
	_, err := s.db.Exec(
		`INSERT INTO notification_preferences (user_id, family_id, email_enabled, assignment_enabled, reminders_enabled, digest_enabled, first_reminder_days, second_reminder_days, final_reminder_hours, daily_digest_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, family_id) DO NOTHING`,
		userID, familyID,
		boolToInt(def.EmailEnabled), boolToInt(def.AssignmentEnabled), boolToInt(def.RemindersEnabled), boolToInt(def.DigestEnabled),
		def.FirstReminderDays, def.SecondReminderDays, def.FinalReminderHours, def.DailyDigestTime,
	)
	if err != nil {
		return nil, fmt.Errorf("create preferences: %w", err)
	}

	row := s.db.QueryRow(
		`SELECT `+preferenceCols+` FROM notification_preferences WHERE user_id = ? AND family_id = ?`,
		userID, familyID,
	)
	p, err := scanPreferences(row)
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return p, nil
}

// Update replaces the user-editable fields of the record.
func (s *PreferenceStore) Update(p *model.NotificationPreferences) (*model.NotificationPreferences, error) {
	_, err := s.db.Exec(
		`UPDATE notification_preferences SET email_enabled = ?, assignment_enabled = ?, reminders_enabled = ?, digest_enabled = ?,
		 first_reminder_days = ?, second_reminder_days = ?, final_reminder_hours = ?,
		 quiet_hours_start = ?, quiet_hours_end = ?, daily_digest_time = ?, updated_at = datetime('now')
		 WHERE user_id = ? AND family_id = ?`,
		boolToInt(p.EmailEnabled), boolToInt(p.AssignmentEnabled), boolToInt(p.RemindersEnabled), boolToInt(p.DigestEnabled),
		p.FirstReminderDays, p.SecondReminderDays, p.FinalReminderHours,
		p.QuietHoursStart, p.QuietHoursEnd, p.DailyDigestTime,
		p.UserID, p.FamilyID,
	)
	if err != nil {
		return nil, fmt.Errorf("update preferences: %w", err)
	}
	return s.GetOrCreate(p.UserID, p.FamilyID)
}

// FindSubscribedForDigest returns records with the digest enabled and a
// delivery time equal to hhmm ("15:04" format, minute granularity).
func (s *PreferenceStore) FindSubscribedForDigest(hhmm string) ([]model.NotificationPreferences, error) {
	rows, err := s.db.Query(
		`SELECT `+preferenceCols+` FROM notification_preferences WHERE digest_enabled = 1 AND daily_digest_time = ? ORDER BY id ASC`,
		hhmm,
	)
	if err != nil {
		return nil, fmt.Errorf("find digest subscribers: %w", err)
	}
	defer rows.Close()

	var prefs []model.NotificationPreferences
	for rows.Next() {
		p, err := scanPreferences(rows)
		if err != nil {
			return nil, fmt.Errorf("scan preferences: %w", err)
		}
		prefs = append(prefs, *p)
	}
	return prefs, rows.Err()
}

// UpdateLastNotification records the send time for a notification category.
func (s *PreferenceStore) UpdateLastNotification(userID, familyID int64, category string, at time.Time) error {
	var column string
	switch category {
	case model.CategoryChoreReminder:
		column = "last_chore_reminder"
	case model.CategoryDailyDigest:
		column = "last_daily_digest"
	default:
		return fmt.Errorf("unknown notification category %q", category)
	}

	_, err := s.db.Exec(
		`UPDATE notification_preferences SET `+column+` = ?, updated_at = datetime('now') WHERE user_id = ? AND family_id = ?`,
		at.UTC(), userID, familyID,
	)
	if err != nil {
		return fmt.Errorf("update last notification: %w", err)
	}
	return nil
}

// CountRemindersEnabled counts users with the reminder category on,
// optionally scoped to a family.
func (s *PreferenceStore) CountRemindersEnabled(familyID *int64) (int, error) {
	return s.countEnabled("reminders_enabled", familyID)
}

// CountDigestEnabled counts users subscribed to the daily digest, optionally
// scoped to a family.
func (s *PreferenceStore) CountDigestEnabled(familyID *int64) (int, error) {
	return s.countEnabled("digest_enabled", familyID)
}

func (s *PreferenceStore) countEnabled(column string, familyID *int64) (int, error) {
	query := `SELECT COUNT(*) FROM notification_preferences WHERE email_enabled = 1 AND ` + column + ` = 1`
	args := []any{}
	if familyID != nil {
		query += ` AND family_id = ?`
		args = append(args, *familyID)
	}

	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count enabled preferences: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hearthhq/hearth/internal/auth"
	"github.com/hearthhq/hearth/internal/store"
)

type PreferenceHandler struct {
	prefs  *store.PreferenceStore
	logger *slog.Logger
}

func NewPreferenceHandler(prefs *store.PreferenceStore, logger *slog.Logger) *PreferenceHandler {
	return &PreferenceHandler{prefs: prefs, logger: logger}
}

// Get returns the caller's notification preferences, creating the default
// row on first access.
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	prefs, err := h.prefs.GetOrCreate(ac.UserID, ac.FamilyID)
	if err != nil {
		h.logger.Error("get preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// Update replaces the caller's notification preferences. Lead times and
// clock fields are validated; last-sent timestamps are not client-writable.
func (h *PreferenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		EmailEnabled       bool    `json:"email_enabled"`
		AssignmentEnabled  bool    `json:"assignment_enabled"`
		RemindersEnabled   bool    `json:"reminders_enabled"`
		DigestEnabled      bool    `json:"digest_enabled"`
		FirstReminderDays  int     `json:"first_reminder_days"`
		SecondReminderDays int     `json:"second_reminder_days"`
		FinalReminderHours int     `json:"final_reminder_hours"`
		QuietHoursStart    string `json:"quiet_hours_start"`
		QuietHoursEnd      string `json:"quiet_hours_end"`
		DailyDigestTime    string `json:"daily_digest_time"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.FirstReminderDays < 0 || req.FirstReminderDays > 14 ||
		req.SecondReminderDays < 0 || req.SecondReminderDays > 14 {
		writeError(w, http.StatusBadRequest, "reminder lead times must be between 0 and 14 days")
		return
	}
	if req.FinalReminderHours < 0 || req.FinalReminderHours > 48 {
		writeError(w, http.StatusBadRequest, "final reminder must be between 0 and 48 hours")
		return
	}
	if !validClockString(req.DailyDigestTime) {
		writeError(w, http.StatusBadRequest, "daily_digest_time must be HH:MM")
		return
	}
	if (req.QuietHoursStart == "") != (req.QuietHoursEnd == "") {
		writeError(w, http.StatusBadRequest, "quiet hours require both start and end")
		return
	}
	if req.QuietHoursStart != "" && (!validClockString(req.QuietHoursStart) || !validClockString(req.QuietHoursEnd)) {
		writeError(w, http.StatusBadRequest, "quiet hours must be HH:MM")
		return
	}

	prefs, err := h.prefs.GetOrCreate(ac.UserID, ac.FamilyID)
	if err != nil {
		h.logger.Error("get preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	prefs.EmailEnabled = req.EmailEnabled
	prefs.AssignmentEnabled = req.AssignmentEnabled
	prefs.RemindersEnabled = req.RemindersEnabled
	prefs.DigestEnabled = req.DigestEnabled
	prefs.FirstReminderDays = req.FirstReminderDays
	prefs.SecondReminderDays = req.SecondReminderDays
	prefs.FinalReminderHours = req.FinalReminderHours
	prefs.QuietHoursStart = req.QuietHoursStart
	prefs.QuietHoursEnd = req.QuietHoursEnd
	prefs.DailyDigestTime = req.DailyDigestTime

	updated, err := h.prefs.Update(prefs)
	if err != nil {
		h.logger.Error("update preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func validClockString(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hearthhq/hearth/internal/notify"
)

// CronHandler exposes the notification passes to external schedulers. The
// routes sit behind a shared-secret check; the built-in scheduler calls the
// engines directly.
type CronHandler struct {
	reminders *notify.ReminderEngine
	digests   *notify.DigestEngine
	logger    *slog.Logger
}

func NewCronHandler(reminders *notify.ReminderEngine, digests *notify.DigestEngine, logger *slog.Logger) *CronHandler {
	return &CronHandler{reminders: reminders, digests: digests, logger: logger}
}

// ProcessReminders runs one reminder pass, optionally scoped by family_id.
func (h *CronHandler) ProcessReminders(w http.ResponseWriter, r *http.Request) {
	familyID, ok := familyScope(w, r)
	if !ok {
		return
	}
	if err := h.reminders.ProcessDueReminders(familyID); err != nil {
		h.logger.Error("reminder pass failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reminder pass failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ProcessDigests runs one digest pass, optionally scoped by family_id.
func (h *CronHandler) ProcessDigests(w http.ResponseWriter, r *http.Request) {
	familyID, ok := familyScope(w, r)
	if !ok {
		return
	}
	if err := h.digests.ProcessDailyDigests(familyID); err != nil {
		h.logger.Error("digest pass failed", "error", err)
		writeError(w, http.StatusInternalServerError, "digest pass failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func familyScope(w http.ResponseWriter, r *http.Request) (*int64, bool) {
	raw := r.URL.Query().Get("family_id")
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid family_id")
		return nil, false
	}
	return &id, true
}

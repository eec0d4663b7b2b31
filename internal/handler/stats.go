package handler

import (
	"log/slog"
	"net/http"

	"github.com/hearthhq/hearth/internal/auth"
	"github.com/hearthhq/hearth/internal/notify"
)

type StatsHandler struct {
	reporter *notify.Reporter
	logger   *slog.Logger
}

func NewStatsHandler(reporter *notify.Reporter, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{reporter: reporter, logger: logger}
}

// Get returns the family's scheduling snapshot.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	stats, err := h.reporter.Report(&familyID)
	if err != nil {
		h.logger.Error("build stats", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

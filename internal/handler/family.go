package handler

import (
	"log/slog"
	"net/http"

	"github.com/hearthhq/hearth/internal/auth"
	"github.com/hearthhq/hearth/internal/model"
	"github.com/hearthhq/hearth/internal/store"
)

type FamilyHandler struct {
	families *store.FamilyStore
	users    *store.UserStore
	logger   *slog.Logger
}

func NewFamilyHandler(families *store.FamilyStore, users *store.UserStore, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{families: families, users: users, logger: logger}
}

type memberView struct {
	model.FamilyMember
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Get returns the family with its member roster.
func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	family, err := h.families.GetByID(familyID)
	if err != nil || family == nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	members, err := h.families.ListMembers(familyID)
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	views := make([]memberView, 0, len(members))
	for _, m := range members {
		view := memberView{FamilyMember: m}
		if user, err := h.users.GetByID(m.UserID); err == nil && user != nil {
			view.Name = user.Name
			view.Email = user.Email
		}
		views = append(views, view)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"family":  family,
		"members": views,
	})
}

// UpdateMemberRole promotes or demotes a member. Parent only. A parent
// cannot demote themselves while they are the last parent.
func (h *FamilyHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	memberUserID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Role != model.RoleParent && req.Role != model.RoleChild {
		writeError(w, http.StatusBadRequest, "role must be parent or child")
		return
	}

	member, err := h.families.GetMember(ac.FamilyID, memberUserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	if req.Role == model.RoleChild && member.Role == model.RoleParent {
		if h.parentCount(ac.FamilyID) <= 1 {
			writeError(w, http.StatusConflict, "family needs at least one parent")
			return
		}
	}

	if err := h.families.UpdateMemberRole(ac.FamilyID, memberUserID, req.Role); err != nil {
		h.logger.Error("update member role", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// RemoveMember removes a member from the family. Parent only.
func (h *FamilyHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	memberUserID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}

	member, err := h.families.GetMember(ac.FamilyID, memberUserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	if member.Role == model.RoleParent && h.parentCount(ac.FamilyID) <= 1 {
		writeError(w, http.StatusConflict, "family needs at least one parent")
		return
	}

	if err := h.families.RemoveMember(ac.FamilyID, memberUserID); err != nil {
		h.logger.Error("remove member", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FamilyHandler) parentCount(familyID int64) int {
	members, err := h.families.ListMembers(familyID)
	if err != nil {
		return 0
	}
	count := 0
	for _, m := range members {
		if m.Role == model.RoleParent {
			count++
		}
	}
	return count
}

package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/hearthhq/hearth/internal/auth"
	"github.com/hearthhq/hearth/internal/store"
)

type PushHandler struct {
	subs           *store.PushStore
	vapidPublicKey string
	logger         *slog.Logger
}

func NewPushHandler(subs *store.PushStore, vapidPublicKey string, logger *slog.Logger) *PushHandler {
	return &PushHandler{subs: subs, vapidPublicKey: vapidPublicKey, logger: logger}
}

// VAPIDKey returns the public key browsers need to subscribe.
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.vapidPublicKey == "" {
		writeError(w, http.StatusServiceUnavailable, "push not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": h.vapidPublicKey})
}

// Subscribe registers a browser push subscription for the caller.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		Endpoint   string `json:"endpoint"`
		P256dh     string `json:"p256dh"`
		Auth       string `json:"auth"`
		DeviceName string `json:"device_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !strings.HasPrefix(req.Endpoint, "https://") || req.P256dh == "" || req.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint, p256dh, and auth required")
		return
	}

	sub, err := h.subs.CreateSubscription(ac.UserID, ac.FamilyID, req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	if err != nil {
		h.logger.Error("create push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// List returns the caller's registered devices.
func (h *PushHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	subs, err := h.subs.ListByUser(ac.UserID, ac.FamilyID)
	if err != nil {
		h.logger.Error("list push subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// Unsubscribe removes one of the caller's subscriptions.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid subscription id")
		return
	}
	if err := h.subs.Delete(id, ac.FamilyID); err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

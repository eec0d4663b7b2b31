package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hearthhq/hearth/internal/auth"
	"github.com/hearthhq/hearth/internal/email"
	"github.com/hearthhq/hearth/internal/model"
	"github.com/hearthhq/hearth/internal/photo"
	"github.com/hearthhq/hearth/internal/realtime"
	"github.com/hearthhq/hearth/internal/store"
)

// maxPhotoBytes caps proof photo uploads at 10 MB.
const maxPhotoBytes = 10 << 20

type TaskHandler struct {
	tasks    *store.TaskStore
	users    *store.UserStore
	families *store.FamilyStore
	prefs    *store.PreferenceStore
	mail     *email.Client
	photos   *photo.Store
	hub      *realtime.Hub
	logger   *slog.Logger
}

func NewTaskHandler(
	tasks *store.TaskStore,
	users *store.UserStore,
	families *store.FamilyStore,
	prefs *store.PreferenceStore,
	mail *email.Client,
	photos *photo.Store,
	hub *realtime.Hub,
	logger *slog.Logger,
) *TaskHandler {
	return &TaskHandler{
		tasks:    tasks,
		users:    users,
		families: families,
		prefs:    prefs,
		mail:     mail,
		photos:   photos,
		hub:      hub,
		logger:   logger,
	}
}

type taskRequest struct {
	Title      string     `json:"title"`
	Notes      string     `json:"notes"`
	AssigneeID *int64     `json:"assignee_id"`
	DueDate    *time.Time `json:"due_date"`
	Priority   int        `json:"priority"`
	Points     int        `json:"points"`
}

func (req *taskRequest) validate() (string, bool) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return "title required", false
	}
	if req.Priority < 0 || req.Priority > 3 {
		return "priority must be between 0 and 3", false
	}
	if req.Points < 0 {
		return "points must not be negative", false
	}
	return "", true
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	tasks, err := h.tasks.ListByFamily(familyID)
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg, ok := req.validate(); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if req.AssigneeID != nil && !h.isMember(ac.FamilyID, *req.AssigneeID) {
		writeError(w, http.StatusBadRequest, "assignee is not a family member")
		return
	}

	task, err := h.tasks.Create(ac.FamilyID, req.Title, req.Notes, req.AssigneeID, req.DueDate, req.Priority, req.Points)
	if err != nil {
		h.logger.Error("create task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.hub.Broadcast(realtime.Event{Kind: realtime.EventTaskCreated, TaskID: task.ID, FamilyID: ac.FamilyID, Actor: ac.UserID})
	h.notifyAssignment(task, nil)
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, ok := h.familyTask(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	task, ok := h.familyTask(w, r)
	if !ok {
		return
	}

	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg, ok := req.validate(); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if req.AssigneeID != nil && !h.isMember(ac.FamilyID, *req.AssigneeID) {
		writeError(w, http.StatusBadRequest, "assignee is not a family member")
		return
	}

	previousAssignee := task.AssigneeID
	updated, err := h.tasks.Update(task.ID, req.Title, req.Notes, req.AssigneeID, req.DueDate, req.Priority, req.Points)
	if err != nil {
		h.logger.Error("update task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.hub.Broadcast(realtime.Event{Kind: realtime.EventTaskUpdated, TaskID: updated.ID, FamilyID: ac.FamilyID, Actor: ac.UserID})
	h.notifyAssignment(updated, previousAssignee)
	writeJSON(w, http.StatusOK, updated)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	task, ok := h.familyTask(w, r)
	if !ok {
		return
	}

	if task.PhotoKey != nil && h.photos.Configured() {
		if err := h.photos.Delete(r.Context(), *task.PhotoKey); err != nil {
			h.logger.Error("delete task photo", "error", err, "key", *task.PhotoKey)
		}
	}
	if err := h.tasks.Delete(task.ID); err != nil {
		h.logger.Error("delete task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.hub.Broadcast(realtime.Event{Kind: realtime.EventTaskDeleted, TaskID: task.ID, FamilyID: ac.FamilyID, Actor: ac.UserID})
	w.WriteHeader(http.StatusNoContent)
}

// Start moves a pending task to in_progress.
func (h *TaskHandler) Start(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	task, ok := h.familyTask(w, r)
	if !ok {
		return
	}
	if task.Status != model.TaskStatusPending {
		writeError(w, http.StatusConflict, "task is not pending")
		return
	}

	updated, err := h.tasks.Start(task.ID)
	if err != nil {
		h.logger.Error("start task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.hub.Broadcast(realtime.Event{Kind: realtime.EventTaskUpdated, TaskID: updated.ID, FamilyID: ac.FamilyID, Actor: ac.UserID})
	writeJSON(w, http.StatusOK, updated)
}

// Complete marks a task done, optionally attaching a proof photo from a
// multipart upload.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	task, ok := h.familyTask(w, r)
	if !ok {
		return
	}
	if !task.Open() {
		writeError(w, http.StatusConflict, "task is not open")
		return
	}

	var photoKey *string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if !h.photos.Configured() {
			writeError(w, http.StatusBadRequest, "photo uploads are not enabled")
			return
		}
		if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid upload")
			return
		}
		file, header, err := r.FormFile("photo")
		if err != nil {
			writeError(w, http.StatusBadRequest, "photo file required")
			return
		}
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			writeError(w, http.StatusBadRequest, "photo must be an image")
			return
		}
		key, err := h.photos.Upload(r.Context(), ac.FamilyID, contentType, file)
		if err != nil {
			h.logger.Error("upload proof photo", "error", err)
			writeError(w, http.StatusInternalServerError, "could not store photo")
			return
		}
		photoKey = &key
	}

	updated, err := h.tasks.Complete(task.ID, photoKey, time.Now().UTC())
	if err != nil {
		h.logger.Error("complete task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.hub.Broadcast(realtime.Event{Kind: realtime.EventTaskCompleted, TaskID: updated.ID, FamilyID: ac.FamilyID, Actor: ac.UserID})
	writeJSON(w, http.StatusOK, updated)
}

// Verify approves a completed task. Parent only.
func (h *TaskHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	task, ok := h.familyTask(w, r)
	if !ok {
		return
	}

	if task.Status != model.TaskStatusCompleted {
		writeError(w, http.StatusConflict, "task is not awaiting verification")
		return
	}

	updated, err := h.tasks.Verify(task.ID, time.Now().UTC())
	if err != nil {
		h.logger.Error("verify task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.hub.Broadcast(realtime.Event{Kind: realtime.EventTaskVerified, TaskID: updated.ID, FamilyID: ac.FamilyID, Actor: ac.UserID})
	writeJSON(w, http.StatusOK, updated)
}

// Reject sends a completed task back to pending. Parent only.
func (h *TaskHandler) Reject(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	task, ok := h.familyTask(w, r)
	if !ok {
		return
	}
	if task.Status != model.TaskStatusCompleted {
		writeError(w, http.StatusConflict, "task is not awaiting verification")
		return
	}

	updated, err := h.tasks.Reject(task.ID)
	if err != nil {
		h.logger.Error("reject task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.hub.Broadcast(realtime.Event{Kind: realtime.EventTaskRejected, TaskID: updated.ID, FamilyID: ac.FamilyID, Actor: ac.UserID})
	writeJSON(w, http.StatusOK, updated)
}

// Photo returns a short-lived review URL for the task's proof photo.
// Parent only.
func (h *TaskHandler) Photo(w http.ResponseWriter, r *http.Request) {
	task, ok := h.familyTask(w, r)
	if !ok {
		return
	}
	if task.PhotoKey == nil {
		writeError(w, http.StatusNotFound, "task has no photo")
		return
	}

	url, err := h.photos.ReviewURL(r.Context(), *task.PhotoKey)
	if err == photo.ErrNotConfigured {
		writeError(w, http.StatusServiceUnavailable, "photo storage not configured")
		return
	}
	if err != nil {
		h.logger.Error("presign photo url", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// familyTask loads the task from the path ID and checks it belongs to the
// caller's family. Writes the error response itself on failure.
func (h *TaskHandler) familyTask(w http.ResponseWriter, r *http.Request) (*model.Task, bool) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return nil, false
	}
	task, err := h.tasks.GetByID(id)
	if err != nil {
		h.logger.Error("get task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if task == nil || task.FamilyID != auth.FamilyID(r.Context()) {
		writeError(w, http.StatusNotFound, "task not found")
		return nil, false
	}
	return task, true
}

func (h *TaskHandler) isMember(familyID, userID int64) bool {
	member, err := h.families.GetMember(familyID, userID)
	if err != nil {
		h.logger.Error("check membership", "error", err)
		return false
	}
	return member != nil
}

// notifyAssignment emails the assignee when a task lands on them, respecting
// their notification preferences. Failures are logged, never surfaced.
func (h *TaskHandler) notifyAssignment(task *model.Task, previousAssignee *int64) {
	if task.AssigneeID == nil {
		return
	}
	if previousAssignee != nil && *previousAssignee == *task.AssigneeID {
		return
	}

	prefs, err := h.prefs.GetOrCreate(*task.AssigneeID, task.FamilyID)
	if err != nil {
		h.logger.Error("load assignee preferences", "error", err)
		return
	}
	if !prefs.EmailEnabled || !prefs.AssignmentEnabled {
		return
	}

	user, err := h.users.GetByID(*task.AssigneeID)
	if err != nil || user == nil {
		h.logger.Error("load assignee", "error", err)
		return
	}
	if err := h.mail.SendTaskAssigned(user.Email, task.Title, task.DueDate); err != nil {
		h.logger.Error("send assignment email", "error", err, "task_id", task.ID)
	}
}

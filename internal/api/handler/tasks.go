package handler

import (
	"log/slog"
	"net/http"

	"github.com/danblackadder/slumberhouse-api/internal/api/middleware"
	"github.com/danblackadder/slumberhouse-api/internal/api/respond"
	"github.com/danblackadder/slumberhouse-api/internal/query"
	"github.com/danblackadder/slumberhouse-api/internal/store"
	"github.com/danblackadder/slumberhouse-api/internal/validation"
)

// TaskHandler handles /api/v1/tasks/{groupId}. Every write refreshes the
// group's live task board.
type TaskHandler struct {
	store *store.Store
	live  Publisher
	log   *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(st *store.Store, live Publisher, log *slog.Logger) *TaskHandler {
	return &TaskHandler{store: st, live: live, log: log}
}

// List handles GET /api/v1/tasks/{groupId}.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := query.LoadTasks(r.Context(), h.store.DB(), r.PathValue("groupId"))
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, tasks)
}

// Tags handles GET /api/v1/tasks/{groupId}/tags.
func (h *TaskHandler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.store.GroupTags(r.Context(), r.PathValue("groupId"))
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, tags)
}

// Users handles GET /api/v1/tasks/{groupId}/users: the members a task can
// be assigned to.
func (h *TaskHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := query.AssignableUsers(r.PathValue("groupId")).Find(r.Context(), h.store.DB(), query.Spec{})
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, users)
}

// Create handles POST /api/v1/tasks/{groupId}.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var form validation.TaskForm
	if err := decode(r, &form); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	groupID := r.PathValue("groupId")
	if _, err := h.store.CreateTask(r.Context(), middleware.CallerFromContext(r.Context()), groupID, &form); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	refresh(r, h.live, h.log, groupID)
	respond.OK(w)
}

// Update handles PUT /api/v1/tasks/{groupId}/{taskId}.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var form validation.TaskForm
	if err := decode(r, &form); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	groupID := r.PathValue("groupId")
	err := h.store.UpdateTask(r.Context(), middleware.CallerFromContext(r.Context()), groupID, r.PathValue("taskId"), &form)
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	refresh(r, h.live, h.log, groupID)
	respond.OK(w)
}

// Delete handles DELETE /api/v1/tasks/{groupId}/{taskId}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupId")
	if err := h.store.DeleteTask(r.Context(), groupID, r.PathValue("taskId")); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	refresh(r, h.live, h.log, groupID)
	respond.OK(w)
}

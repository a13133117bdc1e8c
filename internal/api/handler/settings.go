package handler

import (
	"context"
	"log/slog"
	"net/http"
	"path"

	"github.com/danblackadder/slumberhouse-api/internal/api/middleware"
	"github.com/danblackadder/slumberhouse-api/internal/api/respond"
	"github.com/danblackadder/slumberhouse-api/internal/query"
	"github.com/danblackadder/slumberhouse-api/internal/store"
	"github.com/danblackadder/slumberhouse-api/internal/upload"
	"github.com/danblackadder/slumberhouse-api/internal/validation"
)

// Publisher pushes fresh state to the live subscribers of a group.
type Publisher interface {
	Refresh(ctx context.Context, groupID string) error
	Close(groupID string) int
}

// SettingsHandler handles the organization admin routes under
// /api/v1/settings.
type SettingsHandler struct {
	store    *store.Store
	uploads  *upload.Store
	maxBytes int64
	tasks    Publisher
	messages Publisher
	log      *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(st *store.Store, uploads *upload.Store, maxBytes int64, tasks, messages Publisher, log *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		store:    st,
		uploads:  uploads,
		maxBytes: maxBytes,
		tasks:    tasks,
		messages: messages,
		log:      log,
	}
}

// ListUsers handles GET /api/v1/settings/users.
func (h *SettingsHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	list, err := query.OrganizationMembers(caller.OrganizationID).
		Page(r.Context(), h.store.DB(), query.Parse(r.URL.Query()))
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	respond.List(w, list)
}

// InviteUser handles POST /api/v1/settings/users.
func (h *SettingsHandler) InviteUser(w http.ResponseWriter, r *http.Request) {
	var form validation.Invite
	if err := decode(r, &form); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	caller := middleware.CallerFromContext(r.Context())
	if _, err := h.store.InviteUser(r.Context(), caller.OrganizationID, &form); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	respond.OK(w)
}

// UpdateUserRole handles PUT /api/v1/settings/users/{userId}.
func (h *SettingsHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var form validation.RoleChange
	if err := decode(r, &form); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	caller := middleware.CallerFromContext(r.Context())
	if err := h.store.UpdateOrganizationRole(r.Context(), caller, r.PathValue("userId"), &form); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	respond.OK(w)
}

// RemoveUser handles DELETE /api/v1/settings/users/{userId}. Task boards of
// the groups the user left are refreshed, since their assignees changed.
func (h *SettingsHandler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	groupIDs, err := h.store.RemoveOrganizationUser(r.Context(), caller, r.PathValue("userId"))
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	for _, id := range groupIDs {
		refresh(r, h.tasks, h.log, id)
	}
	respond.OK(w)
}

// ListGroups handles GET /api/v1/settings/groups.
func (h *SettingsHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	list, err := query.OrganizationGroups(caller.OrganizationID).
		Page(r.Context(), h.store.DB(), query.Parse(r.URL.Query()))
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	respond.List(w, list)
}

// CreateGroup handles POST /api/v1/settings/groups.
func (h *SettingsHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())

	var form validation.GroupForm
	image, err := readForm(w, r, h.uploads, h.maxBytes, path.Join(caller.OrganizationID, "groups"), &form)
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	form.Image = image

	group, err := h.store.CreateGroup(r.Context(), caller, &form)
	if err != nil {
		dropImage(r, h.uploads, h.log, image)
		renderErr(w, r, h.log, err)
		return
	}
	h.log.InfoContext(r.Context(), "group created",
		slog.String("group_id", group.ID), slog.String("organization_id", caller.OrganizationID))
	respond.OK(w)
}

// UpdateGroup handles PUT /api/v1/settings/groups/{groupId}.
func (h *SettingsHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())

	var form validation.GroupForm
	image, err := readForm(w, r, h.uploads, h.maxBytes, path.Join(caller.OrganizationID, "groups"), &form)
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	form.Image = image

	prev, err := h.store.UpdateGroup(r.Context(), caller, r.PathValue("groupId"), &form)
	if err != nil {
		dropImage(r, h.uploads, h.log, image)
		renderErr(w, r, h.log, err)
		return
	}
	replaceImage(r, h.uploads, h.log, prev, image)
	respond.OK(w)
}

// DeleteGroup handles DELETE /api/v1/settings/groups/{groupId}. Live
// subscribers of the group are disconnected.
func (h *SettingsHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	groupID := r.PathValue("groupId")
	image, err := h.store.DeleteGroup(r.Context(), caller, groupID)
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	closed := h.tasks.Close(groupID) + h.messages.Close(groupID)
	dropImage(r, h.uploads, h.log, image)
	h.log.InfoContext(r.Context(), "group deleted",
		slog.String("group_id", groupID), slog.Int("subscribers_closed", closed))
	respond.OK(w)
}

// refresh pushes groupID's state to its subscribers. The write that
// triggered it has already committed, so a failure is only logged.
func refresh(r *http.Request, p Publisher, log *slog.Logger, groupID string) {
	if err := p.Refresh(r.Context(), groupID); err != nil {
		log.WarnContext(r.Context(), "live refresh failed",
			slog.String("group_id", groupID), slog.String("error", err.Error()))
	}
}

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

// GroupHandler handles /api/v1/groups and /api/v1/widgets.
type GroupHandler struct {
	store *store.Store
	tasks Publisher
	log   *slog.Logger
}

// NewGroupHandler creates a GroupHandler.
func NewGroupHandler(st *store.Store, tasks Publisher, log *slog.Logger) *GroupHandler {
	return &GroupHandler{store: st, tasks: tasks, log: log}
}

// Mine handles GET /api/v1/groups: every group the caller belongs to in
// their organization, as a bare array.
func (h *GroupHandler) Mine(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	spec := query.Parse(r.URL.Query())
	spec.Page = query.Paging{}
	groups, err := query.UserGroups(caller.UserID, caller.OrganizationID).Find(r.Context(), h.store.DB(), spec)
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, groups)
}

// Members handles GET /api/v1/groups/{groupId}/users.
func (h *GroupHandler) Members(w http.ResponseWriter, r *http.Request) {
	list, err := query.GroupMembers(r.PathValue("groupId")).
		Page(r.Context(), h.store.DB(), query.Parse(r.URL.Query()))
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	respond.List(w, list)
}

// Available handles GET /api/v1/groups/{groupId}/users/available: members
// of the group's organization who are not yet in the group.
func (h *GroupHandler) Available(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupId")
	orgID, ok, err := h.store.GroupOrganization(r.Context(), groupID)
	if err == nil && !ok {
		err = &store.InvalidIDError{Entity: "Group"}
	}
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	list, err := query.AvailableUsers(orgID, groupID).
		Page(r.Context(), h.store.DB(), query.Parse(r.URL.Query()))
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	respond.List(w, list)
}

// AddUser handles POST /api/v1/groups/{groupId}/users.
func (h *GroupHandler) AddUser(w http.ResponseWriter, r *http.Request) {
	var form validation.GroupMember
	if err := decode(r, &form); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	if err := h.store.AddGroupUser(r.Context(), r.PathValue("groupId"), &form); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	respond.OK(w)
}

// UpdateUser handles PUT /api/v1/groups/{groupId}/users/{userId}.
func (h *GroupHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var form validation.GroupRoleChange
	if err := decode(r, &form); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	err := h.store.UpdateGroupRole(r.Context(), r.PathValue("groupId"), r.PathValue("userId"), &form)
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	respond.OK(w)
}

// RemoveUser handles DELETE /api/v1/groups/{groupId}/users/{userId}.
func (h *GroupHandler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupId")
	if err := h.store.RemoveGroupUser(r.Context(), groupID, r.PathValue("userId")); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	refresh(r, h.tasks, h.log, groupID)
	respond.OK(w)
}

// Widgets handles GET /api/v1/groups/{groupId}/widgets.
func (h *GroupHandler) Widgets(w http.ResponseWriter, r *http.Request) {
	widgets, err := h.store.GroupWidgets(r.Context(), r.PathValue("groupId"))
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, widgets)
}

// SetWidgets handles PUT /api/v1/groups/{groupId}/widgets.
func (h *GroupHandler) SetWidgets(w http.ResponseWriter, r *http.Request) {
	var form validation.WidgetsForm
	if err := decode(r, &form); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	if err := h.store.SetGroupWidgets(r.Context(), r.PathValue("groupId"), &form); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	respond.OK(w)
}

// Catalogue handles GET /api/v1/widgets.
func (h *GroupHandler) Catalogue(w http.ResponseWriter, r *http.Request) {
	widgets, err := h.store.Widgets(r.Context())
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, widgets)
}

package handler

import (
	"log/slog"
	"net/http"
	"path"

	"github.com/danblackadder/slumberhouse-api/internal/api/middleware"
	"github.com/danblackadder/slumberhouse-api/internal/api/respond"
	"github.com/danblackadder/slumberhouse-api/internal/store"
	"github.com/danblackadder/slumberhouse-api/internal/upload"
	"github.com/danblackadder/slumberhouse-api/internal/validation"
)

// ProfileHandler handles /api/v1/profile.
type ProfileHandler struct {
	store    *store.Store
	uploads  *upload.Store
	maxBytes int64
	log      *slog.Logger
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(st *store.Store, uploads *upload.Store, maxBytes int64, log *slog.Logger) *ProfileHandler {
	return &ProfileHandler{store: st, uploads: uploads, maxBytes: maxBytes, log: log}
}

// Get handles GET /api/v1/profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.store.Me(r.Context(), middleware.CallerFromContext(r.Context()))
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, profile)
}

// Update handles PUT /api/v1/profile. The body is JSON, or a multipart form
// when a new image is sent.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())

	var form validation.ProfileForm
	image, err := readForm(w, r, h.uploads, h.maxBytes,
		path.Join(caller.OrganizationID, "profile", caller.UserID), &form)
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	form.Image = image

	prev, err := h.store.UpdateProfile(r.Context(), caller.UserID, &form)
	if err != nil {
		dropImage(r, h.uploads, h.log, image)
		renderErr(w, r, h.log, err)
		return
	}
	replaceImage(r, h.uploads, h.log, prev, image)
	respond.OK(w)
}

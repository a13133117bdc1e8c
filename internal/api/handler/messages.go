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

// MessageHandler handles /api/v1/messages/{groupId}.
type MessageHandler struct {
	store *store.Store
	live  Publisher
	log   *slog.Logger
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(st *store.Store, live Publisher, log *slog.Logger) *MessageHandler {
	return &MessageHandler{store: st, live: live, log: log}
}

// History handles GET /api/v1/messages/{groupId}, newest first.
func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	list, err := query.GroupMessages(r.PathValue("groupId")).
		Page(r.Context(), h.store.DB(), query.Parse(r.URL.Query()))
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	respond.List(w, list)
}

// Post handles POST /api/v1/messages/{groupId}.
func (h *MessageHandler) Post(w http.ResponseWriter, r *http.Request) {
	var form validation.MessageForm
	if err := decode(r, &form); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	groupID := r.PathValue("groupId")
	if _, err := h.store.PostMessage(r.Context(), middleware.CallerFromContext(r.Context()), groupID, &form); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	refresh(r, h.live, h.log, groupID)
	respond.OK(w)
}

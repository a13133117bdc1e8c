// Package api wires all API routes onto the provided ServeMux.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danblackadder/slumberhouse-api/internal/api/handler"
	"github.com/danblackadder/slumberhouse-api/internal/api/middleware"
	"github.com/danblackadder/slumberhouse-api/internal/api/respond"
	"github.com/danblackadder/slumberhouse-api/internal/authz"
	"github.com/danblackadder/slumberhouse-api/internal/health"
	"github.com/danblackadder/slumberhouse-api/internal/live"
	"github.com/danblackadder/slumberhouse-api/internal/observability"
	"github.com/danblackadder/slumberhouse-api/internal/upload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes is everything the route table dispatches to.
type Routes struct {
	Health   *health.Handler
	Auth     *handler.AuthHandler
	Profile  *handler.ProfileHandler
	Settings *handler.SettingsHandler
	Groups   *handler.GroupHandler
	Tasks    *handler.TaskHandler
	Messages *handler.MessageHandler
	Streamer *handler.Streamer

	TaskLive    *live.Registry
	MessageLive *live.Registry
	Uploads     *upload.Store

	Gate      *authz.Gate
	Users     middleware.UserChecker
	JWTSecret string
	Log       *slog.Logger
}

type chain []func(http.Handler) http.Handler

func (c chain) then(h http.HandlerFunc) http.Handler {
	var out http.Handler = h
	for i := len(c) - 1; i >= 0; i-- {
		out = c[i](out)
	}
	return out
}

// RegisterRoutes registers all application routes on mux.
func RegisterRoutes(mux *http.ServeMux, rt Routes) {
	// Public health endpoints (no auth required)
	mux.HandleFunc("GET /api/v1/health", rt.Health.ServeHealth)
	mux.HandleFunc("GET /api/v1/ready", rt.Health.ServeReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET "+upload.URLPrefix, rt.Uploads.Handler())

	// Authentication (no auth required)
	mux.HandleFunc("POST /api/v1/authentication/register", rt.Auth.Register)
	mux.HandleFunc("POST /api/v1/authentication/login", rt.Auth.Login)
	mux.HandleFunc("POST /api/v1/authentication/refresh", rt.Auth.Refresh)

	authed := chain{middleware.RequireAuth(rt.JWTSecret, rt.Users, rt.Log)}
	orgAdmin := append(authed[:1:1], middleware.RequireOrganization(rt.Gate.RequireOrganizationAdmin, rt.Log))
	groupAdmin := append(authed[:1:1], middleware.RequireGroup(rt.Gate.RequireGroupAdmin, rt.Log))
	groupMember := append(authed[:1:1], middleware.RequireGroup(rt.Gate.RequireGroupMember, rt.Log))

	mux.Handle("POST /api/v1/authentication/logout", authed.then(rt.Auth.Logout))
	mux.Handle("GET /api/v1/authentication/me", authed.then(rt.Auth.Me))

	mux.Handle("GET /api/v1/profile", authed.then(rt.Profile.Get))
	mux.Handle("PUT /api/v1/profile", authed.then(rt.Profile.Update))

	// Organization settings
	mux.Handle("GET /api/v1/settings/users", orgAdmin.then(rt.Settings.ListUsers))
	mux.Handle("POST /api/v1/settings/users", orgAdmin.then(rt.Settings.InviteUser))
	mux.Handle("PUT /api/v1/settings/users/{userId}", orgAdmin.then(rt.Settings.UpdateUserRole))
	mux.Handle("DELETE /api/v1/settings/users/{userId}", orgAdmin.then(rt.Settings.RemoveUser))
	mux.Handle("GET /api/v1/settings/groups", orgAdmin.then(rt.Settings.ListGroups))
	mux.Handle("POST /api/v1/settings/groups", orgAdmin.then(rt.Settings.CreateGroup))
	mux.Handle("PUT /api/v1/settings/groups/{groupId}", orgAdmin.then(rt.Settings.UpdateGroup))
	mux.Handle("DELETE /api/v1/settings/groups/{groupId}", orgAdmin.then(rt.Settings.DeleteGroup))

	// Groups
	mux.Handle("GET /api/v1/groups", authed.then(rt.Groups.Mine))
	mux.Handle("GET /api/v1/groups/{groupId}/users", groupAdmin.then(rt.Groups.Members))
	mux.Handle("GET /api/v1/groups/{groupId}/users/available", groupAdmin.then(rt.Groups.Available))
	mux.Handle("POST /api/v1/groups/{groupId}/users", groupAdmin.then(rt.Groups.AddUser))
	mux.Handle("PUT /api/v1/groups/{groupId}/users/{userId}", groupAdmin.then(rt.Groups.UpdateUser))
	mux.Handle("DELETE /api/v1/groups/{groupId}/users/{userId}", groupAdmin.then(rt.Groups.RemoveUser))
	mux.Handle("GET /api/v1/groups/{groupId}/widgets", groupMember.then(rt.Groups.Widgets))
	mux.Handle("PUT /api/v1/groups/{groupId}/widgets", groupAdmin.then(rt.Groups.SetWidgets))
	mux.Handle("GET /api/v1/widgets", authed.then(rt.Groups.Catalogue))

	// Tasks
	mux.Handle("GET /api/v1/tasks/{groupId}", groupMember.then(rt.Tasks.List))
	mux.Handle("GET /api/v1/tasks/{groupId}/stream", groupMember.then(rt.Streamer.SSE(rt.TaskLive)))
	mux.Handle("GET /api/v1/tasks/{groupId}/ws", groupMember.then(rt.Streamer.WS(rt.TaskLive)))
	mux.Handle("GET /api/v1/tasks/{groupId}/tags", groupMember.then(rt.Tasks.Tags))
	mux.Handle("GET /api/v1/tasks/{groupId}/users", groupMember.then(rt.Tasks.Users))
	mux.Handle("POST /api/v1/tasks/{groupId}", groupMember.then(rt.Tasks.Create))
	mux.Handle("PUT /api/v1/tasks/{groupId}/{taskId}", groupMember.then(rt.Tasks.Update))
	mux.Handle("DELETE /api/v1/tasks/{groupId}/{taskId}", groupMember.then(rt.Tasks.Delete))

	// Messages
	mux.Handle("GET /api/v1/messages/{groupId}", groupMember.then(rt.Messages.History))
	mux.Handle("GET /api/v1/messages/{groupId}/stream", groupMember.then(rt.Streamer.SSE(rt.MessageLive)))
	mux.Handle("GET /api/v1/messages/{groupId}/ws", groupMember.then(rt.Streamer.WS(rt.MessageLive)))
	mux.Handle("POST /api/v1/messages/{groupId}", groupMember.then(rt.Messages.Post))

	// Catch-all 404
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusNotFound, "Not found")
	})
}

// NewHandler wraps mux with the CORS, tracing and request logging
// middleware every request passes through.
func NewHandler(mux *http.ServeMux, origins []string, log *slog.Logger) http.Handler {
	return middleware.CORS(origins)(observability.Trace(observability.RequestLogger(log)(mux)))
}

// Package middleware provides the HTTP authentication and authorization
// middleware for the API.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danblackadder/slumberhouse-api/internal/api/respond"
	"github.com/danblackadder/slumberhouse-api/internal/auth"
	"github.com/danblackadder/slumberhouse-api/internal/authz"
	"github.com/danblackadder/slumberhouse-api/internal/validation"
)

type contextKey string

const claimsKey contextKey = "auth_claims"

// TokenCookie is the cookie checked when no Authorization header is sent.
// Browsers cannot set headers on EventSource or WebSocket requests.
const TokenCookie = "token"

// UserChecker reports whether a token's user still exists.
type UserChecker interface {
	UserExists(ctx context.Context, id string) (bool, error)
}

// RequireAuth validates the access token and that its user still exists.
// On success it injects *auth.Claims into the request context.
func RequireAuth(secret string, users UserChecker, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := extractToken(r)
			if errors.Is(err, errMalformedAuth) {
				respond.Error(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			if token == "" {
				respond.Error(w, http.StatusUnauthorized, "Unauthorized request")
				return
			}

			claims, err := auth.ParseAccessToken(token, secret)
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			ok, err := users.UserExists(r.Context(), claims.UserID)
			if err != nil {
				log.ErrorContext(r.Context(), "check token user", "error", err)
				respond.Error(w, http.StatusInternalServerError, "an unknown error occurred")
				return
			}
			if !ok {
				respond.Error(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts Claims from the request context.
// Returns nil if not present.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey).(*auth.Claims)
	return c
}

// CallerFromContext returns the authenticated caller. The zero Caller is
// returned when RequireAuth has not run.
func CallerFromContext(ctx context.Context) authz.Caller {
	c := ClaimsFromContext(ctx)
	if c == nil {
		return authz.Caller{}
	}
	return authz.Caller{UserID: c.UserID, OrganizationID: c.OrganizationID}
}

// RequireOrganization runs an organization-level gate decision. Must be
// chained after RequireAuth.
func RequireOrganization(check func(context.Context, authz.Caller) error, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if deny(w, r, check(r.Context(), CallerFromContext(r.Context())), log) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireGroup runs a group-level gate decision against the {groupId} path
// value. Must be chained after RequireAuth.
func RequireGroup(check func(context.Context, authz.Caller, string) error, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			groupID := r.PathValue("groupId")
			if !validation.ValidID(groupID) {
				respond.InvalidID(w, "Group id must be a valid id")
				return
			}
			if deny(w, r, check(r.Context(), CallerFromContext(r.Context()), groupID), log) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, r *http.Request, err error, log *slog.Logger) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, authz.ErrUnauthorized):
		respond.Error(w, http.StatusUnauthorized, "Unauthorized request")
	default:
		log.ErrorContext(r.Context(), "authorization check failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "an unknown error occurred")
	}
	return true
}

// errMalformedAuth marks an Authorization header that is present but does
// not carry a bearer token.
var errMalformedAuth = errors.New("malformed authorization header")

// extractToken returns the bearer token, or the token cookie when no
// Authorization header is sent. An empty token with a nil error means none
// was supplied.
func extractToken(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", errMalformedAuth
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value, nil
	}
	return "", nil
}

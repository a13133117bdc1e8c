package middleware_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danblackadder/slumberhouse-api/internal/api/middleware"
	"github.com/danblackadder/slumberhouse-api/internal/auth"
	"github.com/danblackadder/slumberhouse-api/internal/authz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secret  = "test-secret-at-least-32-bytes!!!"
	userID  = "0b7c2a4e-4a55-4e3b-9d59-0d9c7e5b1a10"
	orgID   = "5f3e8d2c-1b6a-4c7d-8e9f-a0b1c2d3e4f5"
	groupID = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
)

type users map[string]bool

func (u users) UserExists(_ context.Context, id string) (bool, error) { return u[id], nil }

type brokenUsers struct{}

func (brokenUsers) UserExists(context.Context, string) (bool, error) {
	return false, errors.New("db down")
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func issueToken(t *testing.T) string {
	t.Helper()
	tok, err := auth.IssueAccessToken(userID, orgID, secret, 15*time.Minute)
	require.NoError(t, err)
	return tok
}

func ok() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	handler := middleware.RequireAuth(secret, users{userID: true}, discard())(ok())

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized request"}`, w.Body.String())
}

func TestRequireAuth_ValidToken(t *testing.T) {
	handler := middleware.RequireAuth(secret, users{userID: true}, discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := middleware.CallerFromContext(r.Context())
		assert.Equal(t, authz.Caller{UserID: userID, OrganizationID: orgID}, caller)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+issueToken(t))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAuth_CookieFallback(t *testing.T) {
	handler := middleware.RequireAuth(secret, users{userID: true}, discard())(ok())

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.AddCookie(&http.Cookie{Name: middleware.TokenCookie, Value: issueToken(t)})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	handler := middleware.RequireAuth(secret, users{userID: true}, discard())(ok())

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer this.is.garbage")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Invalid token"}`, w.Body.String())
}

func TestRequireAuth_MalformedHeader(t *testing.T) {
	handler := middleware.RequireAuth(secret, users{userID: true}, discard())(ok())

	for _, h := range []string{"Basic dXNlcjpwYXNz", "Bearer", "Bearer   ", issueToken(t)} {
		t.Run(h, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set("Authorization", h)
			// A valid cookie does not rescue a malformed header.
			req.AddCookie(&http.Cookie{Name: middleware.TokenCookie, Value: issueToken(t)})
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"error":"Invalid token"}`, w.Body.String())
		})
	}
}

func TestRequireAuth_DeletedUser(t *testing.T) {
	handler := middleware.RequireAuth(secret, users{}, discard())(ok())

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+issueToken(t))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Invalid token"}`, w.Body.String())
}

func TestRequireAuth_LookupFailure(t *testing.T) {
	handler := middleware.RequireAuth(secret, brokenUsers{}, discard())(ok())

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+issueToken(t))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequireOrganization(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"allowed", nil, http.StatusOK},
		{"denied", authz.ErrUnauthorized, http.StatusUnauthorized},
		{"lookup failure", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got authz.Caller
			check := func(_ context.Context, c authz.Caller) error {
				got = c
				return tt.err
			}
			chain := middleware.RequireAuth(secret, users{userID: true}, discard())(
				middleware.RequireOrganization(check, discard())(ok()))

			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set("Authorization", "Bearer "+issueToken(t))
			w := httptest.NewRecorder()
			chain.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, userID, got.UserID)
		})
	}
}

func TestRequireGroup(t *testing.T) {
	var checked string
	check := func(_ context.Context, _ authz.Caller, id string) error {
		checked = id
		if id != groupID {
			return authz.ErrUnauthorized
		}
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("GET /tasks/{groupId}", middleware.RequireAuth(secret, users{userID: true}, discard())(
		middleware.RequireGroup(check, discard())(ok())))

	do := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		req.Header.Set("Authorization", "Bearer "+issueToken(t))
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w
	}

	w := do("/tasks/" + groupID)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, groupID, checked)

	w = do("/tasks/" + orgID)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	checked = ""
	w = do("/tasks/not-an-id")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"errors":"Group id must be a valid id"}`, w.Body.String())
	assert.Empty(t, checked)
}

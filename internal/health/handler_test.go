package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danblackadder/slumberhouse-api/internal/api/respond"
	"github.com/danblackadder/slumberhouse-api/internal/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPinger is an in-test implementation of health.Pinger.
type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

func TestServeHealth_AlwaysOK(t *testing.T) {
	h := health.New(&mockPinger{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h.ServeHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var st health.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, "ok", st.Status)
}

func TestServeReady_DBHealthy(t *testing.T) {
	h := health.New(&mockPinger{err: nil})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil)
	w := httptest.NewRecorder()
	h.ServeReady(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestServeReady_DBUnhealthy(t *testing.T) {
	h := health.New(&mockPinger{err: errors.New("connection refused")})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil)
	w := httptest.NewRecorder()
	h.ServeReady(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var msg respond.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Contains(t, msg.Error, "connection refused")
}

func TestServeReady_NilDB(t *testing.T) {
	h := health.New(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil)
	w := httptest.NewRecorder()
	h.ServeReady(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

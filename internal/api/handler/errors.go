// Package handler contains HTTP handlers grouped by resource.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danblackadder/slumberhouse-api/internal/api/respond"
	"github.com/danblackadder/slumberhouse-api/internal/auth"
	"github.com/danblackadder/slumberhouse-api/internal/authz"
	"github.com/danblackadder/slumberhouse-api/internal/store"
	"github.com/danblackadder/slumberhouse-api/internal/upload"
	"github.com/danblackadder/slumberhouse-api/internal/validation"
)

// errBadBody marks a request body that could not be decoded.
var errBadBody = errors.New("request body must be valid JSON")

// renderErr writes the response for err. Anything it does not recognise is
// logged and reported as an internal error.
func renderErr(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var (
		verrs    validation.Errors
		invalid  *store.InvalidIDError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verrs):
		respond.Validation(w, verrs)
	case errors.As(err, &invalid):
		respond.InvalidID(w, invalid.Error())
	case errors.Is(err, authz.ErrUnauthorized):
		respond.Error(w, http.StatusUnauthorized, "Unauthorized request")
	case errors.Is(err, store.ErrBadCredentials):
		respond.Error(w, http.StatusBadRequest, "Username or password does not match")
	case errors.Is(err, auth.ErrRefreshTokenInvalid):
		respond.Error(w, http.StatusUnauthorized, "Invalid token")
	case errors.Is(err, upload.ErrNotImage):
		respond.Validation(w, validation.Errors{"image": {"Image must be a png, jpeg, gif or webp file"}})
	case errors.As(err, &tooLarge):
		respond.Error(w, http.StatusRequestEntityTooLarge, "request body is too large")
	case errors.Is(err, errBadBody):
		respond.Error(w, http.StatusBadRequest, errBadBody.Error())
	case errors.Is(err, store.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "Not found")
	default:
		log.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		respond.Error(w, http.StatusInternalServerError, "an unknown error occurred")
	}
}

// decode reads a JSON body into v.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return errBadBody
	}
	return nil
}

// isMultipart reports whether r carries a multipart form.
func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// decodeMultipart fills v from the text fields of a parsed multipart form.
// Field values that hold a JSON array or object are decoded as such, so a
// list can be sent as users=[{"userId":"..."}].
func decodeMultipart(r *http.Request, v any) error {
	fields := map[string]json.RawMessage{}
	for k, vals := range r.MultipartForm.Value {
		if len(vals) == 0 {
			continue
		}
		s := strings.TrimSpace(vals[0])
		if (strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{")) && json.Valid([]byte(s)) {
			fields[k] = json.RawMessage(s)
			continue
		}
		b, err := json.Marshal(vals[0])
		if err != nil {
			return err
		}
		fields[k] = b
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return errBadBody
	}
	return nil
}

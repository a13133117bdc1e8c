// Package respond writes the API's JSON response bodies. Success bodies are
// the payload itself; failures use one of three error shapes:
//
//	{"error":"<message>"}                      authorization and internal errors
//	{"errors":{"<field>":["<message>", ...]}}  validation errors
//	{"errors":"<Entity> id must be a valid id"} malformed or unreachable ids
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/danblackadder/slumberhouse-api/internal/query"
	"github.com/danblackadder/slumberhouse-api/internal/validation"
)

const contentType = "application/json"

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// List writes a paginated list. Nil items are written as [].
func List[T any](w http.ResponseWriter, l query.List[T]) {
	if l.Items == nil {
		l.Items = []T{}
	}
	JSON(w, http.StatusOK, l)
}

// OK writes an empty 200 response.
func OK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
}

// Message is the {"error": ...} body.
type Message struct {
	Error string `json:"error"`
}

// Error writes {"error": msg}.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, Message{Error: msg})
}

// Validation writes every field error with status 400.
func Validation(w http.ResponseWriter, errs validation.Errors) {
	JSON(w, http.StatusBadRequest, map[string]validation.Errors{"errors": errs})
}

// InvalidID writes {"errors": msg} with status 400.
func InvalidID(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, map[string]string{"errors": msg})
}

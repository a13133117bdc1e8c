package respond_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danblackadder/slumberhouse-api/internal/api/respond"
	"github.com/danblackadder/slumberhouse-api/internal/query"
	"github.com/danblackadder/slumberhouse-api/internal/validation"
	"github.com/stretchr/testify/assert"
)

func TestList_EmptyItems(t *testing.T) {
	w := httptest.NewRecorder()
	respond.List(w, query.List[string]{Pagination: query.NewPagination(0, query.Paging{Limit: 10, Page: 1})})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t,
		`{"items":[],"pagination":{"totalDocuments":0,"totalPages":0,"currentPage":1,"limit":10}}`,
		w.Body.String())
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	respond.Error(w, http.StatusUnauthorized, "Unauthorized request")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized request"}`, w.Body.String())
}

func TestValidation(t *testing.T) {
	errs := validation.Errors{}
	errs.Add("title", "Title must be provided")
	errs.Add("status", "Status must be provided")

	w := httptest.NewRecorder()
	respond.Validation(w, errs)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t,
		`{"errors":{"title":["Title must be provided"],"status":["Status must be provided"]}}`,
		w.Body.String())
}

func TestInvalidID(t *testing.T) {
	w := httptest.NewRecorder()
	respond.InvalidID(w, "Group id must be a valid id")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"errors":"Group id must be a valid id"}`, w.Body.String())
}

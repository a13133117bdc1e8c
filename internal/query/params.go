package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Defaults applied when a list request omits paging.
const (
	DefaultLimit = 10
	DefaultPage  = 1
)

// SortBy names the single dimension a list is ordered by.
type SortBy int

const (
	Default SortBy = iota
	ByName
	ByEmail
	ByRole
	ByStatus
	ByUsers
)

// Order is a resolved sort: one dimension and its direction.
type Order struct {
	By   SortBy
	Desc bool
}

// sortFlags is the resolution order; the first non-zero flag wins.
var sortFlags = []struct {
	param string
	by    SortBy
}{
	{"sortName", ByName},
	{"sortEmail", ByEmail},
	{"sortRole", ByRole},
	{"sortStatus", ByStatus},
	{"sortUsers", ByUsers},
}

// ResolveSort picks the sort from query flags. A positive flag sorts
// ascending, a negative one descending; absent or unparsable flags count as
// zero.
func ResolveSort(q url.Values) Order {
	for _, f := range sortFlags {
		n, err := strconv.Atoi(q.Get(f.param))
		if err != nil || n == 0 {
			continue
		}
		return Order{By: f.by, Desc: n < 0}
	}
	return Order{By: Default}
}

// Filters narrows a list. Empty values are ignored.
type Filters struct {
	NameEmail string
	Name      string
	Role      string
	Status    string
}

// Paging selects one page of a list. A zero Limit means unpaged.
type Paging struct {
	Limit int
	Page  int
}

// Skip is the number of rows before the page starts.
func (p Paging) Skip() int {
	if p.Limit <= 0 || p.Page <= 1 {
		return 0
	}
	return p.Limit * (p.Page - 1)
}

// Spec is the resolved request for a list view.
type Spec struct {
	Sort      Order
	Filter    Filters
	Page      Paging
	CountOnly bool
}

// Parse reads sort, filter and paging parameters from a query string. Role
// and status filters match the stored lower-case values.
func Parse(q url.Values) Spec {
	return Spec{
		Sort: ResolveSort(q),
		Filter: Filters{
			NameEmail: q.Get("filterNameEmail"),
			Name:      q.Get("filterName"),
			Role:      strings.ToLower(q.Get("filterRole")),
			Status:    strings.ToLower(q.Get("filterStatus")),
		},
		Page: Paging{
			Limit: positive(q.Get("limit"), DefaultLimit),
			Page:  positive(q.Get("page"), DefaultPage),
		},
	}
}

func positive(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Pagination describes where a page sits in the full result.
type Pagination struct {
	TotalDocuments int64 `json:"totalDocuments"`
	TotalPages     int   `json:"totalPages"`
	CurrentPage    int   `json:"currentPage"`
	Limit          int   `json:"limit"`
}

// NewPagination computes page totals for total rows split by p.
func NewPagination(total int64, p Paging) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return Pagination{
		TotalDocuments: total,
		TotalPages:     pages,
		CurrentPage:    p.Page,
		Limit:          p.Limit,
	}
}

// List is one page of items plus its pagination.
type List[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

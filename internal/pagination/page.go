package pagination

import (
	"context"
	"sort"
	"strconv"
	"strings"
)

// FirstPageCursor is the sentinel cursor requesting the first page under the
// current filters and limit. Cursor tokens are opaque, server-issued strings;
// the empty string is reserved for "no cursor".
const FirstPageCursor = ""

// Page is one bounded batch of records plus the navigation tokens needed to
// move forward or backward from it. Cursors are only meaningful together with
// the filter set and limit that produced them.
type Page[T any] struct {
	Items       []T    `json:"items"`
	NextCursor  string `json:"next_cursor,omitempty"`
	PrevCursor  string `json:"prev_cursor,omitempty"`
	HasMore     bool   `json:"has_more"`
	HasPrevious bool   `json:"has_previous"`

	// TotalEstimate is an approximate count of matching records across all
	// pages. It may be revised between pages and is never exact.
	TotalEstimate int `json:"total_estimate"`
}

// PageRequest identifies a single page fetch. Cursor is FirstPageCursor for
// the first page.
type PageRequest struct {
	Cursor  string
	Limit   int
	Filters Filters
}

// QueryFunc is the query adapter supplied by the caller: a function that
// fetches one page for a cursor/limit/filter combination. It must return a
// *FetchError for transport failures and a *ValidationError for malformed
// filters; the controller surfaces both uniformly and never retries.
type QueryFunc[T any] func(ctx context.Context, req PageRequest) (Page[T], error)

// Filters is the tagged filter set for a list view, one optional field per
// known filter dimension. An empty value means the dimension is not filtered.
type Filters struct {
	SearchTerm string
	Status     string
	Priority   string
	Severity   string
	Tags       []string
}

// Key returns a canonical string form of the filter set, stable across tag
// ordering. It is used for cache-key derivation and equality checks.
func (f Filters) Key() string {
	tags := append([]string(nil), f.Tags...)
	sort.Strings(tags)

	var b strings.Builder
	b.WriteString("q=")
	b.WriteString(f.SearchTerm)
	b.WriteString("&status=")
	b.WriteString(f.Status)
	b.WriteString("&priority=")
	b.WriteString(f.Priority)
	b.WriteString("&severity=")
	b.WriteString(f.Severity)
	b.WriteString("&tags=")
	b.WriteString(strings.Join(tags, ","))
	return b.String()
}

// Equal reports whether two filter sets select the same records.
func (f Filters) Equal(other Filters) bool {
	return f.Key() == other.Key()
}

// IsZero reports whether no filter dimension is set.
func (f Filters) IsZero() bool {
	return f.SearchTerm == "" && f.Status == "" && f.Priority == "" &&
		f.Severity == "" && len(f.Tags) == 0
}

// requestKey derives the cache key for one page fetch. Two requests with the
// same identity, filters, limit and cursor are the same request.
func requestKey(identity string, req PageRequest) string {
	return identity + "|" + req.Filters.Key() + "|limit=" + strconv.Itoa(req.Limit) + "|cursor=" + req.Cursor
}

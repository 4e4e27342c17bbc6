package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPage    = 1
	defaultPerPage = 50
	maxPerPage     = 200
)

// PaginationParams are the parsed page and per_page query parameters for
// the alert and group listing endpoints.
type PaginationParams struct {
	Page    int
	PerPage int
}

// ParsePagination reads page and per_page from the query string. Invalid
// or missing values fall back to page 1 and 50 per page; per_page is
// capped at 200.
func ParsePagination(r *http.Request) PaginationParams {
	return PaginationParams{
		Page:    queryInt(r, "page", defaultPage, 0),
		PerPage: queryInt(r, "per_page", defaultPerPage, maxPerPage),
	}
}

// queryInt parses a positive integer query parameter, applying the
// fallback and an optional upper bound (0 means unbounded).
func queryInt(r *http.Request, key string, fallback, bound int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	if bound > 0 && n > bound {
		return bound
	}
	return n
}

// Offset returns the store offset for the current page
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Meta builds the pagination block for a list response holding total rows
func (p PaginationParams) Meta(total int64) PaginationMeta {
	pages := int(total) / p.PerPage
	if int(total)%p.PerPage > 0 {
		pages++
	}
	return PaginationMeta{
		Page:       p.Page,
		PerPage:    p.PerPage,
		Total:      total,
		TotalPages: pages,
	}
}

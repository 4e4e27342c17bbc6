package api

import (
	"net/http/httptest"
	"testing"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		wantPage    int
		wantPerPage int
	}{
		{"defaults", "", 1, 50},
		{"explicit", "?page=3&per_page=20", 3, 20},
		{"per_page capped", "?per_page=1000", 1, 200},
		{"zero page falls back", "?page=0", 1, 50},
		{"negative falls back", "?page=-2&per_page=-5", 1, 50},
		{"garbage falls back", "?page=abc&per_page=xyz", 1, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/alerts"+tt.query, nil)
			p := ParsePagination(r)
			if p.Page != tt.wantPage || p.PerPage != tt.wantPerPage {
				t.Errorf("ParsePagination = %+v, want page %d per_page %d", p, tt.wantPage, tt.wantPerPage)
			}
		})
	}
}

func TestOffset(t *testing.T) {
	p := PaginationParams{Page: 3, PerPage: 20}
	if got := p.Offset(); got != 40 {
		t.Errorf("Offset = %d, want 40", got)
	}
}

func TestMeta(t *testing.T) {
	tests := []struct {
		name      string
		params    PaginationParams
		total     int64
		wantPages int
	}{
		{"exact fit", PaginationParams{Page: 1, PerPage: 10}, 30, 3},
		{"partial last page", PaginationParams{Page: 2, PerPage: 10}, 31, 4},
		{"empty listing", PaginationParams{Page: 1, PerPage: 50}, 0, 0},
		{"single page", PaginationParams{Page: 1, PerPage: 50}, 7, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := tt.params.Meta(tt.total)
			if meta.TotalPages != tt.wantPages {
				t.Errorf("TotalPages = %d, want %d", meta.TotalPages, tt.wantPages)
			}
			if meta.Total != tt.total {
				t.Errorf("Total = %d, want %d", meta.Total, tt.total)
			}
			if meta.Page != tt.params.Page || meta.PerPage != tt.params.PerPage {
				t.Errorf("meta %+v should echo the params %+v", meta, tt.params)
			}
		})
	}
}

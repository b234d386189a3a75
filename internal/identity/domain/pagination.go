package domain

import "math"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination describes one slice of an ordered listing.
type Pagination struct {
	Page    int  `json:"page"`
	Pages   int  `json:"pages"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// ClampPage normalizes caller supplied paging: page below 1 becomes 1,
// pageSize below 1 becomes DefaultPageSize, and anything above MaxPageSize
// is capped.
func ClampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// Offset is the number of rows before an already clamped page. ok is false
// when the offset does not fit in an int.
func Offset(page, pageSize int) (offset int, ok bool) {
	if page-1 > math.MaxInt/pageSize {
		return 0, false
	}
	return (page - 1) * pageSize, true
}

// NewPagination computes the metadata for an already clamped page.
func NewPagination(page, pageSize, total int) Pagination {
	pages := 0
	if total > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	return Pagination{
		Page:    page,
		Pages:   pages,
		PerPage: pageSize,
		Total:   total,
		HasNext: page < pages,
		HasPrev: page > 1,
	}
}

// Page is a listing result.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

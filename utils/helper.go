package utils

import "strings"

const (
	DefaultPage     = 1
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Pagination holds the normalized paging parameters for list queries.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func NormalizePagination(page, pageSize int) Pagination {
	if page < 1 {
		page = DefaultPage
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func (p Pagination) TotalPages(total int64) int {
	if total == 0 {
		return 0
	}
	pages := int(total) / p.PageSize
	if int(total)%p.PageSize != 0 {
		pages++
	}
	return pages
}

// LikePattern builds a contains-style LIKE argument from user input.
func LikePattern(q string) string {
	return "%" + strings.TrimSpace(q) + "%"
}

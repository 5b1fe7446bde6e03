package store

import "hypolab/internal/domain"

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Paginate slices items for a 1-indexed page. Out of range pages yield an
// empty slice with the pagination totals still filled in. limit is clamped
// to MaxLimit.
func Paginate[T any](items []T, page, limit int) ([]T, domain.Pagination) {
	if page < 1 {
		page = DefaultPage
	}
	switch {
	case limit < 1:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	total := len(items)
	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}
	p := domain.Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
	// compare before multiplying so huge pages cannot overflow
	if page-1 >= totalPages {
		return []T{}, p
	}
	start := (page - 1) * limit
	end := start + limit
	if end > total {
		end = total
	}
	return items[start:end], p
}

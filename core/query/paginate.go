package query

import (
	"fmt"
	"slices"
)

// Paginate slices items into the requested page. The page number is clamped
// into [1, max(totalPages, 1)] first, so an out-of-range request lands on the
// nearest real page instead of an empty one. The returned Items never share
// storage with items.
func Paginate[E any](items []E, pageNumber, pageSize int) (Page[E], error) {
	if pageSize <= 0 {
		return Page[E]{}, fmt.Errorf("%w: %d", ErrInvalidPageSize, pageSize)
	}

	total := len(items)
	totalPages := total / pageSize
	if total%pageSize != 0 {
		totalPages++
	}
	pageNumber = max(1, min(pageNumber, max(totalPages, 1)))

	start := min((pageNumber-1)*pageSize, total)
	end := start + min(pageSize, total-start)

	return Page[E]{
		Items:      slices.Clone(items[start:end]),
		PageNumber: pageNumber,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
	}, nil
}

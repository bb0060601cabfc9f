package cache

import (
	"github.com/damon-houk/exchange-rate-service/internal/domain/entity"
)

// GetAs returns the value under key typed as T. A value of another type counts as a miss.
func GetAs[T any](s Store, key string) (T, bool) {
	var zero T

	raw, ok := s.Get(key)
	if !ok {
		return zero, false
	}

	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// GetPage serves one page of a []T stored under key. It reports false when the list is
// missing, or when Paginate would.
func GetPage[T any](s Store, key string, pageIndex, pageSize int) (*entity.PaginatedResult[T], bool) {
	items, ok := GetAs[[]T](s, key)
	if !ok {
		return nil, false
	}
	return Paginate(items, pageIndex, pageSize)
}

// Paginate copies one page out of items. It reports false when items is empty or pageIndex
// lies beyond the last page. pageIndex below 1 is treated as 1 and pageSize below 1 as
// entity.DefaultPageSize.
func Paginate[T any](items []T, pageIndex, pageSize int) (*entity.PaginatedResult[T], bool) {
	if pageIndex < 1 {
		pageIndex = 1
	}
	if pageSize < 1 {
		pageSize = entity.DefaultPageSize
	}
	if len(items) == 0 {
		return nil, false
	}

	total := len(items)
	totalPages := (total + pageSize - 1) / pageSize
	if pageIndex > totalPages {
		return nil, false
	}

	start := (pageIndex - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}

	page := make([]T, end-start)
	copy(page, items[start:end])

	return entity.NewPaginatedResult(page, total, pageIndex, pageSize), true
}

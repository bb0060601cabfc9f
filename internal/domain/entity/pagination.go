package entity

// PaginatedResult is one page of an ordered result set
type PaginatedResult[T any] struct {
	Items           []T  `json:"items"`
	TotalRecords    int  `json:"total_records"`
	PageNumber      int  `json:"page_number"`
	PageSize        int  `json:"page_size"`
	TotalPages      int  `json:"total_pages"`
	HasNextPage     bool `json:"has_next_page"`
	HasPreviousPage bool `json:"has_previous_page"`
}

// NewPaginatedResult computes the derived page fields
func NewPaginatedResult[T any](items []T, totalRecords, pageNumber, pageSize int) *PaginatedResult[T] {
	if items == nil {
		items = []T{}
	}

	divisor := pageSize
	if divisor < 1 {
		divisor = 1
	}
	totalPages := (totalRecords + divisor - 1) / divisor

	return &PaginatedResult[T]{
		Items:           items,
		TotalRecords:    totalRecords,
		PageNumber:      pageNumber,
		PageSize:        pageSize,
		TotalPages:      totalPages,
		HasNextPage:     pageNumber < totalPages,
		HasPreviousPage: pageNumber > 1,
	}
}

package entity

import (
	"errors"
	"time"
)

const (
	// DefaultPageSize is used when a caller does not ask for a specific page size
	DefaultPageSize = 10
	// MaxPageSize caps search page sizes
	MaxPageSize = 100
)

// SearchCriteria filters the rate history. Nil fields do not filter.
type SearchCriteria struct {
	BaseCurrency *Currency  `json:"base_currency,omitempty"`
	FromDate     *time.Time `json:"from_date,omitempty"`
	ToDate       *time.Time `json:"to_date,omitempty"`
	Search       string     `json:"search,omitempty"`
	PageNumber   int        `json:"page_number"`
	PageSize     int        `json:"page_size"`
}

// Validate checks paging bounds and the date range
func (c *SearchCriteria) Validate() error {
	if c.PageNumber < 1 {
		return errors.New("page number must be at least 1")
	}
	if c.PageSize < 1 || c.PageSize > MaxPageSize {
		return errors.New("page size must be between 1 and 100")
	}
	if c.FromDate != nil && c.ToDate != nil && DateOf(*c.FromDate).After(DateOf(*c.ToDate)) {
		return errors.New("from date must not be after to date")
	}
	return nil
}

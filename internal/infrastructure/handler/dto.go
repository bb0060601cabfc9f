package handler

import (
	"time"

	"github.com/damon-houk/exchange-rate-service/internal/application/service"
	"github.com/damon-houk/exchange-rate-service/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// RateSnapshotResponse represents one rate snapshot
type RateSnapshotResponse struct {
	ID           string                     `json:"id,omitempty"`
	BaseCurrency string                     `json:"base_currency"`
	Date         string                     `json:"date"`
	Amount       decimal.Decimal            `json:"amount"`
	Rates        map[string]decimal.Decimal `json:"rates"`
	Provider     string                     `json:"provider"`
	CreatedAt    *time.Time                 `json:"created_at,omitempty"`
}

// ConversionResponse represents the response for the convert endpoint
type ConversionResponse struct {
	From         string                     `json:"from"`
	Amount       decimal.Decimal            `json:"amount"`
	BaseCurrency string                     `json:"base_currency"`
	RateDate     string                     `json:"rate_date"`
	Converted    map[string]decimal.Decimal `json:"converted"`
}

// SearchRequest represents the request body for the search endpoint.
// Dates use YYYY-MM-DD; omitted paging fields take their defaults.
type SearchRequest struct {
	BaseCurrency string `json:"base_currency,omitempty"`
	FromDate     string `json:"from_date,omitempty"`
	ToDate       string `json:"to_date,omitempty"`
	Search       string `json:"search,omitempty"`
	PageNumber   *int   `json:"page_number,omitempty"`
	PageSize     *int   `json:"page_size,omitempty"`
}

// PageResponse represents a page of rate snapshots
type PageResponse struct {
	Items           []RateSnapshotResponse `json:"items"`
	TotalRecords    int                    `json:"total_records"`
	PageNumber      int                    `json:"page_number"`
	PageSize        int                    `json:"page_size"`
	TotalPages      int                    `json:"total_pages"`
	HasNextPage     bool                   `json:"has_next_page"`
	HasPreviousPage bool                   `json:"has_previous_page"`
}

func toSnapshotResponse(s *entity.RateSnapshot) RateSnapshotResponse {
	rates := make(map[string]decimal.Decimal, len(s.Rates))
	for c, v := range s.Rates {
		rates[c.String()] = v
	}

	resp := RateSnapshotResponse{
		ID:           s.ID,
		BaseCurrency: s.BaseCurrency.String(),
		Date:         s.DateKey(),
		Amount:       s.Amount,
		Rates:        rates,
		Provider:     s.Provider.String(),
	}
	if !s.CreatedAt.IsZero() {
		createdAt := s.CreatedAt
		resp.CreatedAt = &createdAt
	}
	return resp
}

func toConversionResponse(r *service.ConversionResult) ConversionResponse {
	converted := make(map[string]decimal.Decimal, len(r.Converted))
	for c, v := range r.Converted {
		converted[c.String()] = v
	}

	return ConversionResponse{
		From:         r.From.String(),
		Amount:       r.Amount,
		BaseCurrency: r.BaseCurrency.String(),
		RateDate:     r.RateDate.Format(entity.DateLayout),
		Converted:    converted,
	}
}

func toPageResponse(p *entity.PaginatedResult[*entity.RateSnapshot]) PageResponse {
	items := make([]RateSnapshotResponse, 0, len(p.Items))
	for _, s := range p.Items {
		items = append(items, toSnapshotResponse(s))
	}

	return PageResponse{
		Items:           items,
		TotalRecords:    p.TotalRecords,
		PageNumber:      p.PageNumber,
		PageSize:        p.PageSize,
		TotalPages:      p.TotalPages,
		HasNextPage:     p.HasNextPage,
		HasPreviousPage: p.HasPreviousPage,
	}
}

// Package repository internal/domain/repository/rate_repository.go
package repository

import (
	"context"
	"errors"

	"github.com/damon-houk/exchange-rate-service/internal/domain/entity"
)

// ErrRateNotFound is returned when no snapshot has been persisted yet
var ErrRateNotFound = errors.New("exchange rate not found")

// RateRepository is the append-only history of rate snapshots,
// unique per (base currency, calendar date)
type RateRepository interface {
	// GetLatest returns the snapshot with the most recent date, or ErrRateNotFound
	GetLatest(ctx context.Context) (*entity.RateSnapshot, error)

	// AddIfAbsentByDate stores the snapshot unless one already exists for its
	// base currency and date, in which case the existing snapshot is returned
	// unchanged. The boolean reports whether a new record was written.
	AddIfAbsentByDate(ctx context.Context, snapshot *entity.RateSnapshot) (*entity.RateSnapshot, bool, error)

	// QueryAll returns every snapshot ordered by date descending, then base currency
	QueryAll(ctx context.Context) ([]*entity.RateSnapshot, error)

	// Save flushes pending writes to durable storage
	Save(ctx context.Context) error
}

package service

import (
	"context"

	"github.com/damon-houk/exchange-rate-service/internal/domain/entity"
)

// RateProvider fetches the latest rate snapshot from an upstream source
type RateProvider interface {
	// ID is the identifier the provider is registered under
	ID() entity.ProviderID

	// FetchLatest retrieves and normalizes the current upstream snapshot
	FetchLatest(ctx context.Context) (*entity.RateSnapshot, error)
}

// ProviderRegistry resolves a provider by identifier
type ProviderRegistry interface {
	Resolve(id entity.ProviderID) (RateProvider, error)
}

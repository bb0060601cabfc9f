package api

import (
	"fmt"

	"github.com/damon-houk/exchange-rate-service/internal/domain/apperror"
	"github.com/damon-houk/exchange-rate-service/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-service/internal/domain/service"
)

// Registry resolves rate providers by identifier
type Registry struct {
	providers map[entity.ProviderID]service.RateProvider
}

// NewRegistry builds a registry; registering two providers under one id is an error
func NewRegistry(providers ...service.RateProvider) (*Registry, error) {
	r := &Registry{
		providers: make(map[entity.ProviderID]service.RateProvider, len(providers)),
	}
	for _, p := range providers {
		if p == nil {
			return nil, fmt.Errorf("nil rate provider")
		}
		if _, exists := r.providers[p.ID()]; exists {
			return nil, fmt.Errorf("rate provider %q registered twice", p.ID())
		}
		r.providers[p.ID()] = p
	}
	return r, nil
}

// Resolve implements service.ProviderRegistry
func (r *Registry) Resolve(id entity.ProviderID) (service.RateProvider, error) {
	p, ok := r.providers[id]
	if !ok {
		return nil, apperror.ProviderNotRegistered(fmt.Sprintf("no rate provider registered for %q", id))
	}
	return p, nil
}

// Package job holds the scheduled entry points of the service
package job

import (
	"context"

	"github.com/damon-houk/exchange-rate-service/internal/domain/apperror"
	"github.com/damon-houk/exchange-rate-service/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/cache"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/logger"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/middleware"
)

// Importer imports the latest rates of a provider
type Importer interface {
	Import(ctx context.Context, providerID entity.ProviderID) (*entity.RateSnapshot, error)
}

// ImportJob pulls the latest rates from the configured provider
type ImportJob struct {
	importer Importer
	provider entity.ProviderID
	logger   logger.Logger
}

// NewImportJob creates the job importing from provider
func NewImportJob(importer Importer, provider entity.ProviderID, log logger.Logger) *ImportJob {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &ImportJob{importer: importer, provider: provider, logger: log}
}

// Name is the job key used by the scheduler
func (j *ImportJob) Name() string {
	return cache.JobImportLatest
}

// Run imports once. Failures are logged here and returned for the scheduler's accounting;
// the next tick simply tries again.
func (j *ImportJob) Run(ctx context.Context) error {
	snapshot, err := j.importer.Import(ctx, j.provider)
	if err != nil {
		j.logger.Error("Scheduled rate import failed", map[string]interface{}{
			"request_id": middleware.GetRequestID(ctx),
			"provider":   string(j.provider),
			"kind":       string(apperror.KindOf(err)),
			"error":      err.Error(),
		})
		return err
	}

	j.logger.Info("Scheduled rate import completed", map[string]interface{}{
		"request_id": middleware.GetRequestID(ctx),
		"provider":   string(j.provider),
		"base":       snapshot.BaseCurrency.String(),
		"date":       snapshot.DateKey(),
	})
	return nil
}

// ExpiringCache drops its expired entries on demand
type ExpiringCache interface {
	CleanExpired() int
}

// CacheJanitorJob evicts expired cache entries
type CacheJanitorJob struct {
	cache  ExpiringCache
	logger logger.Logger
}

// NewCacheJanitorJob creates the job evicting expired entries from c
func NewCacheJanitorJob(c ExpiringCache, log logger.Logger) *CacheJanitorJob {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &CacheJanitorJob{cache: c, logger: log}
}

// Name is the job key used by the scheduler
func (j *CacheJanitorJob) Name() string {
	return cache.JobCacheJanitor
}

// Run evicts expired entries; it never fails
func (j *CacheJanitorJob) Run(ctx context.Context) error {
	if removed := j.cache.CleanExpired(); removed > 0 {
		j.logger.Debug("Expired cache entries removed", map[string]interface{}{
			"removed": removed,
		})
	}
	return nil
}

// Package service internal/application/service/exchange_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/damon-houk/exchange-rate-service/internal/domain/apperror"
	"github.com/damon-houk/exchange-rate-service/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-service/internal/domain/repository"
	domainservice "github.com/damon-houk/exchange-rate-service/internal/domain/service"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/cache"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/logger"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/metrics"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/middleware"
	"github.com/shopspring/decimal"
)

// conversionPlaces is the number of decimal places conversion results are rounded to
const conversionPlaces = 4

// Options holds the cache lifetimes used by the service
type Options struct {
	CurrentRateTTL time.Duration
	HistoryTTL     time.Duration
}

// ConversionResult is an amount expressed in every currency of the current snapshot
type ConversionResult struct {
	From         entity.Currency                     `json:"from"`
	Amount       decimal.Decimal                     `json:"amount"`
	BaseCurrency entity.Currency                     `json:"base_currency"`
	RateDate     time.Time                           `json:"rate_date"`
	Converted    map[entity.Currency]decimal.Decimal `json:"converted"`
}

// ExchangeService orchestrates rate imports, the current-rate cache, conversion and search
type ExchangeService struct {
	providers domainservice.ProviderRegistry
	cache     cache.Store
	repo      repository.RateRepository
	opts      Options
	logger    logger.Logger
	metrics   *metrics.Metrics
}

// NewExchangeService creates a new exchange service
func NewExchangeService(
	providers domainservice.ProviderRegistry,
	store cache.Store,
	repo repository.RateRepository,
	opts Options,
	log logger.Logger,
	m *metrics.Metrics,
) *ExchangeService {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	if opts.CurrentRateTTL <= 0 {
		opts.CurrentRateTTL = time.Hour
	}
	if opts.HistoryTTL <= 0 {
		opts.HistoryTTL = 30 * time.Minute
	}

	return &ExchangeService{
		providers: providers,
		cache:     store,
		repo:      repo,
		opts:      opts,
		logger:    log,
		metrics:   m,
	}
}

// GetServiceRate returns the provider's live snapshot without persisting or caching it
func (s *ExchangeService) GetServiceRate(ctx context.Context, providerID entity.ProviderID) (*entity.RateSnapshot, error) {
	provider, err := s.providers.Resolve(providerID)
	if err != nil {
		return nil, err
	}

	return provider.FetchLatest(ctx)
}

// GetCurrent returns the current snapshot from cache, falling back to the latest persisted one
func (s *ExchangeService) GetCurrent(ctx context.Context) (*entity.RateSnapshot, error) {
	if snapshot, ok := cache.GetAs[*entity.RateSnapshot](s.cache, cache.KeyCurrentRate); ok {
		s.metrics.CacheHit(cache.KeyCurrentRate)
		return snapshot, nil
	}
	s.metrics.CacheMiss(cache.KeyCurrentRate)

	requestID := middleware.GetRequestID(ctx)
	s.logger.Debug("Current rate not cached, loading from store", map[string]interface{}{
		"request_id": requestID,
	})

	latest, err := s.repo.GetLatest(ctx)
	if errors.Is(err, repository.ErrRateNotFound) {
		return nil, apperror.NotFound("no exchange rates have been imported yet")
	}
	if err != nil {
		s.logger.Error("Failed to load latest rate", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		return nil, apperror.Internal(err, "failed to load the latest exchange rate")
	}

	s.cache.Put(cache.KeyCurrentRate, latest, s.opts.CurrentRateTTL)
	return latest, nil
}

// Import fetches the provider's latest snapshot, stores it unless that date already exists,
// and refreshes the current-rate cache with the stored record
func (s *ExchangeService) Import(ctx context.Context, providerID entity.ProviderID) (*entity.RateSnapshot, error) {
	requestID := middleware.GetRequestID(ctx)
	fields := map[string]interface{}{
		"request_id": requestID,
		"provider":   string(providerID),
	}

	provider, err := s.providers.Resolve(providerID)
	if err != nil {
		s.metrics.Import(string(providerID), metrics.ImportFailed)
		return nil, err
	}

	s.logger.Info("Importing latest rates", fields)

	snapshot, err := provider.FetchLatest(ctx)
	if err != nil {
		s.metrics.Import(string(providerID), metrics.ImportFailed)
		s.logger.Error("Rate import failed", mergeFields(fields, map[string]interface{}{
			"kind":  string(apperror.KindOf(err)),
			"error": err.Error(),
		}))
		return nil, err
	}

	stored, created, err := s.repo.AddIfAbsentByDate(ctx, snapshot)
	if err != nil {
		s.metrics.Import(string(providerID), metrics.ImportFailed)
		s.logger.Error("Failed to store imported rates", mergeFields(fields, map[string]interface{}{
			"date":  snapshot.DateKey(),
			"error": err.Error(),
		}))
		return nil, apperror.Internal(err, "failed to store imported rates")
	}

	if err := s.repo.Save(ctx); err != nil {
		s.metrics.Import(string(providerID), metrics.ImportFailed)
		s.logger.Error("Failed to persist imported rates", mergeFields(fields, map[string]interface{}{
			"error": err.Error(),
		}))
		return nil, apperror.Internal(err, "failed to persist imported rates")
	}

	// Readers may briefly miss the cache between these calls and fall through to the store
	s.cache.Remove(cache.KeyCurrentRate)
	s.cache.Put(cache.KeyCurrentRate, stored, s.opts.CurrentRateTTL)
	s.invalidateHistory(requestID)

	outcome := metrics.ImportExisting
	if created {
		outcome = metrics.ImportCreated
	}
	s.metrics.Import(string(providerID), outcome)

	s.logger.Info("Rates imported", mergeFields(fields, map[string]interface{}{
		"base":    stored.BaseCurrency.String(),
		"date":    stored.DateKey(),
		"created": created,
	}))

	return stored, nil
}

// RefreshCacheFromStore rebuilds the current-rate cache from the latest persisted snapshot
func (s *ExchangeService) RefreshCacheFromStore(ctx context.Context) (*entity.RateSnapshot, error) {
	requestID := middleware.GetRequestID(ctx)

	latest, err := s.repo.GetLatest(ctx)
	if errors.Is(err, repository.ErrRateNotFound) {
		return nil, apperror.NotFound("no exchange rates have been imported yet")
	}
	if err != nil {
		s.logger.Error("Failed to load latest rate for cache refresh", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		return nil, apperror.Internal(err, "failed to load the latest exchange rate")
	}

	s.cache.Remove(cache.KeyCurrentRate)
	s.cache.Put(cache.KeyCurrentRate, latest, s.opts.CurrentRateTTL)
	s.invalidateHistory(requestID)

	s.logger.Info("Rate cache refreshed from store", map[string]interface{}{
		"request_id": requestID,
		"base":       latest.BaseCurrency.String(),
		"date":       latest.DateKey(),
	})

	return latest, nil
}

// ConvertToAll converts amount of from into every currency of the current snapshot.
// Results are rounded to 4 decimal places, half away from zero.
func (s *ExchangeService) ConvertToAll(ctx context.Context, from entity.Currency, amount decimal.Decimal) (*ConversionResult, error) {
	if amount.IsNegative() {
		return nil, apperror.BadRequest("amount must not be negative")
	}
	if !from.IsValid() {
		return nil, apperror.InvalidCurrency(fmt.Sprintf("unsupported currency %q", from))
	}

	snapshot, err := s.GetCurrent(ctx)
	if err != nil {
		return nil, err
	}

	fromRate := decimal.NewFromInt(1)
	if from != snapshot.BaseCurrency {
		rate, ok := snapshot.Rate(from)
		if !ok {
			return nil, apperror.InvalidCurrency(fmt.Sprintf("currency %s is not quoted in the current rates", from))
		}
		fromRate = rate
	}

	amountInBase := amount.Div(fromRate)

	converted := make(map[entity.Currency]decimal.Decimal, len(snapshot.Rates)+1)
	for currency, rate := range snapshot.Rates {
		if currency == from {
			continue
		}
		converted[currency] = round(amountInBase.Mul(rate))
	}
	converted[snapshot.BaseCurrency] = round(amountInBase)

	s.metrics.Conversion()

	return &ConversionResult{
		From:         from,
		Amount:       amount,
		BaseCurrency: snapshot.BaseCurrency,
		RateDate:     snapshot.Date,
		Converted:    converted,
	}, nil
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(conversionPlaces)
}

// Search filters the persisted history and returns one page of it, newest first
func (s *ExchangeService) Search(ctx context.Context, criteria entity.SearchCriteria) (*entity.PaginatedResult[*entity.RateSnapshot], error) {
	if err := criteria.Validate(); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	all, err := s.repo.QueryAll(ctx)
	if err != nil {
		s.logger.Error("Failed to query rate history", map[string]interface{}{
			"request_id": middleware.GetRequestID(ctx),
			"error":      err.Error(),
		})
		return nil, apperror.Internal(err, "failed to query rate history")
	}

	match := newMatcher(criteria)
	filtered := make([]*entity.RateSnapshot, 0, len(all))
	for _, snapshot := range all {
		if match(snapshot) {
			filtered = append(filtered, snapshot)
		}
	}

	start := (criteria.PageNumber - 1) * criteria.PageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + criteria.PageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	return entity.NewPaginatedResult(filtered[start:end], len(filtered), criteria.PageNumber, criteria.PageSize), nil
}

// newMatcher builds the search predicate. Free text is tried as a currency code, then as a
// rate value; text that is neither adds no filter.
func newMatcher(criteria entity.SearchCriteria) func(*entity.RateSnapshot) bool {
	var textCurrency *entity.Currency
	var textValue *decimal.Decimal

	if text := strings.TrimSpace(criteria.Search); text != "" {
		if c, err := entity.ParseCurrency(text); err == nil {
			textCurrency = &c
		} else if v, err := decimal.NewFromString(text); err == nil {
			textValue = &v
		}
	}

	var from, to time.Time
	if criteria.FromDate != nil {
		from = entity.DateOf(*criteria.FromDate)
	}
	if criteria.ToDate != nil {
		to = entity.DateOf(*criteria.ToDate)
	}

	return func(snapshot *entity.RateSnapshot) bool {
		if criteria.BaseCurrency != nil && snapshot.BaseCurrency != *criteria.BaseCurrency {
			return false
		}

		date := entity.DateOf(snapshot.Date)
		if criteria.FromDate != nil && date.Before(from) {
			return false
		}
		if criteria.ToDate != nil && date.After(to) {
			return false
		}

		if textCurrency != nil && !snapshot.HasCurrency(*textCurrency) {
			return false
		}
		if textValue != nil && !snapshot.HasRateValue(*textValue) {
			return false
		}
		return true
	}
}

// History returns one page of the full rate history, served from a cached list.
// A page past the end yields an empty page rather than an error.
func (s *ExchangeService) History(ctx context.Context, pageIndex, pageSize int) (*entity.PaginatedResult[*entity.RateSnapshot], error) {
	list, ok := cache.GetAs[[]*entity.RateSnapshot](s.cache, cache.KeyRateHistory)
	if ok {
		s.metrics.CacheHit(cache.KeyRateHistory)
	} else {
		s.metrics.CacheMiss(cache.KeyRateHistory)

		all, err := s.repo.QueryAll(ctx)
		if err != nil {
			s.logger.Error("Failed to load rate history", map[string]interface{}{
				"request_id": middleware.GetRequestID(ctx),
				"error":      err.Error(),
			})
			return nil, apperror.Internal(err, "failed to load rate history")
		}
		list = all
		s.cache.Put(cache.KeyRateHistory, list, s.opts.HistoryTTL)
	}

	// Page the list already in hand; an import may invalidate the cached copy meanwhile
	if page, ok := cache.Paginate(list, pageIndex, pageSize); ok {
		return page, nil
	}

	if pageIndex < 1 {
		pageIndex = 1
	}
	if pageSize < 1 {
		pageSize = entity.DefaultPageSize
	}
	return entity.NewPaginatedResult[*entity.RateSnapshot](nil, len(list), pageIndex, pageSize), nil
}

func (s *ExchangeService) invalidateHistory(requestID string) {
	if _, err := s.cache.RemoveMatching(cache.PrefixPattern(cache.KeyRateHistory)); err != nil {
		s.logger.Warn("Failed to invalidate cached history", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
	}
}

func mergeFields(base, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

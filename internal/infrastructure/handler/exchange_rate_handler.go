package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/damon-houk/exchange-rate-service/internal/application/service"
	"github.com/damon-houk/exchange-rate-service/internal/domain/apperror"
	"github.com/damon-houk/exchange-rate-service/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/logger"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// maxSearchBody bounds the size of a search request body
const maxSearchBody = 1 << 16

// ExchangeRateHandler handles HTTP requests for exchange rates
type ExchangeRateHandler struct {
	service         *service.ExchangeService
	defaultProvider entity.ProviderID
	logger          logger.Logger
}

// NewExchangeRateHandler creates a new exchange rate handler
func NewExchangeRateHandler(service *service.ExchangeService, defaultProvider entity.ProviderID, log logger.Logger) *ExchangeRateHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &ExchangeRateHandler{
		service:         service,
		defaultProvider: defaultProvider,
		logger:          log,
	}
}

// GetCurrent returns the current rate snapshot
func (h *ExchangeRateHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	snapshot, err := h.service.GetCurrent(r.Context())
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, toSnapshotResponse(snapshot), requestID)
}

// Convert converts an amount into every currency of the current snapshot
func (h *ExchangeRateHandler) Convert(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()

	from := query.Get("from")
	if from == "" {
		sendErrorResponse(w, h.logger, "Missing from parameter",
			"The 'from' query parameter is required", http.StatusBadRequest, requestID)
		return
	}

	currency, err := entity.ParseCurrency(from)
	if err != nil {
		sendServiceError(w, h.logger, unsupportedCurrency("currency code", from), requestID)
		return
	}

	rawAmount := query.Get("amount")
	if rawAmount == "" {
		sendErrorResponse(w, h.logger, "Missing amount parameter",
			"The 'amount' query parameter is required", http.StatusBadRequest, requestID)
		return
	}

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		sendErrorResponse(w, h.logger, "Invalid amount",
			"Amount must be a decimal number", http.StatusBadRequest, requestID)
		return
	}

	h.logger.Debug("Converting amount", map[string]interface{}{
		"request_id": requestID,
		"from":       currency.String(),
		"amount":     amount.String(),
	})

	result, err := h.service.ConvertToAll(r.Context(), currency, amount)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, toConversionResponse(result), requestID)
}

// Search returns a filtered page of the rate history
func (h *ExchangeRateHandler) Search(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req SearchRequest
	if r.ContentLength != 0 {
		decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSearchBody))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			h.logger.Warn("Invalid search request body", map[string]interface{}{
				"request_id": requestID,
				"error":      err.Error(),
			})
			sendErrorResponse(w, h.logger, "Invalid request body",
				"The request body could not be parsed as valid JSON", http.StatusBadRequest, requestID)
			return
		}
	}

	criteria, err := req.toCriteria()
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	page, err := h.service.Search(r.Context(), criteria)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, toPageResponse(page), requestID)
}

func (req SearchRequest) toCriteria() (entity.SearchCriteria, error) {
	criteria := entity.SearchCriteria{
		Search:     req.Search,
		PageNumber: 1,
		PageSize:   entity.DefaultPageSize,
	}
	if req.PageNumber != nil {
		criteria.PageNumber = *req.PageNumber
	}
	if req.PageSize != nil {
		criteria.PageSize = *req.PageSize
	}

	if req.BaseCurrency != "" {
		base, err := entity.ParseCurrency(req.BaseCurrency)
		if err != nil {
			return criteria, unsupportedCurrency("base currency", req.BaseCurrency)
		}
		criteria.BaseCurrency = &base
	}

	var err error
	if criteria.FromDate, err = parseOptionalDate(req.FromDate, "from_date"); err != nil {
		return criteria, err
	}
	if criteria.ToDate, err = parseOptionalDate(req.ToDate, "to_date"); err != nil {
		return criteria, err
	}

	return criteria, nil
}

// unsupportedCurrency names the accepted codes so the caller can correct the request
func unsupportedCurrency(what, code string) error {
	supported := entity.SupportedCurrencies()
	codes := make([]string, len(supported))
	for i, c := range supported {
		codes[i] = c.String()
	}
	return apperror.InvalidCurrency(fmt.Sprintf("unsupported %s %q, expected one of %s", what, code, strings.Join(codes, ", ")))
}

func parseOptionalDate(value, field string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(entity.DateLayout, value)
	if err != nil {
		return nil, apperror.BadRequest(field + " must be a date in YYYY-MM-DD format")
	}
	return &t, nil
}

// History returns a page of the cached rate history
func (h *ExchangeRateHandler) History(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	page, err := queryInt(r, "page", 1)
	if err != nil {
		sendErrorResponse(w, h.logger, "Invalid page parameter",
			"The 'page' query parameter must be an integer", http.StatusBadRequest, requestID)
		return
	}
	size, err := queryInt(r, "size", entity.DefaultPageSize)
	if err != nil {
		sendErrorResponse(w, h.logger, "Invalid size parameter",
			"The 'size' query parameter must be an integer", http.StatusBadRequest, requestID)
		return
	}
	if size > entity.MaxPageSize {
		size = entity.MaxPageSize
	}

	result, err := h.service.History(r.Context(), page, size)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, toPageResponse(result), requestID)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// RefreshCache rebuilds the current-rate cache from storage
func (h *ExchangeRateHandler) RefreshCache(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	if _, err := h.service.RefreshCacheFromStore(r.Context()); err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Import pulls the latest rates from a provider and stores them
func (h *ExchangeRateHandler) Import(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	providerID, err := h.providerParam(r)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	h.logger.Info("Handling import request", map[string]interface{}{
		"request_id": requestID,
		"provider":   providerID.String(),
	})

	snapshot, err := h.service.Import(r.Context(), providerID)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, toSnapshotResponse(snapshot), requestID)
}

// GetProviderRate returns a provider's live rates without storing them
func (h *ExchangeRateHandler) GetProviderRate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	providerID, err := h.providerParam(r)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	snapshot, err := h.service.GetServiceRate(r.Context(), providerID)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, toSnapshotResponse(snapshot), requestID)
}

func (h *ExchangeRateHandler) providerParam(r *http.Request) (entity.ProviderID, error) {
	raw := r.URL.Query().Get("provider")
	if raw == "" {
		return h.defaultProvider, nil
	}
	id, err := entity.ParseProviderID(raw)
	if err != nil {
		return "", apperror.ProviderNotRegistered("no rate provider registered for " + strconv.Quote(raw))
	}
	return id, nil
}

// Health reports liveness
func (h *ExchangeRateHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"}, middleware.GetRequestID(r.Context()))
}

// RegisterRoutes registers the exchange rate handler routes
func (h *ExchangeRateHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1/exchange-rates").Subrouter()
	api.HandleFunc("/current", h.GetCurrent).Methods(http.MethodGet)
	api.HandleFunc("/convert", h.Convert).Methods(http.MethodGet)
	api.HandleFunc("/search", h.Search).Methods(http.MethodPost)
	api.HandleFunc("/history", h.History).Methods(http.MethodGet)
	api.HandleFunc("/cache/refresh", h.RefreshCache).Methods(http.MethodPost)
	api.HandleFunc("/import", h.Import).Methods(http.MethodPost)
	api.HandleFunc("/provider", h.GetProviderRate).Methods(http.MethodGet)

	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	h.logger.Info("Exchange rate routes registered", map[string]interface{}{
		"routes": []string{
			"GET /api/v1/exchange-rates/current",
			"GET /api/v1/exchange-rates/convert",
			"POST /api/v1/exchange-rates/search",
			"GET /api/v1/exchange-rates/history",
			"POST /api/v1/exchange-rates/cache/refresh",
			"POST /api/v1/exchange-rates/import",
			"GET /api/v1/exchange-rates/provider",
			"GET /health",
		},
	})
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/damon-houk/exchange-rate-service/internal/domain/apperror"
	"github.com/damon-houk/exchange-rate-service/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/logger"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/resilience"
	"github.com/shopspring/decimal"
)

const (
	// FrankfurterLatestURL is the public endpoint for the latest ECB reference rates
	FrankfurterLatestURL = "https://api.frankfurter.app/latest"

	defaultUserAgent = "exchange-rate-service/1.0"
	maxPayloadSize   = 1 << 20
)

// Upstream failure classifications used in logs
const (
	classUnavailable = "upstream_unavailable"
	classBadStatus   = "upstream_bad_status"
	classBadPayload  = "upstream_bad_payload"
)

// FrankfurterOptions configures a FrankfurterClient
type FrankfurterOptions struct {
	LatestURL string
	UserAgent string
}

// FrankfurterClient fetches the latest rates from the Frankfurter API through a resilience policy
type FrankfurterClient struct {
	latestURL  string
	userAgent  string
	httpClient *http.Client
	policy     *resilience.Policy
	logger     logger.Logger
}

// NewFrankfurterClient creates a new Frankfurter client. The policy is shared process-wide
// and must be supplied by the caller.
func NewFrankfurterClient(httpClient *http.Client, policy *resilience.Policy, opts FrankfurterOptions, log logger.Logger) *FrankfurterClient {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 10 * time.Second,
		}
	}
	if opts.LatestURL == "" {
		opts.LatestURL = FrankfurterLatestURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &FrankfurterClient{
		latestURL:  opts.LatestURL,
		userAgent:  opts.UserAgent,
		httpClient: httpClient,
		policy:     policy,
		logger:     log.WithField("provider", string(entity.ProviderFrankfurter)),
	}
}

// frankfurterResponse is the payload of GET /latest
type frankfurterResponse struct {
	Amount *decimal.Decimal           `json:"amount"`
	Base   string                     `json:"base"`
	Date   string                     `json:"date"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

// ID implements service.RateProvider
func (c *FrankfurterClient) ID() entity.ProviderID {
	return entity.ProviderFrankfurter
}

// FetchLatest implements service.RateProvider
func (c *FrankfurterClient) FetchLatest(ctx context.Context) (*entity.RateSnapshot, error) {
	resp, err := c.policy.Execute(ctx, c.request)
	if err != nil {
		fields := map[string]interface{}{
			"classification": classUnavailable,
			"error":          err.Error(),
			"url":            c.latestURL,
		}
		var statusErr *resilience.StatusError
		if errors.As(err, &statusErr) {
			fields["status_code"] = statusErr.StatusCode
			fields["body"] = statusErr.Body
		}
		c.logger.Error("Frankfurter request failed", fields)

		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, apperror.UpstreamUnavailable(err, "rate provider is temporarily unavailable")
		}
		return nil, apperror.UpstreamUnavailable(err, "failed to reach rate provider")
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Error closing response body", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		c.logger.Error("Failed to read Frankfurter response body", map[string]interface{}{
			"classification": classUnavailable,
			"error":          err.Error(),
		})
		return nil, apperror.UpstreamUnavailable(err, "failed to read rate provider response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("Frankfurter returned an error status", map[string]interface{}{
			"classification": classBadStatus,
			"status_code":    resp.StatusCode,
			"body":           string(body),
		})
		return nil, apperror.UpstreamBadResponse(
			fmt.Errorf("status %d: %s", resp.StatusCode, body),
			fmt.Sprintf("rate provider returned status %d", resp.StatusCode))
	}

	snapshot, err := c.parse(body)
	if err != nil {
		c.logger.Error("Failed to parse Frankfurter response", map[string]interface{}{
			"classification": classBadPayload,
			"status_code":    resp.StatusCode,
			"error":          err.Error(),
		})
		return nil, apperror.UpstreamBadResponse(err, "rate provider returned an unreadable payload")
	}

	c.logger.Info("Retrieved latest rates", map[string]interface{}{
		"base":  snapshot.BaseCurrency.String(),
		"date":  snapshot.DateKey(),
		"rates": len(snapshot.Rates),
	})

	return snapshot, nil
}

func (c *FrankfurterClient) request(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.latestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	return c.httpClient.Do(req)
}

// parse normalizes a raw payload into a snapshot
func (c *FrankfurterClient) parse(body []byte) (*entity.RateSnapshot, error) {
	var payload frankfurterResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if payload.Base == "" {
		return nil, errors.New("missing base currency")
	}
	base, err := entity.ParseCurrency(payload.Base)
	if err != nil {
		return nil, fmt.Errorf("base currency: %w", err)
	}

	if payload.Date == "" {
		return nil, errors.New("missing date")
	}
	date, err := time.Parse(entity.DateLayout, payload.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to parse date '%s': %w", payload.Date, err)
	}

	if len(payload.Rates) == 0 {
		return nil, errors.New("missing rates")
	}

	rates := make(map[entity.Currency]decimal.Decimal, len(payload.Rates))
	for code, value := range payload.Rates {
		currency, err := entity.ParseCurrency(code)
		if err != nil {
			return nil, fmt.Errorf("rate currency: %w", err)
		}
		if !value.IsPositive() {
			return nil, fmt.Errorf("invalid exchange rate value for %s: %s", currency, value)
		}
		rates[currency] = value
	}

	amount := decimal.NewFromInt(1)
	if payload.Amount != nil {
		amount = *payload.Amount
	}

	return entity.NewRateSnapshot(base, date, amount, rates, c.ID()), nil
}

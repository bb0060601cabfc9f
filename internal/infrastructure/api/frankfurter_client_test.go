// internal/infrastructure/api/frankfurter_client_test.go
package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damon-houk/exchange-rate-service/internal/domain/apperror"
	"github.com/damon-houk/exchange-rate-service/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/logger"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/resilience"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const latestPayload = `{
	"amount": 1.0,
	"base": "EUR",
	"date": "2024-03-15",
	"rates": {
		"USD": 1.0892,
		"GBP": 0.85553,
		"JPY": 161.86
	}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, settings resilience.Settings) *FrankfurterClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	log := logger.NewJSONLogger(io.Discard, logger.DebugLevel)
	policy := resilience.NewPolicy(settings, log)

	return NewFrankfurterClient(server.Client(), policy, FrankfurterOptions{LatestURL: server.URL + "/latest"}, log)
}

func fastSettings() resilience.Settings {
	return resilience.Settings{
		MaxAttempts:                3,
		BaseDelay:                  time.Millisecond,
		AllowedFailuresBeforeBreak: 10,
		BreakDuration:              time.Second,
	}
}

func TestFetchLatest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(latestPayload))
	}, fastSettings())

	snapshot, err := client.FetchLatest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, entity.EUR, snapshot.BaseCurrency)
	assert.Equal(t, "2024-03-15", snapshot.DateKey())
	assert.Equal(t, entity.ProviderFrankfurter, snapshot.Provider)
	assert.True(t, snapshot.Amount.Equal(decimal.NewFromInt(1)))
	assert.Len(t, snapshot.Rates, 3)

	usd, ok := snapshot.Rate(entity.USD)
	require.True(t, ok)
	assert.Equal(t, "1.0892", usd.String())

	gbp, _ := snapshot.Rate(entity.GBP)
	assert.Equal(t, "0.85553", gbp.String())
}

func TestFetchLatestRetriesTransientFailures(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(latestPayload))
	}, fastSettings())

	snapshot, err := client.FetchLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entity.EUR, snapshot.BaseCurrency)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchLatestFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind apperror.Kind
	}{
		{"Transient status exhausted", http.StatusServiceUnavailable, "down", apperror.KindUpstreamUnavailable},
		{"Non-success status", http.StatusNotFound, "not here", apperror.KindUpstreamBadResponse},
		{"Malformed JSON", http.StatusOK, "{not json", apperror.KindUpstreamBadResponse},
		{"Missing base", http.StatusOK, `{"date":"2024-03-15","rates":{"USD":1.1}}`, apperror.KindUpstreamBadResponse},
		{"Missing date", http.StatusOK, `{"base":"EUR","rates":{"USD":1.1}}`, apperror.KindUpstreamBadResponse},
		{"Invalid date", http.StatusOK, `{"base":"EUR","date":"15/03/2024","rates":{"USD":1.1}}`, apperror.KindUpstreamBadResponse},
		{"Missing rates", http.StatusOK, `{"base":"EUR","date":"2024-03-15"}`, apperror.KindUpstreamBadResponse},
		{"Unknown base", http.StatusOK, `{"base":"XXX","date":"2024-03-15","rates":{"USD":1.1}}`, apperror.KindUpstreamBadResponse},
		{"Unknown rate currency", http.StatusOK, `{"base":"EUR","date":"2024-03-15","rates":{"ABC":1.1}}`, apperror.KindUpstreamBadResponse},
		{"Zero rate", http.StatusOK, `{"base":"EUR","date":"2024-03-15","rates":{"USD":0}}`, apperror.KindUpstreamBadResponse},
		{"Negative rate", http.StatusOK, `{"base":"EUR","date":"2024-03-15","rates":{"USD":-1.2}}`, apperror.KindUpstreamBadResponse},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}, fastSettings())

			snapshot, err := client.FetchLatest(context.Background())
			assert.Nil(t, snapshot)
			require.Error(t, err)
			assert.Equal(t, tc.wantKind, apperror.KindOf(err))
		})
	}
}

func TestFetchLatestNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	log := logger.NewJSONLogger(io.Discard, logger.DebugLevel)
	client := NewFrankfurterClient(nil, resilience.NewPolicy(fastSettings(), log), FrankfurterOptions{LatestURL: url}, log)

	_, err := client.FetchLatest(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperror.KindUpstreamUnavailable, apperror.KindOf(err))
}

func TestFetchLatestCircuitOpen(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, resilience.Settings{
		MaxAttempts:                1,
		BaseDelay:                  time.Millisecond,
		AllowedFailuresBeforeBreak: 2,
		BreakDuration:              time.Minute,
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := client.FetchLatest(ctx)
		assert.Equal(t, apperror.KindUpstreamUnavailable, apperror.KindOf(err))
	}

	_, err := client.FetchLatest(ctx)
	assert.Equal(t, apperror.KindUpstreamUnavailable, apperror.KindOf(err))
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchLatestDefaultsAmount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"base":"usd","date":"2024-03-15","rates":{"EUR":0.92,"USD":1}}`))
	}, fastSettings())

	snapshot, err := client.FetchLatest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, entity.USD, snapshot.BaseCurrency)
	assert.True(t, snapshot.Amount.Equal(decimal.NewFromInt(1)))
	// The base currency is never quoted against itself
	assert.False(t, snapshot.HasRateValue(decimal.NewFromInt(1)))
	assert.Len(t, snapshot.Rates, 1)
}

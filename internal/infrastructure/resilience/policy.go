// Package resilience wraps outbound HTTP calls with bounded exponential-backoff
// retries and a process-wide circuit breaker
package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/logger"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned without attempting a call while the breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// maxErrorBody bounds how much of a failed response body is kept for diagnostics
const maxErrorBody = 4 << 10

// Settings configures a Policy
type Settings struct {
	Name                       string
	MaxAttempts                int
	BaseDelay                  time.Duration
	AllowedFailuresBeforeBreak int
	BreakDuration              time.Duration
}

// Operation performs exactly one outbound call
type Operation func(ctx context.Context) (*http.Response, error)

// NetworkError is a transport-level failure (connection refused, reset, client timeout)
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusError is a transient HTTP status (5xx or 408) returned by the upstream
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transient upstream status %d: %s", e.StatusCode, e.Body)
}

// IsTransient reports whether err is worth retrying
func IsTransient(err error) bool {
	var netErr *NetworkError
	var statusErr *StatusError
	return errors.As(err, &netErr) || errors.As(err, &statusErr)
}

// IsTransientStatus reports whether an HTTP status code is classified as transient
func IsTransientStatus(code int) bool {
	return code >= http.StatusInternalServerError || code == http.StatusRequestTimeout
}

// Policy composes retry around a shared circuit breaker. Every attempt passes
// through the same breaker, so its state spans attempts and logical calls.
type Policy struct {
	settings Settings
	breaker  *gobreaker.CircuitBreaker
	logger   logger.Logger
	handlers []EventHandler
}

// NewPolicy creates a policy. It is meant to be built once per process and injected.
func NewPolicy(settings Settings, log logger.Logger, handlers ...EventHandler) *Policy {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	if settings.MaxAttempts < 1 {
		settings.MaxAttempts = 1
	}
	if settings.AllowedFailuresBeforeBreak < 1 {
		settings.AllowedFailuresBeforeBreak = 1
	}
	if settings.Name == "" {
		settings.Name = "upstream"
	}

	p := &Policy{
		settings: settings,
		logger:   log.WithField("policy", settings.Name),
		handlers: handlers,
	}

	threshold := uint32(settings.AllowedFailuresBeforeBreak)
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Timeout:     settings.BreakDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: p.onStateChange,
	})

	return p
}

// State returns the current breaker state: "closed", "open" or "half-open"
func (p *Policy) State() string {
	return p.breaker.State().String()
}

// Execute runs op with retries. A successful or non-transient response is returned
// to the caller; transient statuses are converted to *StatusError and their bodies closed.
func (p *Policy) Execute(ctx context.Context, op Operation) (*http.Response, error) {
	attempt := 0

	retryable := func() (*http.Response, error) {
		attempt++

		result, err := p.breaker.Execute(func() (interface{}, error) {
			return p.call(ctx, op)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				p.logger.Warn("Call rejected by open circuit", map[string]interface{}{
					"attempt": attempt,
				})
				return nil, backoff.Permanent(ErrCircuitOpen)
			}
			if !IsTransient(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		return result.(*http.Response), nil
	}

	resp, err := backoff.Retry(ctx, retryable,
		backoff.WithBackOff(p.newBackOff()),
		backoff.WithMaxTries(uint(p.settings.MaxAttempts)),
		backoff.WithNotify(func(err error, delay time.Duration) {
			p.emit(Event{
				Type:    EventRetry,
				Attempt: attempt,
				Delay:   delay,
				Err:     err,
			})
		}),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		return nil, err
	}
	return resp, nil
}

// call performs a single attempt and classifies its outcome
func (p *Policy) call(ctx context.Context, op Operation) (*http.Response, error) {
	resp, err := op(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Err: err}
	}

	if IsTransientStatus(resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return resp, nil
}

// newBackOff yields base, 2*base, 4*base, ... without jitter
func (p *Policy) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.settings.BaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = p.settings.BaseDelay << uint(p.settings.MaxAttempts)
	return b
}

func (p *Policy) onStateChange(_ string, from, to gobreaker.State) {
	var eventType EventType
	switch to {
	case gobreaker.StateOpen:
		eventType = EventCircuitOpened
	case gobreaker.StateHalfOpen:
		eventType = EventCircuitHalfOpen
	case gobreaker.StateClosed:
		eventType = EventCircuitClosed
	default:
		return
	}

	p.emit(Event{
		Type:      eventType,
		FromState: from.String(),
		ToState:   to.String(),
		Delay:     p.breakDelay(eventType),
	})
}

func (p *Policy) breakDelay(t EventType) time.Duration {
	if t == EventCircuitOpened {
		return p.settings.BreakDuration
	}
	return 0
}

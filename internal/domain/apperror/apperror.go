// Package apperror defines the typed errors surfaced by the exchange rate core
package apperror

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable error category
type Kind string

const (
	KindNotFound              Kind = "not_found"
	KindBadRequest            Kind = "bad_request"
	KindInvalidCurrency       Kind = "invalid_currency"
	KindProviderNotRegistered Kind = "provider_not_registered"
	KindUpstreamUnavailable   Kind = "upstream_unavailable"
	KindUpstreamBadResponse   Kind = "upstream_bad_response"
	// KindConflict is reserved; imports are idempotent and never conflict
	KindConflict Kind = "conflict"
	KindInternal Kind = "internal"
)

// Error carries a Kind, a human-readable message and an optional cause
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error formats the kind, message and cause
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind with a cause
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NotFound reports that the requested data does not exist
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// BadRequest reports malformed caller input
func BadRequest(message string) *Error {
	return New(KindBadRequest, message)
}

// InvalidCurrency reports an unsupported or unquoted currency
func InvalidCurrency(message string) *Error {
	return New(KindInvalidCurrency, message)
}

// ProviderNotRegistered reports an unknown provider id
func ProviderNotRegistered(message string) *Error {
	return New(KindProviderNotRegistered, message)
}

// UpstreamUnavailable reports exhausted retries or an open circuit
func UpstreamUnavailable(err error, message string) *Error {
	return Wrap(KindUpstreamUnavailable, err, message)
}

// UpstreamBadResponse reports an unexpected status or an unreadable payload
func UpstreamBadResponse(err error, message string) *Error {
	return Wrap(KindUpstreamBadResponse, err, message)
}

// Internal wraps a failure the caller cannot act on
func Internal(err error, message string) *Error {
	return Wrap(KindInternal, err, message)
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the message of the first *Error in err's chain
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "an unexpected error occurred"
}

// IsKind reports whether err is an *Error of the given kind.
// InvalidCurrency also counts as BadRequest.
func IsKind(err error, kind Kind) bool {
	k := KindOf(err)
	if k == kind {
		return true
	}
	return kind == KindBadRequest && k == KindInvalidCurrency
}

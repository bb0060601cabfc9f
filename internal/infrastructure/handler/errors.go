package handler

import (
	"encoding/json"
	"net/http"

	"github.com/damon-houk/exchange-rate-service/internal/domain/apperror"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/logger"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error       string `json:"error"`
	Kind        string `json:"kind,omitempty"`
	Status      int    `json:"status"`
	Description string `json:"description,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

// StatusForKind maps an error kind to its HTTP status
func StatusForKind(kind apperror.Kind) int {
	switch kind {
	case apperror.KindNotFound, apperror.KindProviderNotRegistered:
		return http.StatusNotFound
	case apperror.KindBadRequest, apperror.KindInvalidCurrency:
		return http.StatusBadRequest
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindUpstreamBadResponse:
		return http.StatusBadGateway
	case apperror.KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var errorTitles = map[apperror.Kind]string{
	apperror.KindNotFound:              "Not found",
	apperror.KindBadRequest:            "Bad request",
	apperror.KindInvalidCurrency:       "Invalid currency",
	apperror.KindProviderNotRegistered: "Provider not registered",
	apperror.KindConflict:              "Conflict",
	apperror.KindUpstreamBadResponse:   "Bad response from rate provider",
	apperror.KindUpstreamUnavailable:   "Rate provider unavailable",
	apperror.KindInternal:              "Internal server error",
}

// sendServiceError translates a service error into an error response.
// Unrecognized errors never leak their text to the client.
func sendServiceError(w http.ResponseWriter, log logger.Logger, err error, requestID string) {
	kind := apperror.KindOf(err)
	status := StatusForKind(kind)

	fields := map[string]interface{}{
		"request_id": requestID,
		"kind":       string(kind),
		"error":      err.Error(),
	}
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", fields)
	} else {
		log.Warn("Request rejected", fields)
	}

	writeError(w, log, ErrorResponse{
		Error:       errorTitles[kind],
		Kind:        string(kind),
		Status:      status,
		Description: apperror.MessageOf(err),
		RequestID:   requestID,
	})
}

func sendErrorResponse(w http.ResponseWriter, log logger.Logger, message, description string, statusCode int, requestID string) {
	writeError(w, log, ErrorResponse{
		Error:       message,
		Status:      statusCode,
		Description: description,
		RequestID:   requestID,
	})
}

func writeError(w http.ResponseWriter, log logger.Logger, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)

	log.Debug("Sending error response", map[string]interface{}{
		"request_id":  resp.RequestID,
		"status_code": resp.Status,
		"message":     resp.Error,
	})

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("Failed to encode error response", map[string]interface{}{
			"request_id": resp.RequestID,
			"error":      err.Error(),
		})
	}
}

func writeJSON(w http.ResponseWriter, log logger.Logger, status int, body interface{}, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("Failed to encode response", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
	}
}

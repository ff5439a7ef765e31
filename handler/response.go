package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Error codes of the uniform error envelope.
const (
	CodeInvalidQuery       = "INVALID_QUERY"
	CodeInvalidDateRange   = "INVALID_DATE_RANGE"
	CodeInvalidGranularity = "INVALID_GRANULARITY"
	CodeInvalidIP          = "INVALID_IP"
	CodeNotFound           = "NOT_FOUND"
	CodeDatabaseError      = "DATABASE_ERROR"
	CodeCacheError         = "CACHE_ERROR"
	CodeNotImplemented     = "NOT_IMPLEMENTED"
)

// ErrorBody carries the machine-readable error description.
type ErrorBody struct {
	Code    string `json:"code" example:"INVALID_QUERY"`
	Message string `json:"message" example:"limit must be between 1 and 100"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse is the envelope of every non-2xx response.
type ErrorResponse struct {
	Error     ErrorBody `json:"error"`
	Timestamp string    `json:"timestamp"`
}

// apiError is the internal representation validation helpers return.
type apiError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func nowTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// SendJSON writes a success payload.
func SendJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// SendError writes the uniform error envelope.
func SendError(w http.ResponseWriter, statusCode int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := ErrorResponse{
		Error:     ErrorBody{Code: code, Message: message, Details: details},
		Timestamp: nowTimestamp(),
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}

func sendAPIError(w http.ResponseWriter, e *apiError) {
	SendError(w, e.Status, e.Code, e.Message, e.Details)
}

// sendDatabaseError hides query internals behind a generic message; the
// original error text goes to details only.
func sendDatabaseError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("Database query failed")
	SendError(w, http.StatusInternalServerError, CodeDatabaseError, "Database query failed", err.Error())
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bullionwatch/bullion-snapshot-service/internal/domain"
)

// Response helpers for consistent JSON responses

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// respondJSON sends a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondErrorWithCode sends an error response with an error code
func respondErrorWithCode(w http.ResponseWriter, status int, message, code string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// handleDomainError maps domain errors to HTTP responses
func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		respondErrorWithCode(w, http.StatusNotFound, "item not found", "ITEM_NOT_FOUND")

	case errors.Is(err, domain.ErrNoObservations):
		respondErrorWithCode(w, http.StatusNotFound, "no observations recorded", "NO_OBSERVATIONS")

	case errors.Is(err, domain.ErrInvalidTarget):
		respondErrorWithCode(w, http.StatusBadRequest, "invalid target", "INVALID_TARGET")

	case errors.Is(err, domain.ErrDatabaseConnection):
		respondErrorWithCode(w, http.StatusServiceUnavailable, "database connection error", "DATABASE_ERROR")

	case errors.Is(err, domain.ErrDatabaseQuery):
		respondErrorWithCode(w, http.StatusServiceUnavailable, "database query error", "DATABASE_ERROR")

	default:
		respondErrorWithCode(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

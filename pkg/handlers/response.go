package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/asklantern/lantern-engine/pkg/apperrors"
	"github.com/asklantern/lantern-engine/pkg/sqlguard"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// serviceError maps service layer errors onto HTTP status and error codes.
func serviceError(w http.ResponseWriter, err error) error {
	var cfgErr *apperrors.ConfigError
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return ErrorResponse(w, http.StatusNotFound, "not_found", "Resource not found")
	case errors.Is(err, apperrors.ErrConflict):
		return ErrorResponse(w, http.StatusConflict, "conflict", "Resource already exists or was modified concurrently")
	case errors.As(err, &cfgErr):
		return ErrorResponse(w, http.StatusBadRequest, "invalid_config", cfgErr.Error())
	case apperrors.IsConnectivityError(err):
		return ErrorResponse(w, http.StatusBadGateway, "source_unreachable", "Data source is unreachable")
	case errors.Is(err, sqlguard.ErrNotReadOnly) || errors.Is(err, sqlguard.ErrMultipleStatements) ||
		errors.Is(err, sqlguard.ErrEmptyStatement):
		return ErrorResponse(w, http.StatusUnprocessableEntity, "rejected_sql", err.Error())
	default:
		return ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

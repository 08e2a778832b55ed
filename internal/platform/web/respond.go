// Package web holds the HTTP plumbing shared by the handlers: middleware and JSON responses.
package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ValidationErrorResponse names the rule each invalid field broke.
type ValidationErrorResponse struct {
	ValidationErrors map[string]string `json:"validation_errors"`
}

// RespondJSON writes payload as JSON with the given status. A nil payload writes the status only.
// Titles and authors are written as stored, so HTML characters are not escaped.
func RespondJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		logger.Error("Error encoding response to JSON", "error", err, "status", status)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = body.WriteTo(w)
}

// RespondError writes an ErrorResponse.
func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	RespondJSON(w, logger, status, ErrorResponse{Error: message})
}

// RespondValidationError writes a 400 with the failed rule of each field, or a generic
// message when err is not a validator error.
func RespondValidationError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		RespondError(w, logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	resp := ValidationErrorResponse{ValidationErrors: make(map[string]string, len(fieldErrs))}
	for _, fieldErr := range fieldErrs {
		resp.ValidationErrors[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
	}
	logger.Warn("Validation errors occurred", "errors", resp.ValidationErrors)
	RespondJSON(w, logger, http.StatusBadRequest, resp)
}

package handler

// Every error leaves the API through writeError, which is the only place a
// domain error becomes an HTTP status:
//
//	ErrValidation, ErrUnsupportedFormat, ErrTooLarge → 400 {"error","message"[,"field"]}
//	ErrUnauthenticated                               → 401
//	ErrNotFound                                      → 404, empty body
//	ErrConflict                                      → 409
//	anything else                                    → 500, details only logged

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/task-manager/internal/apperror"
)

// maxJSONBody caps every JSON request body.
const maxJSONBody = 1 << 20

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// MessageResponse is the body of endpoints that only confirm an action.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all that is left is to log it.
			logger.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	message := ""
	field := ""
	if errors.As(err, &appErr) {
		message = appErr.Message
		field = appErr.Field
	}

	switch {
	case errors.Is(err, apperror.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, apperror.ErrValidation):
		writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: message, Field: field})
	case errors.Is(err, apperror.ErrUnsupportedFormat):
		writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: "unsupported_format", Message: message})
	case errors.Is(err, apperror.ErrTooLarge):
		writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: "too_large", Message: message})
	case errors.Is(err, apperror.ErrUnauthenticated):
		writeJSON(w, logger, http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated", Message: message})
	case errors.Is(err, apperror.ErrConflict):
		writeJSON(w, logger, http.StatusConflict, ErrorResponse{Error: "conflict", Message: message})
	default:
		logger.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, logger, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}

// decodeJSON reads a single JSON value from the request body into dst.
// Malformed JSON, a wrong field type and an oversized body are all
// validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &maxErr):
			return apperror.TooLarge(maxErr.Limit)
		case errors.As(err, &typeErr):
			return apperror.ValidationFailed(typeErr.Field, "Invalid value for "+typeErr.Field)
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("", "Request body is empty")
		default:
			return apperror.ValidationFailed("", "Request body is not valid JSON")
		}
	}
	return nil
}

package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/entity"
)

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		// Headers are already sent, nothing else can be reported.
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error logs err and writes an ErrorResponse with the given status.
func Error(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	if status >= http.StatusInternalServerError {
		ctxzap.Error(ctx, message, zap.Error(err))
	} else {
		ctxzap.Warn(ctx, message, zap.Error(err))
	}
	JSON(w, status, entity.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

// Details writes an error response carrying a structured payload.
func Details(w http.ResponseWriter, status int, message string, details any) {
	JSON(w, status, entity.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Details: details,
	})
}

// FromUsecase maps domain errors to HTTP statuses.
func FromUsecase(ctx context.Context, w http.ResponseWriter, err error) {
	var dup *entity.DuplicateManualError
	var saveErr *entity.SaveError

	switch {
	case errors.As(err, &dup):
		ctxzap.Warn(ctx, "duplicate manual", zap.String("filename", dup.Existing.Filename))
		Details(w, http.StatusConflict, err.Error(), dup.Existing)
	case errors.Is(err, entity.ErrManualNotFound), errors.Is(err, entity.ErrSessionNotFound):
		Error(ctx, w, http.StatusNotFound, "resource not found", err)
	case errors.Is(err, entity.ErrInvalidParameter), errors.Is(err, entity.ErrMissingField),
		errors.Is(err, entity.ErrInvalidFormat), errors.Is(err, entity.ErrUnsupportedFormat):
		Error(ctx, w, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, entity.ErrFileTooLarge):
		Error(ctx, w, http.StatusRequestEntityTooLarge, err.Error(), err)
	case errors.Is(err, entity.ErrInvalidFile), errors.Is(err, entity.ErrInvalidExtension),
		errors.Is(err, entity.ErrEmptyDocument):
		Error(ctx, w, http.StatusBadRequest, err.Error(), err)
	case errors.As(err, &saveErr):
		Error(ctx, w, http.StatusInternalServerError, "knowledge base could not be persisted", err)
	case errors.Is(err, entity.ErrIndexUnavailable):
		Error(ctx, w, http.StatusServiceUnavailable, "vector index unavailable", err)
	default:
		Error(ctx, w, http.StatusInternalServerError, "internal server error", err)
	}
}

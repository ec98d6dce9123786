package errorhandler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/taskhub/taskhub-api/internal/pkg/apperror"
	"github.com/taskhub/taskhub-api/internal/pkg/logger"
	"github.com/taskhub/taskhub-api/internal/pkg/response"
)

// Handle writes err as an error envelope. Tagged errors keep their code and
// message; anything else is logged and reported as INTERNAL_ERROR.
func Handle(ctx context.Context, w http.ResponseWriter, err error) {
	appErr := apperror.From(err)
	status := apperror.Status(appErr.Kind)

	event := logger.FromContext(ctx).Warn()
	if status >= http.StatusInternalServerError {
		event = logger.FromContext(ctx).Error()
	}
	logRequestError(event, appErr, status)

	if status >= http.StatusInternalServerError {
		// downstream messages are not exposed to callers
		response.InternalError(w)
		return
	}
	response.Error(w, status, appErr.Code, appErr.Message)
}

// HandleWithDetails writes a validation envelope with field details.
func HandleWithDetails(ctx context.Context, w http.ResponseWriter, status int, code, message string, details map[string]string) {
	logger.FromContext(ctx).Warn().
		Str("error_code", code).
		Str("error_message", message).
		Int("status_code", status).
		Interface("error_details", details).
		Msg("Request error with details")

	response.ErrorWithDetails(w, status, code, message, details)
}

// LogDatabaseError logs database errors with context
func LogDatabaseError(ctx context.Context, operation string, err error) {
	logger.FromContext(ctx).Error().
		Str("operation", operation).
		Err(err).
		Msg("Database error")
}

func logRequestError(event *zerolog.Event, appErr *apperror.Error, status int) {
	event = event.
		Str("error_kind", appErr.Kind.String()).
		Str("error_code", appErr.Code).
		Str("error_message", appErr.Message).
		Int("status_code", status)
	if appErr.Err != nil {
		event = event.Err(appErr.Err)
	}
	event.Msg("Request error")
}

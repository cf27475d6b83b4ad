package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/helpdesk-orchestrator/services"
	"github.com/upb/helpdesk-orchestrator/utils"
)

// StatusClientClosedRequest is recorded when the caller went away before the
// answer was ready. Nothing useful can be written back.
const StatusClientClosedRequest = 499

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	switch {
	case services.IsValidationError(err):
		if err := utils.WriteBadRequest(w, err.Error(), details); err != nil {
			logger.Error("failed to write bad request response", zap.Error(err))
		}

	case services.IsNotFoundError(err):
		if err := utils.WriteNotFound(w, err.Error()); err != nil {
			logger.Error("failed to write not found response", zap.Error(err))
		}

	case services.IsNoAnswerError(err):
		if err := utils.WriteServiceUnavailable(w, string(services.ErrorTypeNoAnswer),
			"No answer is available right now", details); err != nil {
			logger.Error("failed to write no answer response", zap.Error(err))
		}

	case services.IsCanceledError(err):
		logger.Info("client canceled request", zap.Error(err))
		w.WriteHeader(StatusClientClosedRequest)

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		if err := utils.WriteInternalServerError(w, "An internal error occurred"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		if err := utils.WriteInternalServerError(w, "An unexpected error occurred"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		if err := utils.WriteBadRequest(w, "Validation failed", utils.FieldDetails(err)); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

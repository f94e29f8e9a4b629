package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/vaulthub/internal/apperr"
	"github.com/geocoder89/vaulthub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// APIError is the body of every failed response.
type APIError struct {
	Status    string      `json:"status"`
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get(middlewares.CtxRequestID)

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, APIError{
		Status:    "fail",
		Code:      code,
		Message:   message,
		RequestID: requestIDFrom(ctx),
		Details:   details,
	})
}

// RespondAppError maps a flow service error onto its HTTP status. Internal
// causes are logged, never echoed.
func RespondAppError(ctx *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal(err)
	}

	if appErr.Kind == apperr.KindInternal || appErr.Kind == apperr.KindDeliveryFailure {
		slog.Default().ErrorContext(ctx.Request.Context(), "request_failed",
			"kind", string(appErr.Kind),
			"err", err,
			"request_id", requestIDFrom(ctx),
		)
	}

	RespondError(ctx, appErr.Kind.Status(), string(appErr.Kind), appErr.Message, appErr.Details)
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

func RespondUnauthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

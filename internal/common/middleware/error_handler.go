package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"reward-giveaway-backend/internal/common/errors"
)

// ErrorHandler recovers panics and renders them as internal errors.
func ErrorHandler(logger zerolog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		requestID := getRequestID(c)

		logger.Error().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Interface("panic", recovered).
			Str("stack", string(debug.Stack())).
			Msg("Panic recovered")

		appErr := errors.New(errors.ErrCodeInternal, "Internal server error").
			WithDetail("panic", fmt.Sprintf("%v", recovered))

		sendErrorResponse(c, appErr, logger)
	})
}

// RequestID attaches a request id to the context and response headers.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// ErrorResponse is the JSON envelope for failed requests.
type ErrorResponse struct {
	Success   bool             `json:"success"`
	Error     *errors.AppError `json:"error"`
	Timestamp time.Time        `json:"timestamp"`
	RequestID string           `json:"request_id"`
	Path      string           `json:"path,omitempty"`
	Method    string           `json:"method,omitempty"`
}

// HandleError renders any error through the shared envelope. Handlers call
// this instead of building their own error bodies.
func HandleError(c *gin.Context, err error, logger zerolog.Logger) {
	if appErr, ok := errors.AsAppError(err); ok {
		sendErrorResponse(c, appErr, logger)
		return
	}
	sendErrorResponse(c, errors.Wrap(err, errors.ErrCodeInternal, "Unexpected error"), logger)
}

func sendErrorResponse(c *gin.Context, appErr *errors.AppError, logger zerolog.Logger) {
	requestID := getRequestID(c)
	statusCode := getHTTPStatusCode(appErr)

	response := ErrorResponse{
		Success:   false,
		Error:     appErr,
		Timestamp: time.Now(),
		RequestID: requestID,
		Path:      c.Request.URL.Path,
		Method:    c.Request.Method,
	}

	logError(appErr, statusCode, logger, c)
	c.JSON(statusCode, response)
}

func getHTTPStatusCode(appErr *errors.AppError) int {
	switch appErr.Code {
	case errors.ErrCodeValidation, errors.ErrCodeBadRequest:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeForbidden, errors.ErrCodeMembershipRequired:
		return http.StatusForbidden
	case errors.ErrCodeConflict, errors.ErrCodeDuplicateRegistration,
		errors.ErrCodeOwnershipConflict, errors.ErrCodePaymentStateConflict,
		errors.ErrCodeAlreadyInProgress:
		return http.StatusConflict
	case errors.ErrCodeLockTimeout:
		return http.StatusLocked
	case errors.ErrCodeTooManyRequests, errors.ErrCodeMaxAttempts:
		return http.StatusTooManyRequests
	case errors.ErrCodeStorage:
		return http.StatusInternalServerError
	case errors.ErrCodeCache:
		return http.StatusServiceUnavailable
	case errors.ErrCodeTelegramAPI, errors.ErrCodeTradingAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func logError(appErr *errors.AppError, statusCode int, logger zerolog.Logger, c *gin.Context) {
	evt := logger.Info()
	if statusCode >= http.StatusInternalServerError {
		evt = logger.Error()
	} else if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		evt = logger.Warn()
	}

	evt = evt.
		Str("request_id", getRequestID(c)).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("error_code", string(appErr.Code)).
		Str("error_message", appErr.Message)

	if appErr.Reason != "" {
		evt = evt.Str("reason", appErr.Reason)
	}
	if appErr.UserID != 0 {
		evt = evt.Int64("user_id", appErr.UserID)
	}
	if appErr.Cause != nil {
		evt = evt.AnErr("cause", appErr.Cause)
	}

	evt.Msg("Request failed")
}

func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return "unknown"
}

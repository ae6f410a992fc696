package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jobboard-backend/internal/shared/telemetry"
)

// Default client-facing messages per status.
const (
	MsgBadRequest   = "Ошибка запроса"
	MsgUnauthorized = "Ошибка аутентификации"
	MsgForbidden    = "Недостаточно прав"
	MsgNotFound     = "Объект не найден"
	MsgValidation   = "Ошибка валидации входных данных"
	MsgInternal     = "Внутренняя ошибка сервера"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	if message == "" {
		message = DefaultMessage(status)
	}
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	if status >= http.StatusInternalServerError {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// DefaultMessage returns the generic message for a status code.
func DefaultMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return MsgBadRequest
	case http.StatusUnauthorized:
		return MsgUnauthorized
	case http.StatusForbidden:
		return MsgForbidden
	case http.StatusNotFound:
		return MsgNotFound
	case http.StatusUnprocessableEntity:
		return MsgValidation
	default:
		return MsgInternal
	}
}

// BadRequest is a shortcut for 400 responses.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, "bad_request", message, nil)
}

// NotFound is a shortcut for 404 responses.
func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "not_found", MsgNotFound, nil)
}

// Internal logs err and writes a 500 without leaking details.
func Internal(c *gin.Context, err error) {
	if err != nil {
		c.Set("error", err.Error())
		telemetry.Error("http.internal", map[string]any{
			"path":       c.Request.URL.Path,
			"request_id": c.GetString("requestId"),
			"error":      err,
		})
	}
	Error(c, http.StatusInternalServerError, "internal_error", MsgInternal, nil)
}

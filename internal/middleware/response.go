package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/core"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MapErrorToStatus picks the HTTP status for an error returned by a service.
func MapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrBillingProvider):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// AbortWithMessage stops the chain with a failure envelope.
func AbortWithMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Success: false, Message: message})
}

// AbortWithError maps err to a status and message. Server errors are logged
// and answered with a generic message so internals never reach the client.
func AbortWithError(c *gin.Context, logger *zap.Logger, err error) {
	status := MapErrorToStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		_ = c.Error(err)
		message := "Internal server error"
		if status == http.StatusBadGateway {
			message = core.Message(err, "Billing provider error")
		}
		AbortWithMessage(c, status, message)
		return
	}
	AbortWithMessage(c, status, core.Message(err, http.StatusText(status)))
}

package errorx

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders engine errors as JSON responses
type ErrorHandler struct {
	logger *zap.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger.Named("errorx")}
}

// Handle converts any error to an APIError and writes the HTTP response
func (h *ErrorHandler) Handle(c *gin.Context, err error) {
	if err == nil {
		return
	}

	apiErr := AsAPIError(err)
	if apiErr.Category == CategoryInternal {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", apiErr.Code),
			zap.Error(err))
	} else {
		h.logger.Debug("request rejected",
			zap.String("path", c.FullPath()),
			zap.String("code", apiErr.Code))
	}

	c.JSON(apiErr.HTTPStatus, gin.H{"success": false, "error": apiErr})
}

// AsAPIError converts any error to an APIError, defaulting unknown errors
// to a store/internal failure.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{
		Code:       "internal_error",
		Message:    http.StatusText(http.StatusInternalServerError),
		Category:   CategoryInternal,
		HTTPStatus: http.StatusInternalServerError,
	}
}

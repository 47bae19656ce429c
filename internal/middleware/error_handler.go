package middleware

import (
	"net/http"

	apperrors "chatflow/pkg/errors"
	"chatflow/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		statusCode := apperrors.HTTPStatusFromError(err)
		message := err.Error()
		if statusCode == http.StatusInternalServerError {
			log.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
			message = "Internal server error"
		}

		c.JSON(statusCode, gin.H{"error": message})
	}
}

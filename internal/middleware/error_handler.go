package middleware

import (
	"github.com/gin-gonic/gin"

	"campus_connect/pkg/errors"
)

// ErrorHandler converts errors attached via c.Error into the uniform
// response envelope. Handlers that respond directly bypass it.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			statusCode := errors.HTTPStatusFromError(err.Err)
			c.JSON(statusCode, gin.H{
				"success": false,
				"error":   err.Error(),
			})
		}
	}
}

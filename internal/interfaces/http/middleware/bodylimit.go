package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/grievancenet/backend/internal/interfaces/http/dto"
)

// BodyLimit returns a middleware that limits request body size. Requests
// declaring a larger Content-Length are refused before the body is read.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeRequestTooLarge,
					"Request body exceeds maximum allowed size", c.GetString(RequestIDKey)))
			return
		}

		// Chunked bodies are cut off while streaming
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

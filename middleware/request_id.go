package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lexatlas/legalrisk/pkg/logger"
)

// HeaderRequestID carries the request ID on both request and response.
const HeaderRequestID = "X-Request-ID"

const contextRequestID = "request_id"

// RequestID assigns every request an ID so the log lines of one document
// operation can be correlated end to end, including the pipeline stages it
// kicks off. An ID supplied by the caller (a gateway, a retrying client) is
// kept; otherwise a fresh UUID is issued.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.New().String()
		}

		c.Header(HeaderRequestID, id)
		c.Set(contextRequestID, id)

		// The service layer logs through the request context
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetRequestID returns the request's ID, or "" outside the middleware.
func GetRequestID(c *gin.Context) string {
	if id, ok := c.Get(contextRequestID); ok {
		return id.(string)
	}
	return ""
}

package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery turns a panic below it into a 500 response instead of tearing the
// server down. Analysis runs dispatched to background goroutines carry their
// own recover inside the pipeline; this covers the request path.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			requestID := GetRequestID(c)
			slog.Error("request handler panicked",
				"panic", r,
				"request_id", requestID,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"tenant", GetTenant(c),
				"stack", string(debug.Stack()),
			)

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      "Internal server error",
				"request_id": requestID,
			})
		}()

		c.Next()
	}
}

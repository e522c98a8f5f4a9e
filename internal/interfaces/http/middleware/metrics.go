package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestRecorder receives per-request measurements.
type RequestRecorder interface {
	RecordHTTPRequest(method, path string, statusCode int, d time.Duration)
}

// Metrics records every request under its route template, so /issues/:id
// is one series regardless of the id. Unmatched routes are recorded as
// "unmatched".
func Metrics(rec RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		rec.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

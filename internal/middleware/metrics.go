package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuxishi/service-status-dashboard/internal/metrics"
)

// Metrics records the count and latency of every request under its route
// template, so /static/*filepath stays a single series.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

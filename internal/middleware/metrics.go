package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/epicgather/epicgather/pkg/metrics"
)

// Metrics observes per-request latency labelled by method, route, and status.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// Label by route template so path parameters do not explode cardinality.
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		status := strconv.Itoa(c.Writer.Status())
		metrics.APILatency.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}

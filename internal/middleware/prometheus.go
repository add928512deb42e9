package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coreproxy/edgeproxy/internal/metrics"
)

// PrometheusMiddleware records admin API request duration and count. The
// proxy's own catch-all route is instrumented separately by the proxy
// package itself; this middleware only ever sits in front of the admin
// surface.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath() // route pattern, not actual path (avoids cardinality explosion)
		if path == "" {
			path = "unknown"
		}
		metrics.AdminRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		metrics.AdminRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

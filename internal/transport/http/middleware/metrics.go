package middleware

import (
	"strconv"
	"time"

	"github.com/ErlanBelekov/points-rebuild/internal/metrics"
	"github.com/gin-gonic/gin"
)

func Metrics(m *metrics.HTTP) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		method := c.Request.Method
		duration := time.Since(start).Seconds()

		m.RequestDuration.WithLabelValues(method, path, status).Observe(duration)
		m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	}
}

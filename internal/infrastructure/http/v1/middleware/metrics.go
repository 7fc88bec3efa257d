package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"sage/internal/domain"
)

// Metrics records request latency by route template and status.
func Metrics(m domain.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Observe(c.Request.Context(), domain.MetricHTTPRequestMillis,
			float64(time.Since(start).Microseconds())/1000,
			"method", c.Request.Method,
			"route", route,
			"status", strconv.Itoa(c.Writer.Status()),
		)
	}
}

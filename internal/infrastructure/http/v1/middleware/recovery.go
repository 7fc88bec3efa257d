// Package middleware provides HTTP middleware components.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"sage/internal/core/apperror"
	"sage/internal/domain"
	"sage/pkg/logger"
)

// Recovery turns a panic into a 500. It runs outside ErrorHandler, so it
// renders the body itself and releases any pending idempotency key.
// The stack is logged; the client only sees the request id.
func Recovery(metrics domain.Metrics) gin.HandlerFunc {
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if err, ok := r.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(r)
			}

			ctx := c.Request.Context()
			logger.Error(ctx, "panic recovered",
				"error", r,
				"route", c.FullPath(),
				"product_id", c.Param("id"),
				"stack", string(debug.Stack()),
			)
			metrics.Count(ctx, domain.MetricPanics, 1, "route", c.FullPath())

			err := apperror.NewInternal(fmt.Errorf("panic: %v", r)).
				WithDetail("request_id", c.GetString("request_id"))
			_ = c.Error(err)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			status, body := render(c, err)
			FailIdempotency(c, status, body)
			c.AbortWithStatusJSON(status, body)
		}()
		c.Next()
	}
}

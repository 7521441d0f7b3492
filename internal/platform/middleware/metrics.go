package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carecal/carecal/internal/platform/metrics"
)

// Metrics records request count and duration per route.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			// Use the route pattern, not the raw path, to bound cardinality.
			path := c.Path()
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)

			metrics.RequestCount.WithLabelValues(path, method, status).Inc()
			metrics.RequestDuration.WithLabelValues(path, method).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/session-security/internal/api/metrics"
)

// Metrics records request count and latency per route. Errors are rendered
// here so the recorded status is the one the client sees, then passed on
// for the request logger.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := strconv.Itoa(c.Response().Status)
			metrics.HTTPRequestsTotal.WithLabelValues(c.Request().Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

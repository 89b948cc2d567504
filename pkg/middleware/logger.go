package middleware

import (
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/heather/pkg/context"
	"github.com/Ramsey-B/heather/pkg/metrics"
)

// Logger writes one line per request and records request metrics. Errors are
// rendered first so the logged status is the one the client saw.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)

			req := c.Request()
			res := c.Response()
			ctx := req.Context()
			route := appctx.RequestFrom(ctx).Route
			if route == "" {
				route = c.Path()
			}

			metrics.RecordHTTPRequest(req.Method, route, res.Status, elapsed.Seconds())

			fields := appctx.LogFields(ctx)
			fields["method"] = req.Method
			fields["status"] = res.Status
			fields["latency_ms"] = elapsed.Milliseconds()
			fields["response_size"] = res.Size

			entry := logger.WithContext(ctx).WithFields(fields)
			if res.Status >= 500 {
				entry.Warn("Request failed")
				return nil
			}
			entry.Debug("Request")
			return nil
		}
	}
}

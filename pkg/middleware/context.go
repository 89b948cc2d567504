package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/heather/pkg/context"
)

// HeaderUserID carries the caller when bearer authentication is disabled.
const HeaderUserID = "X-User-ID"

// Context attaches request metadata to the request context and echoes the request id.
// The route is echo's path template so it stays low-cardinality in logs and metrics.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)

			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}

			ctx := appctx.WithRequest(req.Context(), appctx.Request{
				ID:       id,
				Method:   req.Method,
				Route:    route,
				RemoteIP: c.RealIP(),
				UserID:   req.Header.Get(HeaderUserID),
			})
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}

package middleware

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/heather/pkg/context"
	"github.com/Ramsey-B/heather/pkg/tracing"
)

// ErrorResponse is the JSON body of every failed admin API call.
type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Error renders httperror and echo errors with their status; anything else is a 500
// whose cause is logged but not returned.
func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := "Internal Server Error"
		var meta map[string]any

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				message = msg
			}
		}

		// Message, not Error(): the latter carries the "[code] HTTP Error:" prefix.
		var httperr *httperror.HTTPError
		if errors.As(err, &httperr) {
			code = httperr.Code
			message = httperr.Message
			if len(httperr.Meta) > 0 {
				meta = httperr.Meta
			}
		}

		fields := appctx.LogFields(ctx)
		fields["status"] = code
		log := logger.WithContext(ctx).WithError(err).WithFields(fields)
		if code >= http.StatusInternalServerError {
			log.Error("Request failed with server error")
		} else {
			log.Warn("Request rejected")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, ErrorResponse{
			Message:   message,
			RequestID: appctx.GetRequestID(ctx),
			TraceID:   tracing.GetTraceID(ctx),
			Meta:      meta,
		})
	}
}

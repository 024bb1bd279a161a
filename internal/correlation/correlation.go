// Package correlation threads a per-request identifier through handler
// context, log entries, and API responses.
package correlation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// HeaderRequestID is honored on inbound requests so upstream proxies can
// supply their own correlation id; it is always echoed on responses.
const HeaderRequestID = "X-Request-ID"

type ctxKey int

const (
	keyRequestID ctxKey = iota
	keyStartedAt
)

// NewID returns a fresh correlation id.
func NewID() string {
	return uuid.NewString()
}

// Middleware attaches a request id and start time to the request context
// and sets the id on the response header.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := strings.TrimSpace(c.Request().Header.Get(HeaderRequestID))
			if id == "" || len(id) > 64 {
				id = NewID()
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, keyRequestID, id)
			ctx = context.WithValue(ctx, keyStartedAt, time.Now())
			c.SetRequest(c.Request().WithContext(ctx))

			c.Response().Header().Set(HeaderRequestID, id)
			return next(c)
		}
	}
}

// RequestID returns the correlation id from ctx, or empty when the
// middleware did not run (background jobs, tests).
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(keyRequestID).(string); ok {
		return id
	}
	return ""
}

// StartedAt returns when the request entered the middleware.
func StartedAt(ctx context.Context) time.Time {
	if t, ok := ctx.Value(keyStartedAt).(time.Time); ok {
		return t
	}
	return time.Time{}
}

// Logger returns a request-scoped log entry carrying the correlation id.
func Logger(ctx context.Context, base *logrus.Logger) *logrus.Entry {
	entry := logrus.NewEntry(base)
	if id := RequestID(ctx); id != "" {
		entry = entry.WithField("request_id", id)
	}
	return entry
}

package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lnbridge/swap-gateway/internal/correlation"
	"github.com/lnbridge/swap-gateway/internal/faults"
)

// fault writes the structured error response for a classified failure.
// Internal detail is attached only in dev mode.
func (h *Handlers) fault(c echo.Context, f *faults.Fault, swapID string) error {
	body := ErrorBody{
		Code:      string(f.Code),
		Message:   f.Message,
		Retryable: f.Retryable,
		SwapID:    swapID,
		RequestID: correlation.RequestID(c.Request().Context()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.DevMode && f.Cause() != nil {
		body.Details = f.Cause().Error()
	}
	return c.JSON(f.Status, ErrorResponse{Success: false, Error: body})
}

// FaultErrorHandler keeps every error response in the structured format,
// including errors raised by echo itself (body limit, routing, binding).
func FaultErrorHandler(h *Handlers) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if he, ok := err.(*echo.HTTPError); ok {
			switch he.Code {
			case http.StatusRequestEntityTooLarge:
				_ = h.fault(c, faults.New(faults.CodeRequestTooLarge, ""), "")
			case http.StatusUnsupportedMediaType:
				_ = h.fault(c, faults.New(faults.CodeInvalidContentType, ""), "")
			default:
				// Routing errors and the like: keep echo's status but stay
				// in the structured format.
				_ = c.JSON(he.Code, ErrorResponse{Success: false, Error: ErrorBody{
					Code:      string(faults.CodeInternal),
					Message:   http.StatusText(he.Code),
					RequestID: correlation.RequestID(c.Request().Context()),
					Timestamp: time.Now().UTC().Format(time.RFC3339),
				}})
			}
			return
		}

		_ = h.fault(c, faults.Classify(err), "")
	}
}

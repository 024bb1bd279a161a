package server

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lnbridge/swap-gateway/internal/admission"
	"github.com/lnbridge/swap-gateway/internal/correlation"
	"github.com/lnbridge/swap-gateway/internal/faults"
)

// RegisterRoutes sets up all routes and middleware for the server.
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = FaultErrorHandler(h)

	e.Use(correlation.Middleware())
	e.Use(SetJSONContentType)
	e.Use(SetNoCacheHeaders)
	e.Use(middleware.BodyLimit(strconv.Itoa(admission.MaxBodyBytes)))

	api := e.Group("/api")

	if cfg.APIKey != "" {
		api.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:x-api-key",
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/api/health"
			},
		}))
	}

	api.POST("/atomic-swap", h.AtomicSwap, h.RateLimit(), requireJSON(h))
	api.GET("/health", h.Health)
	api.GET("/tokens", h.Tokens)
	api.GET("/balance/:token", h.Balance)
	api.GET("/swaps/recent", h.RecentSwaps)
}

// requireJSON rejects swap submissions that do not declare a JSON body.
func requireJSON(h *Handlers) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ct := c.Request().Header.Get(echo.HeaderContentType)
			if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), echo.MIMEApplicationJSON) {
				return h.fault(c, faults.New(faults.CodeInvalidContentType, ""), "")
			}
			return next(c)
		}
	}
}

// Package server wires the HTTP transport: routing, middleware, and the
// mapping from classified faults to the wire error contract.
package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Addr    string // bind address, e.g. ":8090"
	DevMode bool   // include internal error detail in responses
	APIKey  string // optional API key for authentication
}

// ServerDeps contains dependencies required to create a new Server.
type ServerDeps struct {
	Handlers *Handlers
	Config   ServerConfig
}

// Server wraps Echo with lifecycle management.
type Server struct {
	e      *echo.Echo
	cfg    ServerConfig
	closed chan struct{}
}

// NewServer creates the HTTP server with the given dependencies.
func NewServer(deps ServerDeps) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())

	e.Server.ReadTimeout = 15 * time.Second
	// Writes stay open for the whole counterparty wait on the swap
	// endpoint, so the write timeout must exceed the await bound.
	e.Server.WriteTimeout = 45 * time.Minute
	e.Server.IdleTimeout = 60 * time.Second

	RegisterRoutes(e, deps.Handlers, deps.Config)

	return &Server{e: e, cfg: deps.Config, closed: make(chan struct{})}, nil
}

// Echo exposes the underlying router for tests.
func (s *Server) Echo() *echo.Echo { return s.e }

// Start begins serving HTTP requests on the configured address.
func (s *Server) Start() error {
	return s.e.Start(s.cfg.Addr)
}

// Shutdown gracefully shuts down the server with a 10-second timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	defer close(s.closed)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.e.Shutdown(ctx)
}

// WaitClosed blocks until the server is fully shut down or ctx expires.
func (s *Server) WaitClosed(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return nil
	}
}

// SetJSONContentType ensures all responses carry the JSON content type.
func SetJSONContentType(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return next(c)
	}
}

// SetNoCacheHeaders prevents caching of API responses.
func SetNoCacheHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set("Cache-Control", "no-store")
		return next(c)
	}
}

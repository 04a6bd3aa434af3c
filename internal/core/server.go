// Package core provides the API chassis for the BloomWatch platform.
// It creates a chi router and enforces cross-cutting concerns -- security
// headers, logging, request correlation, and error handling -- before
// requests reach domain-specific handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bloomwatch/internal/config"
)

// Server encapsulates all dependencies for the BloomWatch API, allowing for
// easy injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// V1RouteRegistrars are populated by the application entry point to mount
	// domain handler routes under /v1. This indirection avoids import cycles
	// between core and handler packages.
	V1RouteRegistrars []func(chi.Router)

	// HealthProbes are the subsystem checks executed by GET /health.
	HealthProbes []HealthProbe

	// closers are invoked during Shutdown, in registration order.
	closers []func() error

	router *chi.Mux
}

// NewServer initializes dependencies, sets up the router, and prepares the
// server for route mounting. It performs a fail-fast check on critical
// configuration.
//
// The caller is responsible for mounting routes (via MountRoutes) after
// construction. This separation allows tests to customize route registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers a cleanup function to run during Shutdown
// (e.g., closing the database pool).
func (s *Server) OnShutdown(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Shutdown performs a graceful termination of server resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var firstErr error
	for _, closer := range s.closers {
		if err := closer(); err != nil {
			s.Logger.Error("error during shutdown cleanup", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if firstErr != nil {
		return fmt.Errorf("shutdown cleanup: %w", firstErr)
	}
	s.Logger.Info("server shutdown complete")
	return nil
}

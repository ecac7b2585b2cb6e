// Package server hosts the storyforge HTTP API used by `storyforge serve`.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackzampolin/storyforge/internal/api"
	"github.com/jackzampolin/storyforge/internal/batches"
	"github.com/jackzampolin/storyforge/internal/config"
	"github.com/jackzampolin/storyforge/internal/server/endpoints"
	"github.com/jackzampolin/storyforge/internal/svcctx"
)

const shutdownTimeout = 30 * time.Second

// Server is the storyforge HTTP server. Batches started through it run in
// the background and are cancelled on shutdown.
type Server struct {
	httpServer *http.Server
	services   *svcctx.Services
	configMgr  *config.Manager
	logger     *slog.Logger

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// PlannerFactory builds a planner from configuration. The server calls it
// on config reload so new batches pick up changed ceilings.
type PlannerFactory func(cfg *config.Config) (batches.Planner, error)

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8090)
	Port string
	// Services are attached to every request context
	Services *svcctx.Services
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// PlannerFactory rebuilds the planner on config change (optional)
	PlannerFactory PlannerFactory
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8090"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Services == nil {
		return nil, errors.New("services are required")
	}

	s := &Server{
		services:  cfg.Services,
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
	}

	if cfg.ConfigManager != nil && cfg.PlannerFactory != nil && cfg.Services.Batches != nil {
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			p, err := cfg.PlannerFactory(c)
			if err != nil {
				cfg.Logger.Warn("keeping previous planner after config change", "error", err)
				return
			}
			cfg.Services.Batches.SetPlanner(p)
			cfg.Logger.Info("planner rebuilt from config",
				"image", c.Concurrency.Image,
				"video", c.Concurrency.Video,
				"stagger", c.Stagger.Interval)
		})
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withLogging(s.withServices(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start serves HTTP until the context is cancelled or an error occurs.
// An unreachable backend is logged but does not prevent startup.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if client := s.services.Backend; client != nil {
		if _, err := client.FetchStatus(ctx); err != nil {
			s.logger.Warn("backend not reachable; batches will treat status as empty",
				"url", client.BaseURL(), "error", err)
		} else {
			s.logger.Info("backend is reachable", "url", client.BaseURL())
		}
	}

	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown stops accepting requests, then cancels running batches and
// waits for their in-flight jobs.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if bm := s.services.Batches; bm != nil {
		s.logger.Info("stopping running batches")
		if err := bm.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("batch shutdown error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Registry returns the endpoint registry.
func (s *Server) Registry() *api.Registry {
	return s.endpointRegistry
}

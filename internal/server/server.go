// ABOUTME: The openmcp HTTP server wiring config, auth, and tool services
// ABOUTME: Owns service startup, route registration, and graceful shutdown

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/openmcp-ai/openmcp/internal/auth"
	"github.com/openmcp-ai/openmcp/internal/browser"
	"github.com/openmcp-ai/openmcp/internal/config"
	"github.com/openmcp-ai/openmcp/internal/service"
	"github.com/openmcp-ai/openmcp/internal/webcrawler"
	"github.com/openmcp-ai/openmcp/internal/websearch"
)

// Version is the openmcp release version reported by the root endpoint and
// the CLI.
const Version = "0.1.0"

const shutdownTimeout = 10 * time.Second

// Server hosts the tool services behind the HTTP API.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	auth     *auth.Manager
	registry *service.Registry
}

// New creates a Server with the three built-in service factories registered.
func New(cfg *config.Config, logger *slog.Logger) *Server {
	registry := service.NewRegistry(logger)
	registry.RegisterFactory(browser.ServiceName, browser.Factory)
	registry.RegisterFactory(websearch.ServiceName, websearch.Factory)
	registry.RegisterFactory(webcrawler.ServiceName, webcrawler.Factory)

	return &Server{
		cfg:      cfg,
		logger:   logger,
		auth:     auth.NewManager(cfg.Auth, logger),
		registry: registry,
	}
}

// Auth exposes the key manager, mainly for the CLI.
func (s *Server) Auth() *auth.Manager { return s.auth }

// Registry exposes the service registry, mainly for the CLI.
func (s *Server) Registry() *service.Registry { return s.registry }

// StartServices starts every enabled service from the configuration.
// A service that fails to start is logged and skipped so one missing
// dependency does not take the whole server down.
func (s *Server) StartServices(ctx context.Context) {
	for _, sc := range s.cfg.Services {
		if !sc.Enabled {
			s.logger.Debug("service disabled", "service", sc.Name)
			continue
		}
		if err := s.registry.StartService(ctx, sc); err != nil {
			s.logger.Error("failed to start service", "service", sc.Name, "error", err)
		}
	}
}

// Handler builds the full route table.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.Middleware(s.auth))
	api.HandleFunc("/auth/keys", s.handleCreateKey).Methods(http.MethodPost)
	api.HandleFunc("/auth/keys", s.handleListKeys).Methods(http.MethodGet)
	api.HandleFunc("/services", s.handleListServices).Methods(http.MethodGet)
	api.HandleFunc("/services/{service}/tools", s.handleListTools).Methods(http.MethodGet)
	api.HandleFunc("/services/{service}/status", s.handleServiceStatus).Methods(http.MethodGet)
	api.HandleFunc("/services/{service}/call", s.handleCallTool).Methods(http.MethodPost)
	api.HandleFunc("/services/{service}/call/stream", s.handleStreamTool).Methods(http.MethodGet)

	return r
}

// Run starts the enabled services and serves the API until ctx is cancelled,
// then shuts everything down.
func (s *Server) Run(ctx context.Context) error {
	s.StartServices(ctx)

	httpSrv := &http.Server{
		Addr:    s.cfg.Server.Addr(),
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("openmcp server listening",
			"addr", httpSrv.Addr,
			"version", Version,
			"services", s.registry.List(),
		)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http shutdown failed", "error", err)
		}
		s.registry.StopAll(shutdownCtx)
		return nil

	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.registry.StopAll(context.WithoutCancel(ctx))
		return err
	}
}

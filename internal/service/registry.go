// ABOUTME: Thread-safe registry for tool services and their lifecycles
// ABOUTME: Manages factories, service start/stop, lookup, and status reporting

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/openmcp-ai/openmcp/internal/config"
)

// ErrServiceNotFound indicates the named service is not running.
var ErrServiceNotFound = errors.New("service not found")

// ErrUnknownService indicates no factory is registered under the name.
var ErrUnknownService = errors.New("unknown service")

// ErrAlreadyRunning indicates the service has already been started.
var ErrAlreadyRunning = errors.New("service already running")

// Factory constructs a service from its configuration block.
type Factory func(cfg config.ServiceConfig, logger *slog.Logger) (Service, error)

// Status is a point-in-time snapshot of one service.
type Status struct {
	Name      string `json:"name"`
	Running   bool   `json:"running"`
	ToolCount int    `json:"tool_count"`
}

// Registry maintains the set of available service factories and the services
// started from them. All methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	services  map[string]Service
	logger    *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		services:  make(map[string]Service),
		logger:    logger,
	}
}

// RegisterFactory makes a service constructible under the given name.
// Registering the same name twice replaces the factory.
func (r *Registry) RegisterFactory(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// StartService constructs and starts the service named by cfg.Name.
// Returns ErrUnknownService when no factory matches and ErrAlreadyRunning
// when the service was already started.
func (r *Registry) StartService(ctx context.Context, cfg config.ServiceConfig) error {
	r.mu.Lock()
	factory, ok := r.factories[cfg.Name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownService, cfg.Name)
	}
	if _, running := r.services[cfg.Name]; running {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, cfg.Name)
	}
	r.mu.Unlock()

	svc, err := factory(cfg, r.logger.With("service", cfg.Name))
	if err != nil {
		return fmt.Errorf("constructing service %s: %w", cfg.Name, err)
	}

	// Start outside the lock: browser startup can take seconds.
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting service %s: %w", cfg.Name, err)
	}

	r.mu.Lock()
	if _, running := r.services[cfg.Name]; running {
		r.mu.Unlock()
		stopCtx := context.WithoutCancel(ctx)
		_ = svc.Stop(stopCtx)
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, cfg.Name)
	}
	r.services[cfg.Name] = svc
	r.mu.Unlock()

	r.logger.Info("service started", "service", cfg.Name, "tools", len(svc.Tools()))
	return nil
}

// StopService stops and removes the named service.
func (r *Registry) StopService(ctx context.Context, name string) error {
	r.mu.Lock()
	svc, ok := r.services[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	delete(r.services, name)
	r.mu.Unlock()

	if err := svc.Stop(ctx); err != nil {
		return fmt.Errorf("stopping service %s: %w", name, err)
	}

	r.logger.Info("service stopped", "service", name)
	return nil
}

// StopAll stops every running service, best effort. Errors are logged, not
// returned, so shutdown always completes.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.Lock()
	services := make(map[string]Service, len(r.services))
	for name, svc := range r.services {
		services[name] = svc
	}
	r.services = make(map[string]Service)
	r.mu.Unlock()

	for name, svc := range services {
		if err := svc.Stop(ctx); err != nil {
			r.logger.Error("stopping service failed", "service", name, "error", err)
			continue
		}
		r.logger.Info("service stopped", "service", name)
	}
}

// Get returns the running service under name.
func (r *Registry) Get(name string) (Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	svc, ok := r.services[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	return svc, nil
}

// List returns the names of all running services, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Available returns the names of all registered factories, sorted. A name
// being available does not imply the service is running.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status reports the state of the named service. Known-but-stopped services
// report Running false; unregistered names return ErrUnknownService.
func (r *Registry) Status(name string) (Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if svc, ok := r.services[name]; ok {
		return Status{Name: name, Running: svc.Running(), ToolCount: len(svc.Tools())}, nil
	}
	if _, ok := r.factories[name]; ok {
		return Status{Name: name}, nil
	}
	return Status{}, fmt.Errorf("%w: %s", ErrUnknownService, name)
}

// ABOUTME: Unit tests for the service registry
// ABOUTME: Covers factory registration, lifecycle transitions, lookup, and status

package service

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"testing"

	"github.com/openmcp-ai/openmcp/internal/config"
)

// fakeService is a minimal Service for registry tests.
type fakeService struct {
	name    string
	running bool
	stopped int
	startErr error
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeService) Stop(ctx context.Context) error {
	f.running = false
	f.stopped++
	return nil
}

func (f *fakeService) Running() bool { return f.running }

func (f *fakeService) Tools() []Tool {
	return []Tool{{Name: f.name + "_tool"}}
}

func (f *fakeService) CallTool(ctx context.Context, tool string, args map[string]any, sessionID string) map[string]any {
	if tool != f.name+"_tool" {
		return UnknownToolResult(tool)
	}
	return map[string]any{"ok": true}
}

func newTestRegistry(t *testing.T, names ...string) (*Registry, map[string]*fakeService) {
	t.Helper()
	r := NewRegistry(slog.New(slog.DiscardHandler))
	fakes := make(map[string]*fakeService)
	for _, name := range names {
		name := name
		fake := &fakeService{name: name}
		fakes[name] = fake
		r.RegisterFactory(name, func(cfg config.ServiceConfig, logger *slog.Logger) (Service, error) {
			return fake, nil
		})
	}
	return r, fakes
}

func TestRegistry_StartAndGet(t *testing.T) {
	r, fakes := newTestRegistry(t, "browseruse")

	if err := r.StartService(context.Background(), config.ServiceConfig{Name: "browseruse"}); err != nil {
		t.Fatalf("StartService() error = %v", err)
	}
	if !fakes["browseruse"].running {
		t.Error("service should be running after StartService")
	}

	svc, err := r.Get("browseruse")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if svc.Name() != "browseruse" {
		t.Errorf("service name = %q, want browseruse", svc.Name())
	}
}

func TestRegistry_StartUnknown(t *testing.T) {
	r, _ := newTestRegistry(t)

	err := r.StartService(context.Background(), config.ServiceConfig{Name: "nope"})
	if !errors.Is(err, ErrUnknownService) {
		t.Errorf("StartService(unknown) error = %v, want ErrUnknownService", err)
	}
}

func TestRegistry_StartTwice(t *testing.T) {
	r, _ := newTestRegistry(t, "web_search")

	if err := r.StartService(context.Background(), config.ServiceConfig{Name: "web_search"}); err != nil {
		t.Fatalf("first StartService() error = %v", err)
	}
	err := r.StartService(context.Background(), config.ServiceConfig{Name: "web_search"})
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second StartService() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestRegistry_StartFailureNotRegistered(t *testing.T) {
	r, fakes := newTestRegistry(t, "browseruse")
	fakes["browseruse"].startErr = errors.New("driver missing")

	if err := r.StartService(context.Background(), config.ServiceConfig{Name: "browseruse"}); err == nil {
		t.Fatal("StartService() should propagate the start failure")
	}
	if _, err := r.Get("browseruse"); !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("failed service should not be registered, Get() error = %v", err)
	}
}

func TestRegistry_StopService(t *testing.T) {
	r, fakes := newTestRegistry(t, "browseruse")

	if err := r.StartService(context.Background(), config.ServiceConfig{Name: "browseruse"}); err != nil {
		t.Fatalf("StartService() error = %v", err)
	}
	if err := r.StopService(context.Background(), "browseruse"); err != nil {
		t.Fatalf("StopService() error = %v", err)
	}
	if fakes["browseruse"].stopped != 1 {
		t.Errorf("stop count = %d, want 1", fakes["browseruse"].stopped)
	}
	if _, err := r.Get("browseruse"); !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("Get() after stop error = %v, want ErrServiceNotFound", err)
	}

	if err := r.StopService(context.Background(), "browseruse"); !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("StopService(stopped) error = %v, want ErrServiceNotFound", err)
	}
}

func TestRegistry_StopAll(t *testing.T) {
	r, fakes := newTestRegistry(t, "browseruse", "web_search", "web_crawler")

	for name := range fakes {
		if err := r.StartService(context.Background(), config.ServiceConfig{Name: name}); err != nil {
			t.Fatalf("StartService(%s) error = %v", name, err)
		}
	}

	r.StopAll(context.Background())

	if got := r.List(); len(got) != 0 {
		t.Errorf("List() after StopAll = %v, want empty", got)
	}
	for name, fake := range fakes {
		if fake.stopped != 1 {
			t.Errorf("service %s stop count = %d, want 1", name, fake.stopped)
		}
	}
}

func TestRegistry_ListAndAvailable(t *testing.T) {
	r, _ := newTestRegistry(t, "web_search", "browseruse", "web_crawler")

	want := []string{"browseruse", "web_crawler", "web_search"}
	if got := r.Available(); !reflect.DeepEqual(got, want) {
		t.Errorf("Available() = %v, want %v", got, want)
	}
	if got := r.List(); len(got) != 0 {
		t.Errorf("List() before any start = %v, want empty", got)
	}

	if err := r.StartService(context.Background(), config.ServiceConfig{Name: "web_search"}); err != nil {
		t.Fatalf("StartService() error = %v", err)
	}
	if got := r.List(); !reflect.DeepEqual(got, []string{"web_search"}) {
		t.Errorf("List() = %v, want [web_search]", got)
	}
}

func TestRegistry_Status(t *testing.T) {
	r, _ := newTestRegistry(t, "browseruse")

	status, err := r.Status("browseruse")
	if err != nil {
		t.Fatalf("Status(stopped) error = %v", err)
	}
	if status.Running {
		t.Error("stopped service should report Running false")
	}

	if err := r.StartService(context.Background(), config.ServiceConfig{Name: "browseruse"}); err != nil {
		t.Fatalf("StartService() error = %v", err)
	}
	status, err = r.Status("browseruse")
	if err != nil {
		t.Fatalf("Status(running) error = %v", err)
	}
	if !status.Running || status.ToolCount != 1 {
		t.Errorf("Status = %+v, want running with 1 tool", status)
	}

	if _, err := r.Status("nope"); !errors.Is(err, ErrUnknownService) {
		t.Errorf("Status(unknown) error = %v, want ErrUnknownService", err)
	}
}

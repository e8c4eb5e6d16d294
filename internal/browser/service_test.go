// ABOUTME: Unit tests for the browseruse service using an in-memory driver
// ABOUTME: Covers session lifecycle, the session cap, tool dispatch, and error payloads

package browser

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/openmcp-ai/openmcp/internal/config"
)

type fakeDriver struct {
	url       string
	title     string
	closed    bool
	failNav   error
	lastTyped string
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) (PageInfo, error) {
	if d.failNav != nil {
		return PageInfo{}, d.failNav
	}
	d.url = url
	d.title = "Example Domain"
	return PageInfo{URL: url, Title: d.title}, nil
}

func (d *fakeDriver) PageInfo(ctx context.Context) (PageInfo, error) {
	return PageInfo{URL: d.url, Title: d.title, SourceLength: 1024}, nil
}

func (d *fakeDriver) FindElements(ctx context.Context, selector, by string) ([]Element, error) {
	return []Element{{Tag: "a", Text: "link", Attributes: map[string]string{"href": "/next"}}}, nil
}

func (d *fakeDriver) Click(ctx context.Context, selector, by string) (string, error) {
	d.url = d.url + "/clicked"
	return d.url, nil
}

func (d *fakeDriver) TypeText(ctx context.Context, selector, text, by string) error {
	d.lastTyped = text
	return nil
}

func (d *fakeDriver) Screenshot(ctx context.Context) (string, error) {
	return "aGVsbG8=", nil
}

func (d *fakeDriver) Close(ctx context.Context) error {
	d.closed = true
	return nil
}

type fakeLauncher struct {
	mu        sync.Mutex
	drivers   []*fakeDriver
	launchErr error
	shutdowns int
}

func (l *fakeLauncher) Launch(ctx context.Context, opts LaunchOptions) (Driver, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	d := &fakeDriver{}
	l.drivers = append(l.drivers, d)
	return d, nil
}

func (l *fakeLauncher) Shutdown(ctx context.Context) error {
	l.shutdowns++
	return nil
}

func newTestService(t *testing.T, cfg map[string]any) (*Service, *fakeLauncher) {
	t.Helper()
	launcher := &fakeLauncher{}
	svc, err := NewWithLauncher(config.ServiceConfig{
		Name:   ServiceName,
		Config: cfg,
	}, slog.New(slog.DiscardHandler), launcher)
	if err != nil {
		t.Fatalf("NewWithLauncher() error = %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return svc, launcher
}

func createSession(t *testing.T, svc *Service) string {
	t.Helper()
	result := svc.CallTool(context.Background(), "create_session", nil, "")
	if errMsg, ok := result["error"]; ok {
		t.Fatalf("create_session failed: %v", errMsg)
	}
	id, ok := result["session_id"].(string)
	if !ok || id == "" {
		t.Fatalf("create_session result missing session_id: %v", result)
	}
	return id
}

func TestService_CreateSession(t *testing.T) {
	svc, launcher := newTestService(t, nil)

	result := svc.CallTool(context.Background(), "create_session", map[string]any{
		"headless": false,
		"timeout":  10,
	}, "")

	if result["status"] != "created" {
		t.Errorf("status = %v, want created", result["status"])
	}
	if result["headless"] != false {
		t.Errorf("headless = %v, want false", result["headless"])
	}
	if result["timeout"] != 10 {
		t.Errorf("timeout = %v, want 10", result["timeout"])
	}
	if len(launcher.drivers) != 1 {
		t.Errorf("launched %d drivers, want 1", len(launcher.drivers))
	}
}

func TestService_CreateSessionDefaults(t *testing.T) {
	svc, _ := newTestService(t, map[string]any{"headless": true, "timeout": 30})

	result := svc.CallTool(context.Background(), "create_session", nil, "")
	if result["headless"] != true {
		t.Errorf("headless = %v, want true", result["headless"])
	}
	if result["timeout"] != 30 {
		t.Errorf("timeout = %v, want 30", result["timeout"])
	}
}

func TestService_SessionCap(t *testing.T) {
	svc, _ := newTestService(t, map[string]any{"max_sessions": 2})

	createSession(t, svc)
	createSession(t, svc)

	result := svc.CallTool(context.Background(), "create_session", nil, "")
	want := "Maximum sessions (2) reached"
	if result["error"] != want {
		t.Errorf("error = %v, want %q", result["error"], want)
	}
	if svc.SessionCount() != 2 {
		t.Errorf("SessionCount() = %d, want 2", svc.SessionCount())
	}
}

func TestService_SessionCapUnderConcurrency(t *testing.T) {
	const max = 3
	const attempts = 20

	svc, launcher := newTestService(t, map[string]any{"max_sessions": max})

	var wg sync.WaitGroup
	results := make(chan map[string]any, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.CallTool(context.Background(), "create_session", nil, "")
		}()
	}
	wg.Wait()
	close(results)

	created := 0
	for result := range results {
		if result["status"] == "created" {
			created++
			continue
		}
		if result["error"] != "Maximum sessions (3) reached" {
			t.Errorf("rejected create error = %v, want cap message", result["error"])
		}
	}

	if created != max {
		t.Errorf("created %d sessions, want %d", created, max)
	}
	if svc.SessionCount() != max {
		t.Errorf("SessionCount() = %d, want %d", svc.SessionCount(), max)
	}

	// Drivers launched past the cap must have been closed again.
	open := 0
	for _, d := range launcher.drivers {
		if !d.closed {
			open++
		}
	}
	if open != max {
		t.Errorf("%d drivers left open, want %d", open, max)
	}
}

func TestService_CapFreesAfterClose(t *testing.T) {
	svc, _ := newTestService(t, map[string]any{"max_sessions": 1})

	id := createSession(t, svc)
	svc.CallTool(context.Background(), "close_session", nil, id)

	createSession(t, svc)
}

func TestService_LaunchFailure(t *testing.T) {
	svc, launcher := newTestService(t, nil)
	launcher.launchErr = errors.New("no chromium available")

	result := svc.CallTool(context.Background(), "create_session", nil, "")
	if result["error"] != "no chromium available" {
		t.Errorf("error = %v, want launch failure message", result["error"])
	}
	if svc.SessionCount() != 0 {
		t.Errorf("SessionCount() = %d, want 0", svc.SessionCount())
	}
}

func TestService_RequiresSession(t *testing.T) {
	svc, _ := newTestService(t, nil)

	for _, tool := range []string{"navigate", "get_page_info", "find_elements", "click_element", "type_text", "take_screenshot", "close_session"} {
		t.Run(tool, func(t *testing.T) {
			result := svc.CallTool(context.Background(), tool, map[string]any{"url": "https://example.com", "selector": "a", "text": "x"}, "")
			if result["error"] != "No active session. Create a session first." {
				t.Errorf("error = %v, want no-active-session message", result["error"])
			}
		})
	}
}

func TestService_UnknownSessionID(t *testing.T) {
	svc, _ := newTestService(t, nil)

	result := svc.CallTool(context.Background(), "get_page_info", nil, "not-a-session")
	if result["error"] != "No active session. Create a session first." {
		t.Errorf("error = %v, want no-active-session message", result["error"])
	}
	if result["session_id"] != "not-a-session" {
		t.Errorf("session_id = %v, want echoed back", result["session_id"])
	}
}

func TestService_NavigateAndPageInfo(t *testing.T) {
	svc, _ := newTestService(t, nil)
	id := createSession(t, svc)

	result := svc.CallTool(context.Background(), "navigate", map[string]any{"url": "https://example.com"}, id)
	if result["status"] != "success" {
		t.Fatalf("navigate result = %v", result)
	}
	if result["url"] != "https://example.com" {
		t.Errorf("url = %v, want https://example.com", result["url"])
	}
	if result["title"] != "Example Domain" {
		t.Errorf("title = %v, want Example Domain", result["title"])
	}

	info := svc.CallTool(context.Background(), "get_page_info", nil, id)
	if info["url"] != "https://example.com" {
		t.Errorf("page info url = %v", info["url"])
	}
	if info["page_source_length"] != 1024 {
		t.Errorf("page_source_length = %v, want 1024", info["page_source_length"])
	}
}

func TestService_NavigateErrorPayload(t *testing.T) {
	svc, launcher := newTestService(t, nil)
	id := createSession(t, svc)
	launcher.drivers[0].failNav = errors.New("net::ERR_NAME_NOT_RESOLVED")

	result := svc.CallTool(context.Background(), "navigate", map[string]any{"url": "https://nope.invalid"}, id)
	if result["error"] != "net::ERR_NAME_NOT_RESOLVED" {
		t.Errorf("error = %v, want driver failure message", result["error"])
	}
}

func TestService_FindElements(t *testing.T) {
	svc, _ := newTestService(t, nil)
	id := createSession(t, svc)

	result := svc.CallTool(context.Background(), "find_elements", map[string]any{"selector": "a"}, id)
	elements, ok := result["elements"].([]Element)
	if !ok {
		t.Fatalf("elements missing from result: %v", result)
	}
	if len(elements) != 1 || elements[0].Tag != "a" {
		t.Errorf("elements = %v", elements)
	}
}

func TestService_SelectorKindValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	id := createSession(t, svc)

	// tag is valid for find but not for click
	result := svc.CallTool(context.Background(), "find_elements", map[string]any{"selector": "a", "by": "tag"}, id)
	if _, ok := result["error"]; ok {
		t.Errorf("find_elements by=tag should be allowed, got %v", result)
	}

	result = svc.CallTool(context.Background(), "click_element", map[string]any{"selector": "a", "by": "tag"}, id)
	if result["error"] != "Unsupported selector type: tag" {
		t.Errorf("click_element by=tag error = %v", result["error"])
	}

	result = svc.CallTool(context.Background(), "find_elements", map[string]any{"selector": "a", "by": "bogus"}, id)
	if result["error"] != "Unsupported selector type: bogus" {
		t.Errorf("find_elements by=bogus error = %v", result["error"])
	}
}

func TestService_ClickTypeScreenshot(t *testing.T) {
	svc, launcher := newTestService(t, nil)
	id := createSession(t, svc)
	svc.CallTool(context.Background(), "navigate", map[string]any{"url": "https://example.com"}, id)

	click := svc.CallTool(context.Background(), "click_element", map[string]any{"selector": "#go"}, id)
	if click["status"] != "success" || click["current_url"] != "https://example.com/clicked" {
		t.Errorf("click result = %v", click)
	}

	typed := svc.CallTool(context.Background(), "type_text", map[string]any{"selector": "#q", "text": "golang"}, id)
	if typed["status"] != "success" {
		t.Errorf("type_text result = %v", typed)
	}
	if launcher.drivers[0].lastTyped != "golang" {
		t.Errorf("driver saw typed text %q, want golang", launcher.drivers[0].lastTyped)
	}

	shot := svc.CallTool(context.Background(), "take_screenshot", nil, id)
	if shot["screenshot"] != "aGVsbG8=" || shot["format"] != "base64" {
		t.Errorf("screenshot result = %v", shot)
	}
}

func TestService_CloseSession(t *testing.T) {
	svc, launcher := newTestService(t, nil)
	id := createSession(t, svc)

	result := svc.CallTool(context.Background(), "close_session", nil, id)
	if result["status"] != "closed" || result["session_id"] != id {
		t.Errorf("close result = %v", result)
	}
	if !launcher.drivers[0].closed {
		t.Error("driver should be closed")
	}

	// The session is gone, so further calls hit the no-session path.
	again := svc.CallTool(context.Background(), "close_session", nil, id)
	if again["error"] != "No active session. Create a session first." {
		t.Errorf("second close error = %v", again["error"])
	}
}

func TestService_UnknownTool(t *testing.T) {
	svc, _ := newTestService(t, nil)
	id := createSession(t, svc)

	result := svc.CallTool(context.Background(), "teleport", nil, id)
	if result["error"] != "Unknown tool: teleport" {
		t.Errorf("error = %v, want unknown-tool message", result["error"])
	}
}

func TestService_StopClosesEverything(t *testing.T) {
	svc, launcher := newTestService(t, nil)
	for i := 0; i < 3; i++ {
		createSession(t, svc)
	}

	if err := svc.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if svc.Running() {
		t.Error("service should not be running after Stop")
	}
	if svc.SessionCount() != 0 {
		t.Errorf("SessionCount() = %d, want 0", svc.SessionCount())
	}
	for i, d := range launcher.drivers {
		if !d.closed {
			t.Errorf("driver %d should be closed", i)
		}
	}
	if launcher.shutdowns != 1 {
		t.Errorf("launcher shutdowns = %d, want 1", launcher.shutdowns)
	}
}

func TestService_ToolsListsAll(t *testing.T) {
	svc, _ := newTestService(t, nil)

	tools := svc.Tools()
	if len(tools) != 8 {
		t.Fatalf("Tools() returned %d tools, want 8", len(tools))
	}
	names := make(map[string]bool, len(tools))
	for _, tool := range tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"create_session", "navigate", "get_page_info", "find_elements", "click_element", "type_text", "take_screenshot", "close_session"} {
		if !names[want] {
			t.Errorf("Tools() missing %s", want)
		}
	}
}

func TestService_SessionIDsUnique(t *testing.T) {
	svc, _ := newTestService(t, map[string]any{"max_sessions": 10})

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		id := createSession(t, svc)
		if seen[id] {
			t.Fatalf("duplicate session id %s", id)
		}
		seen[id] = true
	}
}

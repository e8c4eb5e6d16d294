// ABOUTME: The browseruse tool service with session-scoped browser automation
// ABOUTME: Dispatches the eight browser tools against a bounded session registry

package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openmcp-ai/openmcp/internal/config"
	"github.com/openmcp-ai/openmcp/internal/service"
)

// ServiceName is the stable identifier of the browser automation service.
const ServiceName = "browseruse"

const (
	defaultHeadless    = true
	defaultTimeoutSecs = 30
	defaultMaxSessions = 5
)

var findSelectorKinds = map[string]bool{
	"css": true, "xpath": true, "id": true, "class": true, "tag": true, "name": true,
}

var actionSelectorKinds = map[string]bool{
	"css": true, "xpath": true, "id": true, "class": true,
}

// Service implements browser automation behind session-scoped tool calls.
// Every session owns its own browser instance; the service bounds how many
// can be live at once.
type Service struct {
	logger   *slog.Logger
	launcher Launcher

	headless    bool
	timeoutSecs int
	maxSessions int

	mu       sync.Mutex
	running  bool
	sessions map[string]*Session
}

// New creates the browseruse service backed by the Playwright runtime.
func New(cfg config.ServiceConfig, logger *slog.Logger) (*Service, error) {
	return NewWithLauncher(cfg, logger, NewRuntime())
}

// NewWithLauncher creates the service with a custom driver launcher.
func NewWithLauncher(cfg config.ServiceConfig, logger *slog.Logger, launcher Launcher) (*Service, error) {
	return &Service{
		logger:      logger,
		launcher:    launcher,
		headless:    cfg.Bool("headless", defaultHeadless),
		timeoutSecs: cfg.Int("timeout", defaultTimeoutSecs),
		maxSessions: cfg.Int("max_sessions", defaultMaxSessions),
		sessions:    make(map[string]*Session),
	}, nil
}

// Factory adapts New to the registry factory signature.
func Factory(cfg config.ServiceConfig, logger *slog.Logger) (service.Service, error) {
	return New(cfg, logger)
}

func (s *Service) Name() string { return ServiceName }

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("service %s already running", ServiceName)
	}
	s.running = true
	s.logger.Info("browseruse service started",
		"headless", s.headless,
		"timeout", s.timeoutSecs,
		"max_sessions", s.maxSessions,
	)
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.running = false
	s.mu.Unlock()

	for id, sess := range sessions {
		if err := sess.close(ctx); err != nil {
			s.logger.Error("closing session failed", "session_id", id, "error", err)
		}
	}

	if err := s.launcher.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down browser runtime: %w", err)
	}
	s.logger.Info("browseruse service stopped", "sessions_closed", len(sessions))
	return nil
}

func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SessionCount reports the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Service) Tools() []service.Tool {
	return []service.Tool{
		{
			Name:        "create_session",
			Description: "Create a new browser session",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"headless": map[string]any{
						"type":        "boolean",
						"description": "Run browser in headless mode",
						"default":     true,
					},
					"timeout": map[string]any{
						"type":        "integer",
						"description": "Default timeout in seconds",
						"default":     30,
					},
				},
			},
		},
		{
			Name:        "navigate",
			Description: "Navigate to a URL",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{
						"type":        "string",
						"description": "URL to navigate to",
					},
				},
				"required": []string{"url"},
			},
		},
		{
			Name:        "get_page_info",
			Description: "Get current page information",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "find_elements",
			Description: "Find elements on the page",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"selector": map[string]any{
						"type":        "string",
						"description": "CSS selector or XPath",
					},
					"by": map[string]any{
						"type":        "string",
						"description": "Selector type (css, xpath, id, class, tag, name)",
						"default":     "css",
					},
				},
				"required": []string{"selector"},
			},
		},
		{
			Name:        "click_element",
			Description: "Click an element",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"selector": map[string]any{
						"type":        "string",
						"description": "CSS selector or XPath",
					},
					"by": map[string]any{
						"type":        "string",
						"description": "Selector type (css, xpath, id, class)",
						"default":     "css",
					},
				},
				"required": []string{"selector"},
			},
		},
		{
			Name:        "type_text",
			Description: "Type text into an element",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"selector": map[string]any{
						"type":        "string",
						"description": "CSS selector or XPath",
					},
					"text": map[string]any{
						"type":        "string",
						"description": "Text to type",
					},
					"by": map[string]any{
						"type":        "string",
						"description": "Selector type (css, xpath, id, class)",
						"default":     "css",
					},
				},
				"required": []string{"selector", "text"},
			},
		},
		{
			Name:        "take_screenshot",
			Description: "Take a screenshot of the current page",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "close_session",
			Description: "Close a browser session",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}

func (s *Service) CallTool(ctx context.Context, tool string, args map[string]any, sessionID string) map[string]any {
	if tool == "create_session" {
		return s.createSession(ctx, args)
	}

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if sessionID == "" || !ok {
		return map[string]any{
			"error":      "No active session. Create a session first.",
			"session_id": sessionID,
		}
	}

	switch tool {
	case "navigate":
		return s.navigate(ctx, sess, args)
	case "get_page_info":
		return s.pageInfo(ctx, sess)
	case "find_elements":
		return s.findElements(ctx, sess, args)
	case "click_element":
		return s.clickElement(ctx, sess, args)
	case "type_text":
		return s.typeText(ctx, sess, args)
	case "take_screenshot":
		return s.screenshot(ctx, sess)
	case "close_session":
		return s.closeSession(ctx, sessionID)
	default:
		return service.UnknownToolResult(tool)
	}
}

func (s *Service) createSession(ctx context.Context, args map[string]any) map[string]any {
	s.mu.Lock()
	if len(s.sessions) >= s.maxSessions {
		max := s.maxSessions
		s.mu.Unlock()
		return service.ErrorResult(fmt.Sprintf("Maximum sessions (%d) reached", max))
	}
	s.mu.Unlock()

	headless := argBool(args, "headless", s.headless)
	timeout := argInt(args, "timeout", s.timeoutSecs)

	driver, err := s.launcher.Launch(ctx, LaunchOptions{
		Headless: headless,
		Timeout:  time.Duration(timeout) * time.Second,
	})
	if err != nil {
		s.logger.Error("launching browser failed", "error", err)
		return service.ErrorResult(err.Error())
	}

	id := uuid.New().String()
	sess := newSession(id, headless, timeout, driver)

	s.mu.Lock()
	if len(s.sessions) >= s.maxSessions {
		max := s.maxSessions
		s.mu.Unlock()
		_ = sess.close(ctx)
		return service.ErrorResult(fmt.Sprintf("Maximum sessions (%d) reached", max))
	}
	s.sessions[id] = sess
	s.mu.Unlock()

	s.logger.Info("browser session created", "session_id", id, "headless", headless, "timeout", timeout)
	return map[string]any{
		"session_id": id,
		"status":     "created",
		"headless":   headless,
		"timeout":    timeout,
	}
}

func (s *Service) closeSession(ctx context.Context, sessionID string) map[string]any {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	if !ok {
		return service.ErrorResult("Session not found")
	}
	if err := sess.close(ctx); err != nil {
		s.logger.Error("closing session failed", "session_id", sessionID, "error", err)
		return service.ErrorResult(err.Error())
	}

	s.logger.Info("browser session closed", "session_id", sessionID)
	return map[string]any{
		"session_id": sessionID,
		"status":     "closed",
	}
}

func (s *Service) navigate(ctx context.Context, sess *Session, args map[string]any) map[string]any {
	url, ok := args["url"].(string)
	if !ok || url == "" {
		return service.ErrorResult("url is required")
	}

	info, err := sess.navigate(ctx, url)
	if err != nil {
		return service.ErrorResult(err.Error())
	}
	return map[string]any{
		"url":    info.URL,
		"title":  info.Title,
		"status": "success",
	}
}

func (s *Service) pageInfo(ctx context.Context, sess *Session) map[string]any {
	info, err := sess.pageInfo(ctx)
	if err != nil {
		return service.ErrorResult(err.Error())
	}
	return map[string]any{
		"url":                info.URL,
		"title":              info.Title,
		"page_source_length": info.SourceLength,
	}
}

func (s *Service) findElements(ctx context.Context, sess *Session, args map[string]any) map[string]any {
	selector, ok := args["selector"].(string)
	if !ok || selector == "" {
		return service.ErrorResult("selector is required")
	}
	by := argString(args, "by", "css")
	if !findSelectorKinds[by] {
		return service.ErrorResult("Unsupported selector type: " + by)
	}

	elements, err := sess.findElements(ctx, selector, by)
	if err != nil {
		return service.ErrorResult(err.Error())
	}
	return map[string]any{"elements": elements}
}

func (s *Service) clickElement(ctx context.Context, sess *Session, args map[string]any) map[string]any {
	selector, ok := args["selector"].(string)
	if !ok || selector == "" {
		return service.ErrorResult("selector is required")
	}
	by := argString(args, "by", "css")
	if !actionSelectorKinds[by] {
		return service.ErrorResult("Unsupported selector type: " + by)
	}

	currentURL, err := sess.click(ctx, selector, by)
	if err != nil {
		return service.ErrorResult(err.Error())
	}
	return map[string]any{
		"status":      "success",
		"current_url": currentURL,
	}
}

func (s *Service) typeText(ctx context.Context, sess *Session, args map[string]any) map[string]any {
	selector, ok := args["selector"].(string)
	if !ok || selector == "" {
		return service.ErrorResult("selector is required")
	}
	text, ok := args["text"].(string)
	if !ok {
		return service.ErrorResult("text is required")
	}
	by := argString(args, "by", "css")
	if !actionSelectorKinds[by] {
		return service.ErrorResult("Unsupported selector type: " + by)
	}

	if err := sess.typeText(ctx, selector, text, by); err != nil {
		return service.ErrorResult(err.Error())
	}
	return map[string]any{"status": "success"}
}

func (s *Service) screenshot(ctx context.Context, sess *Session) map[string]any {
	shot, err := sess.screenshot(ctx)
	if err != nil {
		return service.ErrorResult(err.Error())
	}
	return map[string]any{
		"screenshot": shot,
		"format":     "base64",
	}
}

func argString(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

func argBool(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func argInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

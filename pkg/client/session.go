// ABOUTME: Browser session wrapper over the browseruse tool surface
// ABOUTME: Turns raw tool calls into Navigate, Click, Type, Find, and Screenshot methods

package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrSessionClosed is returned by session methods after Close.
var ErrSessionClosed = errors.New("session is closed")

// SessionOptions configure a new browser session.
type SessionOptions struct {
	Headless bool
	Timeout  int // seconds, 0 means the server default
}

// DefaultSessionOptions returns the options a fresh session gets when the
// caller has no preference: headless with a 30 second timeout.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{Headless: true, Timeout: 30}
}

// BrowserSession is one remote browser tab managed through the browseruse
// service. Methods fail with ErrSessionClosed after Close, and with a
// *ToolError when the server executed the tool but it failed.
type BrowserSession struct {
	client *Client
	id     string

	mu     sync.Mutex
	closed bool
}

// CreateSession opens a browser session on the server.
func (c *Client) CreateSession(ctx context.Context, opts SessionOptions) (*BrowserSession, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSessionOptions().Timeout
	}

	res, err := c.CallTool(ctx, "create_session", map[string]any{
		"headless": opts.Headless,
		"timeout":  opts.Timeout,
	}, "")
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, &ToolError{Tool: "create_session", Message: res.Error}
	}

	id, _ := res.Result["session_id"].(string)
	if id == "" {
		return nil, fmt.Errorf("server returned no session_id")
	}
	return &BrowserSession{client: c, id: id}, nil
}

// ID returns the server-side session identifier.
func (s *BrowserSession) ID() string {
	return s.id
}

// Navigate loads a URL in the session's browser.
func (s *BrowserSession) Navigate(ctx context.Context, url string) (map[string]any, error) {
	return s.call(ctx, "navigate", map[string]any{"url": url})
}

// Click clicks the first element matching the selector. An empty by means css.
func (s *BrowserSession) Click(ctx context.Context, selector, by string) (map[string]any, error) {
	return s.call(ctx, "click_element", map[string]any{
		"selector": selector,
		"by":       selectorKind(by),
	})
}

// Type enters text into the first element matching the selector.
func (s *BrowserSession) Type(ctx context.Context, selector, text, by string) (map[string]any, error) {
	return s.call(ctx, "type_text", map[string]any{
		"selector": selector,
		"text":     text,
		"by":       selectorKind(by),
	})
}

// Find returns the elements matching the selector.
func (s *BrowserSession) Find(ctx context.Context, selector, by string) ([]map[string]any, error) {
	result, err := s.call(ctx, "find_elements", map[string]any{
		"selector": selector,
		"by":       selectorKind(by),
	})
	if err != nil {
		return nil, err
	}

	raw, _ := result["elements"].([]any)
	elements := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			elements = append(elements, m)
		}
	}
	return elements, nil
}

// PageInfo reports the current URL, title, and page source length.
func (s *BrowserSession) PageInfo(ctx context.Context) (map[string]any, error) {
	return s.call(ctx, "get_page_info", nil)
}

// Screenshot captures the current page as PNG bytes.
func (s *BrowserSession) Screenshot(ctx context.Context) ([]byte, error) {
	result, err := s.call(ctx, "take_screenshot", nil)
	if err != nil {
		return nil, err
	}

	encoded, _ := result["screenshot"].(string)
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}
	return data, nil
}

// SaveScreenshot captures the current page and writes it to path.
func (s *BrowserSession) SaveScreenshot(ctx context.Context, path string) error {
	data, err := s.Screenshot(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing screenshot: %w", err)
	}
	return nil
}

// Close releases the server-side browser session. Closing twice is a no-op.
func (s *BrowserSession) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	res, err := s.client.CallTool(ctx, "close_session", nil, s.id)
	if err != nil {
		return err
	}
	if !res.Success {
		return &ToolError{Tool: "close_session", Message: res.Error}
	}
	return nil
}

func (s *BrowserSession) call(ctx context.Context, tool string, args map[string]any) (map[string]any, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrSessionClosed
	}

	res, err := s.client.CallTool(ctx, tool, args, s.id)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, &ToolError{Tool: tool, Message: res.Error}
	}
	return res.Result, nil
}

func selectorKind(by string) string {
	if by == "" {
		return "css"
	}
	return by
}

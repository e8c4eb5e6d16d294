// ABOUTME: Browser session wrapping one driver instance with its settings
// ABOUTME: Serializes driver access so concurrent tool calls cannot interleave

package browser

import (
	"context"
	"sync"
	"time"
)

// Session binds a session ID to a live browser driver. Driver access is
// serialized through the session mutex.
type Session struct {
	ID        string
	Headless  bool
	Timeout   int
	CreatedAt time.Time

	mu     sync.Mutex
	driver Driver
}

func newSession(id string, headless bool, timeout int, driver Driver) *Session {
	return &Session{
		ID:        id,
		Headless:  headless,
		Timeout:   timeout,
		CreatedAt: time.Now().UTC(),
		driver:    driver,
	}
}

func (s *Session) navigate(ctx context.Context, url string) (PageInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver.Navigate(ctx, url)
}

func (s *Session) pageInfo(ctx context.Context) (PageInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver.PageInfo(ctx)
}

func (s *Session) findElements(ctx context.Context, selector, by string) ([]Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver.FindElements(ctx, selector, by)
}

func (s *Session) click(ctx context.Context, selector, by string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver.Click(ctx, selector, by)
}

func (s *Session) typeText(ctx context.Context, selector, text, by string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver.TypeText(ctx, selector, text, by)
}

func (s *Session) screenshot(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver.Screenshot(ctx)
}

func (s *Session) close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver.Close(ctx)
}

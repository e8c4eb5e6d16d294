// ABOUTME: Browser driver abstraction for the browseruse service
// ABOUTME: Defines the Driver interface, element/page types, and launch options

package browser

import (
	"context"
	"time"
)

// Element is the wire representation of a located page element.
type Element struct {
	Tag        string            `json:"tag"`
	Text       string            `json:"text"`
	Attributes map[string]string `json:"attributes"`
}

// PageInfo is a snapshot of the driver's current page.
type PageInfo struct {
	URL          string
	Title        string
	SourceLength int
}

// LaunchOptions configures a new browser instance.
type LaunchOptions struct {
	Headless bool
	Timeout  time.Duration
}

// Driver abstracts one live browser instance. Implementations are not
// required to be safe for concurrent use; the owning session serializes
// access.
type Driver interface {
	// Navigate loads the URL and reports where the browser landed.
	Navigate(ctx context.Context, url string) (PageInfo, error)

	// PageInfo reports the current URL, title, and page source length.
	PageInfo(ctx context.Context) (PageInfo, error)

	// FindElements locates elements by selector. by is one of css, xpath,
	// id, class, tag, name.
	FindElements(ctx context.Context, selector, by string) ([]Element, error)

	// Click clicks the first element matching the selector and returns the
	// URL after the click. by is one of css, xpath, id, class.
	Click(ctx context.Context, selector, by string) (string, error)

	// TypeText clears the matched element and types text into it. by is one
	// of css, xpath, id, class.
	TypeText(ctx context.Context, selector, text, by string) error

	// Screenshot captures the current page as base64-encoded PNG.
	Screenshot(ctx context.Context) (string, error)

	// Close releases the browser instance.
	Close(ctx context.Context) error
}

// Launcher creates drivers. The playwright Runtime provides the production
// implementation; tests substitute their own.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Driver, error)
	Shutdown(ctx context.Context) error
}

// ABOUTME: Playwright-backed browser driver and runtime
// ABOUTME: Launches Chromium instances and translates selector kinds to Playwright selectors

package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
)

const (
	viewportWidth  = 1920
	viewportHeight = 1080
)

// Runtime owns the shared Playwright process. One Runtime backs every
// browser session; each Launch call gets its own Chromium instance.
type Runtime struct {
	mu sync.Mutex
	pw *playwright.Playwright
}

// NewRuntime creates a Runtime. The Playwright process starts lazily on the
// first Launch.
func NewRuntime() *Runtime {
	return &Runtime{}
}

func (rt *Runtime) ensureStarted() error {
	if rt.pw != nil {
		return nil
	}

	// Driver output would corrupt the structured log stream.
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("installing playwright: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("starting playwright: %w", err)
	}
	rt.pw = pw
	return nil
}

// Launch starts a Chromium instance and returns a Driver bound to a fresh
// browser context and page.
func (rt *Runtime) Launch(ctx context.Context, opts LaunchOptions) (Driver, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.ensureStarted(); err != nil {
		return nil, err
	}

	browser, err := rt.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: viewportWidth, Height: viewportHeight},
	})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("creating browser context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		_ = browserCtx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("creating page: %w", err)
	}

	if opts.Timeout > 0 {
		page.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))
	}

	return &playwrightDriver{browser: browser, browserCtx: browserCtx, page: page}, nil
}

// Shutdown stops the shared Playwright process.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.pw == nil {
		return nil
	}
	if err := rt.pw.Stop(); err != nil {
		return fmt.Errorf("stopping playwright: %w", err)
	}
	rt.pw = nil
	return nil
}

// playwrightDriver implements Driver on one Chromium instance.
type playwrightDriver struct {
	browser    playwright.Browser
	browserCtx playwright.BrowserContext
	page       playwright.Page
}

// mapSelector translates a selector kind into Playwright selector syntax.
func mapSelector(selector, by string) (string, error) {
	switch by {
	case "css":
		return selector, nil
	case "xpath":
		return "xpath=" + selector, nil
	case "id":
		return "#" + selector, nil
	case "class":
		return "." + selector, nil
	case "tag":
		return selector, nil
	case "name":
		return fmt.Sprintf("[name=%q]", selector), nil
	default:
		return "", fmt.Errorf("unsupported selector type: %s", by)
	}
}

func (d *playwrightDriver) Navigate(ctx context.Context, url string) (PageInfo, error) {
	if _, err := d.page.Goto(url); err != nil {
		return PageInfo{}, fmt.Errorf("navigation failed: %w", err)
	}
	title, err := d.page.Title()
	if err != nil {
		return PageInfo{}, fmt.Errorf("reading title: %w", err)
	}
	return PageInfo{URL: d.page.URL(), Title: title}, nil
}

func (d *playwrightDriver) PageInfo(ctx context.Context) (PageInfo, error) {
	title, err := d.page.Title()
	if err != nil {
		return PageInfo{}, fmt.Errorf("reading title: %w", err)
	}
	content, err := d.page.Content()
	if err != nil {
		return PageInfo{}, fmt.Errorf("reading page source: %w", err)
	}
	return PageInfo{URL: d.page.URL(), Title: title, SourceLength: len(content)}, nil
}

func (d *playwrightDriver) FindElements(ctx context.Context, selector, by string) ([]Element, error) {
	mapped, err := mapSelector(selector, by)
	if err != nil {
		return nil, err
	}

	handles, err := d.page.QuerySelectorAll(mapped)
	if err != nil {
		return nil, fmt.Errorf("querying elements: %w", err)
	}

	elements := make([]Element, 0, len(handles))
	for _, h := range handles {
		var tag string
		if v, err := h.Evaluate("el => el.tagName.toLowerCase()"); err == nil {
			tag, _ = v.(string)
		}
		text, _ := h.TextContent()

		attrs := make(map[string]string, 3)
		for _, name := range []string{"id", "class", "href"} {
			if v, err := h.GetAttribute(name); err == nil {
				attrs[name] = v
			}
		}

		elements = append(elements, Element{Tag: tag, Text: text, Attributes: attrs})
	}
	return elements, nil
}

func (d *playwrightDriver) Click(ctx context.Context, selector, by string) (string, error) {
	mapped, err := mapSelector(selector, by)
	if err != nil {
		return "", err
	}
	if err := d.page.Click(mapped); err != nil {
		return "", fmt.Errorf("click failed: %w", err)
	}
	return d.page.URL(), nil
}

func (d *playwrightDriver) TypeText(ctx context.Context, selector, text, by string) error {
	mapped, err := mapSelector(selector, by)
	if err != nil {
		return err
	}
	if err := d.page.Fill(mapped, text); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	return nil
}

func (d *playwrightDriver) Screenshot(ctx context.Context) (string, error) {
	data, err := d.page.Screenshot()
	if err != nil {
		return "", fmt.Errorf("screenshot failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (d *playwrightDriver) Close(ctx context.Context) error {
	_ = d.page.Close()
	_ = d.browserCtx.Close()
	if err := d.browser.Close(); err != nil {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}

// ABOUTME: The web_crawler tool service for fetching and cleaning webpages
// ABOUTME: Dispatches the crawl_page tool with size limits and browser-like headers

package webcrawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/openmcp-ai/openmcp/internal/config"
	"github.com/openmcp-ai/openmcp/internal/service"
)

// ServiceName is the stable identifier of the web crawler service.
const ServiceName = "web_crawler"

const (
	defaultTimeoutSecs      = 30
	defaultMaxContentLength = 1 << 20
)

// defaultHeaders make requests look like an ordinary browser visit arriving
// from a search result.
var defaultHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Referer":                   "https://www.google.com/",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// Service implements webpage crawling and content extraction. The service is
// stateless; session IDs are ignored.
type Service struct {
	logger           *slog.Logger
	httpClient       *http.Client
	maxContentLength int

	mu      sync.Mutex
	running bool
}

// New creates the web crawler service.
func New(cfg config.ServiceConfig, logger *slog.Logger) (*Service, error) {
	timeout := cfg.Int("timeout", defaultTimeoutSecs)
	return &Service{
		logger:           logger,
		httpClient:       &http.Client{Timeout: time.Duration(timeout) * time.Second},
		maxContentLength: cfg.Int("max_content_length", defaultMaxContentLength),
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
	s.logger.Info("web crawler service started")
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.logger.Info("web crawler service stopped")
	return nil
}

func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Service) Tools() []service.Tool {
	return []service.Tool{
		{
			Name:        "crawl_page",
			Description: "Crawl and extract content from a webpage, cleaning up JavaScript and non-content elements",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{
						"type":        "string",
						"description": "URL of the webpage to crawl",
					},
					"extract_links": map[string]any{
						"type":        "boolean",
						"description": "Whether to extract links from the page",
						"default":     false,
					},
					"extract_images": map[string]any{
						"type":        "boolean",
						"description": "Whether to extract image URLs from the page",
						"default":     false,
					},
					"extract_metadata": map[string]any{
						"type":        "boolean",
						"description": "Whether to extract page metadata (title, description, etc.)",
						"default":     true,
					},
					"clean_html": map[string]any{
						"type":        "boolean",
						"description": "Whether to return cleaned HTML instead of plain text",
						"default":     false,
					},
					"custom_headers": map[string]any{
						"type":        "object",
						"description": "Custom headers to use for the request",
						"default":     map[string]any{},
					},
				},
				"required": []string{"url"},
			},
		},
	}
}

func (s *Service) CallTool(ctx context.Context, tool string, args map[string]any, sessionID string) map[string]any {
	if tool != "crawl_page" {
		return service.UnknownToolResult(tool)
	}
	return s.crawlPage(ctx, args)
}

func (s *Service) crawlPage(ctx context.Context, args map[string]any) map[string]any {
	rawURL, ok := args["url"].(string)
	if !ok || !isValidURL(rawURL) {
		return service.ErrorResult("Invalid URL provided")
	}

	extractLinksArg := boolArg(args, "extract_links", false)
	extractImagesArg := boolArg(args, "extract_images", false)
	extractMetadataArg := boolArg(args, "extract_metadata", true)
	cleanHTMLArg := boolArg(args, "clean_html", false)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fetchFailure(rawURL, err)
	}
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}
	if custom, ok := args["custom_headers"].(map[string]any); ok {
		for k, v := range custom {
			if sv, ok := v.(string); ok {
				req.Header.Set(k, sv)
			}
		}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fetchFailure(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fetchFailure(rawURL, fmt.Errorf("status %d", resp.StatusCode))
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.Atoi(cl); err == nil && n > s.maxContentLength {
			return service.ErrorResult(fmt.Sprintf("Content too large: %s bytes", cl))
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(s.maxContentLength)))
	if err != nil {
		return fetchFailure(rawURL, err)
	}
	content := string(body)

	doc, err := parseHTML(content)
	if err != nil {
		return processFailure(rawURL, err)
	}

	finalURL := resp.Request.URL
	result := map[string]any{
		"url":            finalURL.String(),
		"status_code":    resp.StatusCode,
		"content_type":   resp.Header.Get("Content-Type"),
		"content_length": len(content),
		"status":         "success",
	}

	// Metadata is read before stripping mutates the tree.
	if extractMetadataArg {
		result["metadata"] = extractMetadata(doc)
	}

	stripNonContent(doc)

	if cleanHTMLArg {
		cleaned, err := extractCleanHTML(doc)
		if err != nil {
			return processFailure(rawURL, err)
		}
		result["content"] = cleaned
		result["content_type_returned"] = "html"
	} else {
		result["content"] = extractText(doc)
		result["content_type_returned"] = "text"
	}

	if extractLinksArg {
		result["links"] = extractLinks(doc, finalURL)
	}
	if extractImagesArg {
		result["images"] = extractImages(doc, finalURL)
	}

	s.logger.Info("crawled page", "url", finalURL.String(), "bytes", len(content))
	return result
}

func isValidURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	return err == nil && parsed.Scheme != "" && parsed.Host != ""
}

func fetchFailure(url string, err error) map[string]any {
	return map[string]any{
		"error":  "Failed to fetch webpage: " + err.Error(),
		"status": "failed",
		"url":    url,
	}
}

func processFailure(url string, err error) map[string]any {
	return map[string]any{
		"error":  "Failed to process webpage: " + err.Error(),
		"status": "failed",
		"url":    url,
	}
}

func boolArg(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

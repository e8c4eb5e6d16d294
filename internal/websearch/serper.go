// ABOUTME: HTTP client for the Serper Google search API
// ABOUTME: Posts JSON queries per search type and decodes the raw response

package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://google.serper.dev"

var endpoints = map[string]string{
	"search":   "/search",
	"images":   "/images",
	"news":     "/news",
	"shopping": "/shopping",
	"places":   "/places",
}

// serperClient talks to the Serper API. One instance is shared by all
// web_search calls.
type serperClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func newSerperClient(apiKey, baseURL string) *serperClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &serperClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// search runs one query against the endpoint for searchType and returns the
// decoded response body.
func (c *serperClient) search(ctx context.Context, searchType, query string, numResults int, country, language string) (map[string]any, error) {
	endpoint, ok := endpoints[searchType]
	if !ok {
		return nil, fmt.Errorf("invalid search type: %s", searchType)
	}

	payload, err := json.Marshal(map[string]any{
		"q":   query,
		"num": numResults,
		"gl":  country,
		"hl":  language,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed: status %d", resp.StatusCode)
	}

	var results map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	return results, nil
}

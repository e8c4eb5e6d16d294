// ABOUTME: HTTP client for the openmcp tool API
// ABOUTME: Wraps tool calls, tool listing, and health checks for one service

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultBaseURL is where a locally running openmcp server listens.
const DefaultBaseURL = "http://localhost:9000"

const (
	callTimeout  = 60 * time.Second
	queryTimeout = 30 * time.Second
)

// ErrNoAPIKey is returned by New when no key was passed and none could be
// found in the environment.
var ErrNoAPIKey = errors.New("no API key provided: pass one to New, set OPENMCP_API_KEY, or run 'openmcp create-key'")

// ToolError reports a tool call that the server executed but that failed.
// Transport failures (bad status codes, network errors) are plain errors.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Tool, e.Message)
}

// Tool describes one callable tool as reported by the server.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// CallResult is the server's answer to a tool call. Success is false when the
// tool itself failed; Error then carries the message.
type CallResult struct {
	Success   bool           `json:"success"`
	Result    map[string]any `json:"result"`
	SessionID string         `json:"session_id"`
	Error     string         `json:"error"`
}

// Client talks to one service on an openmcp server.
type Client struct {
	service    string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New builds a client for the named service. An empty apiKey falls back to
// the OPENMCP_API_KEY environment variable; an empty baseURL falls back to
// DefaultBaseURL.
func New(service, apiKey, baseURL string) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENMCP_API_KEY")
	}
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		service:    service,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: callTimeout},
	}, nil
}

// Service returns the service name this client is bound to.
func (c *Client) Service() string {
	return c.service
}

// CallTool invokes a tool and returns the server's result envelope. A tool
// failure is reported inside the envelope, not as a Go error; the error
// return covers transport and decoding problems only.
func (c *Client) CallTool(ctx context.Context, tool string, args map[string]any, sessionID string) (*CallResult, error) {
	body, err := json.Marshal(map[string]any{
		"tool_name":  tool,
		"arguments":  args,
		"session_id": sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/services/%s/call", c.baseURL, c.service)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", tool, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpStatusError(resp)
	}

	var result CallResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &result, nil
}

// ListTools fetches the tool catalog for this client's service.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	url := fmt.Sprintf("%s/api/v1/services/%s/tools", c.baseURL, c.service)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpStatusError(resp)
	}

	var payload struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return payload.Tools, nil
}

// Health checks the server's unauthenticated health endpoint.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check failed: HTTP %d", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return payload, nil
}

func httpStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, text)
}

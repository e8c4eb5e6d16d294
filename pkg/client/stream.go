// ABOUTME: SSE consumer for the streaming tool call endpoint
// ABOUTME: Decodes result and error events into CallResult values

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tmaxmax/go-sse"
)

// StreamEvent is one server-sent event from the streaming tool endpoint.
// Type is "result" on success and "error" when the tool failed.
type StreamEvent struct {
	Type string
	Call CallResult
}

// StreamTool invokes a tool over the SSE endpoint and hands each event to
// handle. It returns when the stream ends, handle returns an error, or the
// context is cancelled.
func (c *Client) StreamTool(ctx context.Context, tool string, args map[string]any, sessionID string, handle func(StreamEvent) error) error {
	q := url.Values{}
	q.Set("tool_name", tool)
	if sessionID != "" {
		q.Set("session_id", sessionID)
	}
	if len(args) > 0 {
		encoded, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("encoding arguments: %w", err)
		}
		q.Set("arguments", string(encoded))
	}

	endpoint := fmt.Sprintf("%s/api/v1/services/%s/call/stream?%s", c.baseURL, c.service, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("streaming %s: %w", tool, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httpStatusError(resp)
	}

	for ev, err := range sse.Read(resp.Body, nil) {
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading stream: %w", err)
		}

		var call CallResult
		if err := json.Unmarshal([]byte(ev.Data), &call); err != nil {
			return fmt.Errorf("decoding stream event: %w", err)
		}

		if err := handle(StreamEvent{Type: ev.Type, Call: call}); err != nil {
			return err
		}
	}
	return nil
}

// ABOUTME: Core service abstraction for openmcp tool services
// ABOUTME: Defines the Service interface, tool descriptors, and result helpers

package service

import (
	"context"
)

// Tool describes a single callable tool exposed by a service. Parameters
// follows the JSON Schema object convention used by MCP tool listings.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Service is implemented by every tool service (browser automation, web
// search, web crawling). A service owns its lifecycle and dispatches tool
// calls by name.
//
// CallTool never returns a Go error for tool-level failures: failures are
// reported inside the result map under the "error" key so callers can relay
// them to clients verbatim. Only the transport and lookup layers above use
// error returns.
type Service interface {
	// Name returns the stable service identifier, e.g. "browseruse".
	Name() string

	// Start brings the service up. Calling Start on a running service is
	// an error.
	Start(ctx context.Context) error

	// Stop tears the service down, releasing all resources and sessions.
	// Stop on a stopped service is a no-op.
	Stop(ctx context.Context) error

	// Running reports whether the service is currently started.
	Running() bool

	// Tools lists the tools this service dispatches.
	Tools() []Tool

	// CallTool executes a named tool with the given arguments. sessionID
	// scopes the call for stateful services; stateless services ignore it.
	CallTool(ctx context.Context, tool string, args map[string]any, sessionID string) map[string]any
}

// ErrorResult builds the conventional tool-failure payload.
func ErrorResult(msg string) map[string]any {
	return map[string]any{"error": msg}
}

// UnknownToolResult builds the failure payload for a tool name the service
// does not dispatch.
func UnknownToolResult(tool string) map[string]any {
	return ErrorResult("Unknown tool: " + tool)
}

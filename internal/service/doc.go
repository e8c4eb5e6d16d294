// Package service defines the tool service abstraction and its registry.
//
// A Service groups related tools under a stable name and owns their
// lifecycle. The Registry maps configuration blocks to factories, starts and
// stops services, and resolves tool calls to the owning service. Tool-level
// failures travel inside result maps under the "error" key rather than as Go
// errors; only lookup and lifecycle failures use error returns.
package service

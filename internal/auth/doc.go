// Package auth implements authentication and authorization for openmcp.
//
// # Overview
//
// The Manager owns the in-memory API key store and is the sole authority on
// whether a request may proceed and against which service. Keys are opaque
// "bmcp_"-prefixed tokens with a per-service permission map, an optional
// expiry, and an active flag. Revocation flips the flag; keys are never
// deleted from the store.
//
// # Localhost Bypass
//
// When allow_localhost is enabled and a request arrives from a loopback or
// private transport peer address with no bearer token, the Manager
// synthesizes a transient full-access key instead of consulting the store.
// The decision is made on the connection's peer address only, never on
// client-supplied headers like X-Forwarded-For.
//
// # Error Taxonomy
//
// Validation failures (unknown, inactive, expired credentials) wrap
// ErrUnauthorized. Permission failures are reported by handlers as
// ErrForbidden so callers can distinguish identity failures from grant
// failures.
//
// # JWT Helper
//
// CreateAccessToken/VerifyToken provide an optional HS256 JWT credential
// mechanism layered alongside API keys. The tool-call path does not require
// it.
package auth

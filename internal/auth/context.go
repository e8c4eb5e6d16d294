// ABOUTME: Request context plumbing for the authenticated API key
// ABOUTME: Provides WithKey/FromContext for propagating the credential to handlers

package auth

import (
	"context"
)

// keyContextKey is the key type for storing the APIKey in context.Context.
type keyContextKey struct{}

// WithKey returns a new context with the authenticated APIKey attached.
func WithKey(ctx context.Context, key *APIKey) context.Context {
	return context.WithValue(ctx, keyContextKey{}, key)
}

// FromContext retrieves the APIKey from the context, returning nil if not present.
func FromContext(ctx context.Context) *APIKey {
	val := ctx.Value(keyContextKey{})
	if val == nil {
		return nil
	}
	key, ok := val.(*APIKey)
	if !ok {
		return nil
	}
	return key
}

// MustFromContext retrieves the APIKey from the context, panicking if not present.
// Only for handlers that are guaranteed to run behind the auth middleware.
func MustFromContext(ctx context.Context) *APIKey {
	key := FromContext(ctx)
	if key == nil {
		panic("auth: APIKey not found in context")
	}
	return key
}

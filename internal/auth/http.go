// ABOUTME: HTTP middleware for API key authentication on the openmcp API
// ABOUTME: Extracts bearer tokens, applies the localhost bypass, and stores the key in context

package auth

import (
	"net/http"
	"strings"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// An absent header returns an empty token with no error message; a malformed
// one returns an error message. The bypass policy decides what an empty token
// means based on the peer address.
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", ""
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// Middleware creates an HTTP middleware that authenticates every request via
// the Manager. Authenticated requests carry their APIKey in the request
// context; failures terminate with 401 before reaching the handler.
// Permission checks against a specific service are the handler's job.
func Middleware(m *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				writeAuthError(w, http.StatusUnauthorized, errMsg)
				return
			}

			key, err := m.Authorize(token, r.RemoteAddr)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithKey(r.Context(), key)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

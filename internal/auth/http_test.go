// ABOUTME: Tests for the HTTP authentication middleware
// ABOUTME: Exercises bearer extraction, the localhost bypass, and context propagation

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantToken string
		wantErr   string
	}{
		{
			name: "absent header",
		},
		{
			name:      "well formed",
			header:    "Bearer bmcp_abc",
			wantToken: "bmcp_abc",
		},
		{
			name:    "wrong scheme",
			header:  "Basic dXNlcjpwYXNz",
			wantErr: "invalid authorization header format",
		},
		{
			name:    "empty token",
			header:  "Bearer ",
			wantErr: "empty token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, errMsg := extractBearerToken(tt.header)
			if token != tt.wantToken {
				t.Errorf("token = %q, want %q", token, tt.wantToken)
			}
			if errMsg != tt.wantErr {
				t.Errorf("errMsg = %q, want %q", errMsg, tt.wantErr)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	m := newTestManager(t)
	token := m.CreateKey("mw", 0, nil)

	var seenKey *APIKey
	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenKey = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		authHeader string
		remoteAddr string
		wantStatus int
		wantName   string
	}{
		{
			name:       "valid key from remote",
			authHeader: "Bearer " + token,
			remoteAddr: "203.0.113.7:4000",
			wantStatus: http.StatusOK,
			wantName:   "mw",
		},
		{
			name:       "no header from localhost bypasses",
			remoteAddr: "127.0.0.1:4000",
			wantStatus: http.StatusOK,
			wantName:   "localhost",
		},
		{
			name:       "no header from remote rejected",
			remoteAddr: "203.0.113.7:4000",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header rejected",
			authHeader: "Token abc",
			remoteAddr: "127.0.0.1:4000",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown key rejected",
			authHeader: "Bearer bmcp_bogus",
			remoteAddr: "203.0.113.7:4000",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenKey = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
					t.Errorf("error Content-Type = %q, want application/json", ct)
				}
				if !strings.Contains(rec.Body.String(), "error") {
					t.Errorf("error body %q should carry an error field", rec.Body.String())
				}
				return
			}
			if seenKey == nil {
				t.Fatal("handler should see an APIKey in context")
			}
			if seenKey.Name != tt.wantName {
				t.Errorf("key name = %q, want %q", seenKey.Name, tt.wantName)
			}
		})
	}
}

func TestMustFromContext_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustFromContext should panic without an APIKey")
		}
	}()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	MustFromContext(req.Context())
}

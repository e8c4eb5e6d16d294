// ABOUTME: Unit tests for the web search service against a stub Serper server
// ABOUTME: Covers request shape, result formatting per search type, and error payloads

package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openmcp-ai/openmcp/internal/config"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := New(config.ServiceConfig{
		Name: ServiceName,
		Config: map[string]any{
			"serper_api_key": "test-key",
			"base_url":       srv.URL,
		},
	}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return svc
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Setenv("SERPER_API_KEY", "")

	_, err := New(config.ServiceConfig{Name: ServiceName}, slog.New(slog.DiscardHandler))
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("New() without key error = %v, want ErrMissingAPIKey", err)
	}
}

func TestNew_APIKeyFromEnv(t *testing.T) {
	t.Setenv("SERPER_API_KEY", "env-key")

	svc, err := New(config.ServiceConfig{Name: ServiceName}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if svc.client.apiKey != "env-key" {
		t.Errorf("apiKey = %q, want env-key", svc.client.apiKey)
	}
}

func TestService_SearchRequestShape(t *testing.T) {
	var gotPath, gotAPIKey string
	var gotPayload map[string]any

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-API-KEY")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_ = json.NewEncoder(w).Encode(map[string]any{"organic": []any{}})
	})

	result := svc.CallTool(context.Background(), "web_search", map[string]any{
		"query":       "golang testing",
		"num_results": 5,
		"country":     "uk",
		"language":    "en",
	}, "")

	if result["status"] != "success" {
		t.Fatalf("result = %v", result)
	}
	if gotPath != "/search" {
		t.Errorf("path = %q, want /search", gotPath)
	}
	if gotAPIKey != "test-key" {
		t.Errorf("X-API-KEY = %q, want test-key", gotAPIKey)
	}
	if gotPayload["q"] != "golang testing" {
		t.Errorf("payload q = %v", gotPayload["q"])
	}
	if gotPayload["num"] != float64(5) {
		t.Errorf("payload num = %v, want 5", gotPayload["num"])
	}
	if gotPayload["gl"] != "uk" {
		t.Errorf("payload gl = %v, want uk", gotPayload["gl"])
	}
}

func TestService_SearchTypeEndpoints(t *testing.T) {
	var gotPath string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{})
	})

	tests := []struct {
		searchType string
		wantPath   string
	}{
		{"search", "/search"},
		{"images", "/images"},
		{"news", "/news"},
		{"shopping", "/shopping"},
		{"places", "/places"},
	}

	for _, tt := range tests {
		t.Run(tt.searchType, func(t *testing.T) {
			result := svc.CallTool(context.Background(), "web_search", map[string]any{
				"query":       "x",
				"search_type": tt.searchType,
			}, "")
			if result["status"] != "success" {
				t.Fatalf("result = %v", result)
			}
			if gotPath != tt.wantPath {
				t.Errorf("path = %q, want %q", gotPath, tt.wantPath)
			}
		})
	}
}

func TestService_InvalidSearchType(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called for an invalid search type")
	})

	result := svc.CallTool(context.Background(), "web_search", map[string]any{
		"query":       "x",
		"search_type": "videos",
	}, "")
	if result["error"] != "Invalid search type: videos" {
		t.Errorf("error = %v", result["error"])
	}
}

func TestService_FormatsOrganicResults(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"searchParameters": map[string]any{"q": "go"},
			"organic": []any{
				map[string]any{"title": "The Go Programming Language", "link": "https://go.dev", "snippet": "Go is fun"},
				map[string]any{"title": "Go Wiki", "link": "https://go.dev/wiki", "snippet": "wiki", "sitelinks": []any{map[string]any{"title": "FAQ"}}},
			},
			"knowledgeGraph": map[string]any{"title": "Go"},
			"credits":        float64(2),
		})
	})

	result := svc.CallTool(context.Background(), "web_search", map[string]any{"query": "go"}, "")
	if result["credits_used"] != float64(2) {
		t.Errorf("credits_used = %v, want 2", result["credits_used"])
	}

	formatted, ok := result["formatted_results"].(map[string]any)
	if !ok {
		t.Fatalf("formatted_results missing: %v", result)
	}
	if formatted["total_results"] != 2 {
		t.Errorf("total_results = %v, want 2", formatted["total_results"])
	}
	entries, ok := formatted["formatted_results"].([]map[string]any)
	if !ok || len(entries) != 2 {
		t.Fatalf("entries = %v", formatted["formatted_results"])
	}
	if entries[0]["rank"] != 1 || entries[0]["title"] != "The Go Programming Language" {
		t.Errorf("first entry = %v", entries[0])
	}
	if _, ok := entries[0]["sitelinks"]; ok {
		t.Error("first entry should not carry sitelinks")
	}
	if _, ok := entries[1]["sitelinks"]; !ok {
		t.Error("second entry should carry sitelinks")
	}
	if _, ok := formatted["knowledge_graph"]; !ok {
		t.Error("formatted results should carry knowledge_graph")
	}
}

func TestService_FormatsNewsResults(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"news": []any{
				map[string]any{"title": "Go 1.26 released", "link": "https://go.dev/blog", "source": "go.dev", "date": "today"},
			},
		})
	})

	result := svc.CallTool(context.Background(), "web_search", map[string]any{
		"query":       "go release",
		"search_type": "news",
	}, "")

	formatted := result["formatted_results"].(map[string]any)
	entries := formatted["formatted_results"].([]map[string]any)
	if len(entries) != 1 {
		t.Fatalf("entries = %v", entries)
	}
	if entries[0]["source"] != "go.dev" || entries[0]["date"] != "today" {
		t.Errorf("entry = %v", entries[0])
	}
}

func TestService_ClampsNumResults(t *testing.T) {
	var gotNum float64
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		gotNum = payload["num"].(float64)
		_ = json.NewEncoder(w).Encode(map[string]any{})
	})

	svc.CallTool(context.Background(), "web_search", map[string]any{"query": "x", "num_results": 500}, "")
	if gotNum != 100 {
		t.Errorf("num = %v, want clamped to 100", gotNum)
	}

	svc.CallTool(context.Background(), "web_search", map[string]any{"query": "x", "num_results": -3}, "")
	if gotNum != 1 {
		t.Errorf("num = %v, want clamped to 1", gotNum)
	}
}

func TestService_UpstreamFailure(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	})

	result := svc.CallTool(context.Background(), "web_search", map[string]any{"query": "x"}, "")
	if result["status"] != "failed" {
		t.Errorf("status = %v, want failed", result["status"])
	}
	if _, ok := result["error"]; !ok {
		t.Error("result should carry an error")
	}
}

func TestService_MissingQuery(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called without a query")
	})

	result := svc.CallTool(context.Background(), "web_search", nil, "")
	if result["error"] != "query is required" {
		t.Errorf("error = %v", result["error"])
	}
}

func TestService_UnknownTool(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {})

	result := svc.CallTool(context.Background(), "image_search", nil, "")
	if result["error"] != "Unknown tool: image_search" {
		t.Errorf("error = %v", result["error"])
	}
}

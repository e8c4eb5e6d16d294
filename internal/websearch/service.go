// ABOUTME: The web_search tool service backed by the Serper API
// ABOUTME: Dispatches the web_search tool and formats results per search type

package websearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/openmcp-ai/openmcp/internal/config"
	"github.com/openmcp-ai/openmcp/internal/service"
)

// ServiceName is the stable identifier of the web search service.
const ServiceName = "web_search"

// ErrMissingAPIKey indicates no Serper API key was configured.
var ErrMissingAPIKey = errors.New("SERPER_API_KEY not found in config or environment variables")

const (
	defaultNumResults = 10
	maxNumResults     = 100
)

// Service implements Google search through the Serper API. The service is
// stateless; session IDs are ignored.
type Service struct {
	logger *slog.Logger
	client *serperClient

	mu      sync.Mutex
	running bool
}

// New creates the web search service. The API key comes from the service
// config block or the SERPER_API_KEY environment variable.
func New(cfg config.ServiceConfig, logger *slog.Logger) (*Service, error) {
	apiKey := cfg.String("serper_api_key", os.Getenv("SERPER_API_KEY"))
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &Service{
		logger: logger,
		client: newSerperClient(apiKey, cfg.String("base_url", "")),
	}, nil
}

// Factory adapts New to the registry factory signature.
func Factory(cfg config.ServiceConfig, logger *slog.Logger) (service.Service, error) {
	return New(cfg, logger)
}

func (s *Service) Name() string { return ServiceName }

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("service %s already running", ServiceName)
	}
	s.running = true
	s.logger.Info("web search service started")
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.logger.Info("web search service stopped")
	return nil
}

func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Service) Tools() []service.Tool {
	return []service.Tool{
		{
			Name:        "web_search",
			Description: "Search Google using Serper API",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search query",
					},
					"num_results": map[string]any{
						"type":        "integer",
						"description": "Number of results to return (default: 10, max: 100)",
						"default":     10,
						"minimum":     1,
						"maximum":     100,
					},
					"search_type": map[string]any{
						"type":        "string",
						"description": "Type of search (search, images, news, shopping, places)",
						"enum":        []string{"search", "images", "news", "shopping", "places"},
						"default":     "search",
					},
					"country": map[string]any{
						"type":        "string",
						"description": "Country code for localized results (e.g., 'us', 'uk', 'ca')",
						"default":     "us",
					},
					"language": map[string]any{
						"type":        "string",
						"description": "Language code for results (e.g., 'en', 'es', 'fr')",
						"default":     "en",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

func (s *Service) CallTool(ctx context.Context, tool string, args map[string]any, sessionID string) map[string]any {
	if tool != "web_search" {
		return service.UnknownToolResult(tool)
	}
	return s.search(ctx, args)
}

func (s *Service) search(ctx context.Context, args map[string]any) map[string]any {
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return service.ErrorResult("query is required")
	}

	numResults := intArg(args, "num_results", defaultNumResults)
	if numResults < 1 {
		numResults = 1
	}
	if numResults > maxNumResults {
		numResults = maxNumResults
	}
	searchType := stringArg(args, "search_type", "search")
	country := stringArg(args, "country", "us")
	language := stringArg(args, "language", "en")

	if _, ok := endpoints[searchType]; !ok {
		return service.ErrorResult("Invalid search type: " + searchType)
	}

	results, err := s.client.search(ctx, searchType, query, numResults, country, language)
	if err != nil {
		s.logger.Error("search failed", "query", query, "search_type", searchType, "error", err)
		return map[string]any{
			"error":  err.Error(),
			"status": "failed",
		}
	}

	creditsUsed := any(1)
	if v, ok := results["credits"]; ok {
		creditsUsed = v
	}

	return map[string]any{
		"status":            "success",
		"query":             query,
		"search_type":       searchType,
		"results":           results,
		"formatted_results": formatResults(results, searchType),
		"credits_used":      creditsUsed,
	}
}

// formatResults reshapes the raw Serper response into ranked entries keyed
// by the fields each search type provides.
func formatResults(results map[string]any, searchType string) map[string]any {
	formatted := map[string]any{
		"search_parameters": mapField(results, "searchParameters"),
		"total_results":     0,
		"formatted_results": []map[string]any{},
	}

	switch searchType {
	case "search":
		organic := listField(results, "organic")
		formatted["total_results"] = len(organic)
		entries := make([]map[string]any, 0, len(organic))
		for i, item := range organic {
			entry := map[string]any{
				"rank":    i + 1,
				"title":   strField(item, "title"),
				"link":    strField(item, "link"),
				"snippet": strField(item, "snippet"),
				"date":    strField(item, "date"),
			}
			if sitelinks, ok := item["sitelinks"]; ok {
				entry["sitelinks"] = sitelinks
			}
			entries = append(entries, entry)
		}
		formatted["formatted_results"] = entries

		for raw, key := range map[string]string{
			"knowledgeGraph":  "knowledge_graph",
			"peopleAlsoAsk":   "people_also_ask",
			"relatedSearches": "related_searches",
		} {
			if v, ok := results[raw]; ok {
				formatted[key] = v
			}
		}

	case "images":
		images := listField(results, "images")
		formatted["total_results"] = len(images)
		entries := make([]map[string]any, 0, len(images))
		for i, item := range images {
			entries = append(entries, map[string]any{
				"rank":       i + 1,
				"title":      strField(item, "title"),
				"image_url":  strField(item, "imageUrl"),
				"source_url": strField(item, "link"),
				"source":     strField(item, "source"),
				"width":      anyField(item, "imageWidth"),
				"height":     anyField(item, "imageHeight"),
			})
		}
		formatted["formatted_results"] = entries

	case "news":
		news := listField(results, "news")
		formatted["total_results"] = len(news)
		entries := make([]map[string]any, 0, len(news))
		for i, item := range news {
			entries = append(entries, map[string]any{
				"rank":      i + 1,
				"title":     strField(item, "title"),
				"link":      strField(item, "link"),
				"snippet":   strField(item, "snippet"),
				"date":      strField(item, "date"),
				"source":    strField(item, "source"),
				"image_url": strField(item, "imageUrl"),
			})
		}
		formatted["formatted_results"] = entries

	case "shopping":
		shopping := listField(results, "shopping")
		formatted["total_results"] = len(shopping)
		entries := make([]map[string]any, 0, len(shopping))
		for i, item := range shopping {
			entries = append(entries, map[string]any{
				"rank":      i + 1,
				"title":     strField(item, "title"),
				"link":      strField(item, "link"),
				"price":     anyField(item, "price"),
				"source":    strField(item, "source"),
				"rating":    anyField(item, "rating"),
				"reviews":   anyField(item, "ratingCount"),
				"image_url": strField(item, "imageUrl"),
			})
		}
		formatted["formatted_results"] = entries

	case "places":
		places := listField(results, "places")
		formatted["total_results"] = len(places)
		entries := make([]map[string]any, 0, len(places))
		for i, item := range places {
			entries = append(entries, map[string]any{
				"rank":      i + 1,
				"title":     strField(item, "title"),
				"address":   strField(item, "address"),
				"phone":     strField(item, "phoneNumber"),
				"website":   strField(item, "website"),
				"rating":    anyField(item, "rating"),
				"reviews":   anyField(item, "ratingCount"),
				"category":  strField(item, "category"),
				"latitude":  anyField(item, "latitude"),
				"longitude": anyField(item, "longitude"),
			})
		}
		formatted["formatted_results"] = entries
	}

	return formatted
}

func listField(m map[string]any, key string) []map[string]any {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	items := make([]map[string]any, 0, len(raw))
	for _, v := range raw {
		if item, ok := v.(map[string]any); ok {
			items = append(items, item)
		}
	}
	return items
}

func mapField(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}

func strField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func anyField(m map[string]any, key string) any {
	if v, ok := m[key]; ok {
		return v
	}
	return ""
}

func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

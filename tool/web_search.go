package tool

import (
	"fmt"
	"strings"

	bravesearch "github.com/cnosuke/go-brave-search"

	"github.com/hupe1980/agentpipe/core"
)

// WebSearchTool performs web searches through the Brave Search API.
type WebSearchTool struct {
	client *bravesearch.Client
}

// NewWebSearchTool constructs a web search tool using the given Brave API key.
func NewWebSearchTool(apiKey string) (*WebSearchTool, error) {
	client, err := bravesearch.NewClient(apiKey)
	if err != nil {
		return nil, fmt.Errorf("create brave client: %w", err)
	}
	return &WebSearchTool{client: client}, nil
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web for current information. Returns titles, URLs and snippets for the top results."
}

func (t *WebSearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query",
			},
			"count": map[string]any{
				"type":        "integer",
				"description": "Number of results to return (default 5, max 20)",
			},
		},
		"required": []string{"query"},
	}
}

func (t *WebSearchTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, fmt.Errorf("missing required field 'query'")
	}

	count := 5
	if c, ok := args["count"].(float64); ok && c > 0 {
		count = int(c)
	}
	if count > 20 {
		count = 20
	}

	resp, err := t.client.WebSearch(toolCtx.Context(), query, &bravesearch.WebSearchParams{
		Count: count,
	})
	if err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}

	webResults := resp.GetWebResults()
	if len(webResults) == 0 {
		return map[string]any{"query": query, "count": 0, "results": "No results found."}, nil
	}

	var b strings.Builder
	for i, r := range webResults {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		fmt.Fprintf(&b, "%s\n%s\n%s", r.Title, r.URL, r.Description)
	}

	return map[string]any{
		"query":   query,
		"count":   len(webResults),
		"results": b.String(),
	}, nil
}

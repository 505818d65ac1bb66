package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino-ext/components/tool/googlesearch"
	"github.com/cloudwego/eino/components/tool"
)

// ToolProvider adapts an eino search tool to Provider.
type ToolProvider struct {
	name string
	tool tool.InvokableTool
	// sendCount adds "num" to the tool arguments; DuckDuckGo takes it at construction.
	sendCount bool
}

type toolSearchParams struct {
	Query string `json:"query"`
	Num   int    `json:"num,omitempty"`
}

// NewToolProvider wraps an already constructed eino tool.
func NewToolProvider(name string, t tool.InvokableTool, sendCount bool) *ToolProvider {
	return &ToolProvider{name: name, tool: t, sendCount: sendCount}
}

// NewGoogle builds the Google Custom Search tool.
func NewGoogle(ctx context.Context, apiKey, engineID string, count int) (*ToolProvider, error) {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(engineID) == "" {
		return nil, errors.New("google: missing GOOGLE_API_KEY or GOOGLE_SEARCH_ENGINE_ID")
	}
	googleTool, err := googlesearch.NewTool(ctx, &googlesearch.Config{
		ToolName:       "web_search_google",
		ToolDesc:       "Google Search Tool",
		APIKey:         apiKey,
		SearchEngineID: engineID,
		Lang:           "en",
		Num:            count,
	})
	if err != nil {
		return nil, fmt.Errorf("google: init tool: %w", err)
	}
	return NewToolProvider("google", googleTool, true), nil
}

// NewDuckDuckGo builds the DuckDuckGo text search tool; it needs no token.
func NewDuckDuckGo(ctx context.Context, count int, timeout time.Duration) (*ToolProvider, error) {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	duckTool, err := duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
		ToolName:   "web_search_ddg",
		ToolDesc:   "DuckDuckGo Search Tool (no token required)",
		MaxResults: count,
		Region:     duckduckgo.RegionWT,
		Timeout:    timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: init tool: %w", err)
	}
	return NewToolProvider("duckduckgo", duckTool, false), nil
}

func (p *ToolProvider) Name() string {
	return p.name
}

func (p *ToolProvider) Search(ctx context.Context, req Request) (*Result, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	params := toolSearchParams{Query: query}
	if p.sendCount {
		params.Num = req.Count
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal search params: %w", err)
	}
	out, err := p.tool.InvokableRun(ctx, string(payload))
	if err != nil {
		return nil, fmt.Errorf("%s search failed: %w", p.name, err)
	}
	return &Result{Provider: p.name, Web: rawJSON(out)}, nil
}

var _ Provider = (*ToolProvider)(nil)

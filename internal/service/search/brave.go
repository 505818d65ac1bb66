package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBraveEndpoint = "https://api.search.brave.com/res/v1/web/search"
	DefaultHTTPTimeout   = 10 * time.Second

	maxBraveBody = 2 << 20
)

// Brave queries the Brave Web Search API. Requests are never retried.
type Brave struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// BraveOption customizes a Brave provider.
type BraveOption func(*Brave)

// WithBraveEndpoint overrides the API endpoint.
func WithBraveEndpoint(endpoint string) BraveOption {
	return func(b *Brave) {
		if endpoint != "" {
			b.endpoint = endpoint
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) BraveOption {
	return func(b *Brave) {
		if client != nil {
			b.client = client
		}
	}
}

// NewBrave constructs a Brave search provider. The API key is required.
func NewBrave(apiKey string, opts ...BraveOption) (*Brave, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("brave: API key is missing")
	}
	b := &Brave{
		apiKey:   apiKey,
		endpoint: DefaultBraveEndpoint,
		client:   &http.Client{Timeout: DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Brave) Name() string {
	return "brave"
}

// Search issues one request and returns the raw "web" section of the response.
func (b *Brave) Search(ctx context.Context, req Request) (*Result, error) {
	endpoint, err := url.Parse(b.endpoint)
	if err != nil {
		return nil, fmt.Errorf("brave: invalid endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("q", req.Query)
	if req.Count > 0 {
		q.Set("count", strconv.Itoa(req.Count))
	}
	endpoint.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("brave: create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("brave: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBraveBody))
	if err != nil {
		return nil, fmt.Errorf("brave: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Web json.RawMessage `json:"web"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("brave: parse response: %w", err)
	}
	if len(payload.Web) == 0 {
		return nil, errors.New("brave: response has no web section")
	}
	if !req.Raw {
		web, err := trimBraveWeb(payload.Web)
		if err != nil {
			return nil, err
		}
		payload.Web = web
	}
	return &Result{Provider: b.Name(), Web: payload.Web}, nil
}

// trimBraveWeb reduces the web section to title/url/description triples.
func trimBraveWeb(web json.RawMessage) (json.RawMessage, error) {
	if len(web) == 0 {
		return web, nil
	}
	var section struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	}
	if err := json.Unmarshal(web, &section); err != nil {
		return nil, fmt.Errorf("brave: parse web results: %w", err)
	}
	out, err := json.Marshal(section)
	if err != nil {
		return nil, fmt.Errorf("brave: encode web results: %w", err)
	}
	return out, nil
}

var _ Provider = (*Brave)(nil)

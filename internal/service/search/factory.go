package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"aumchat/internal/config"
	"aumchat/internal/redis"
)

// NewFromConfig builds the configured provider chain. It returns a nil Provider
// when search is disabled ("none"). rdb is only used when the cache is enabled.
func NewFromConfig(ctx context.Context, cfg config.SearchConfig, rdb *redis.Client, logger zerolog.Logger) (Provider, error) {
	primary := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if primary == "" || primary == "none" {
		return nil, nil
	}
	names := append([]string{primary}, cfg.Fallbacks...)
	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		p, err := newProvider(ctx, strings.ToLower(strings.TrimSpace(name)), cfg)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	provider := NewFallback(logger, providers...)
	if cfg.Cache.Enabled {
		if rdb == nil {
			return nil, fmt.Errorf("search cache enabled but no redis client")
		}
		provider = NewCached(provider, rdb, cfg.Cache.TTL, logger)
	}
	return provider, nil
}

func newProvider(ctx context.Context, name string, cfg config.SearchConfig) (Provider, error) {
	switch name {
	case "brave":
		opts := []BraveOption{WithBraveEndpoint(cfg.Brave.Endpoint)}
		if cfg.Timeout > 0 {
			opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
		}
		return NewBrave(cfg.Brave.APIKey, opts...)
	case "google":
		return NewGoogle(ctx, cfg.Google.APIKey, cfg.Google.SearchEngineID, cfg.Count)
	case "duckduckgo", "ddg":
		return NewDuckDuckGo(ctx, cfg.Count, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", name)
	}
}

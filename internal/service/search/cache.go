package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"aumchat/internal/redis"
)

const DefaultCacheTTL = 30 * time.Minute

// Cached stores successful results in Redis. Cache failures never fail a search.
type Cached struct {
	next   Provider
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCached wraps next with a Redis-backed result cache.
func NewCached(next Provider, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *Cached) Name() string {
	return c.next.Name()
}

func (c *Cached) Search(ctx context.Context, req Request) (*Result, error) {
	key := cacheKey(c.next.Name(), req)
	if raw, err := c.client.Get(ctx, key); err == nil {
		var res Result
		if err := json.Unmarshal([]byte(raw), &res); err == nil {
			c.logger.Debug().Str("key", key).Msg("search cache hit")
			return &res, nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding undecodable search cache entry")
	} else if !errors.Is(err, redis.ErrCacheMiss) {
		c.logger.Warn().Err(err).Msg("search cache read failed")
	}

	res, err := c.next.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(res); err != nil {
		c.logger.Warn().Err(err).Msg("search cache encode failed")
	} else if err := c.client.Set(ctx, key, encoded, c.ttl); err != nil {
		c.logger.Warn().Err(err).Msg("search cache write failed")
	}
	return res, nil
}

// Invalidate drops the cached result for req.
func (c *Cached) Invalidate(ctx context.Context, req Request) error {
	return c.client.Del(ctx, cacheKey(c.next.Name(), req))
}

func cacheKey(provider string, req Request) string {
	sum := sha256.Sum256([]byte(req.Query))
	return fmt.Sprintf("search:%s:%d:%t:%s", provider, req.Count, req.Raw, hex.EncodeToString(sum[:]))
}

package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JuanR0/biblio/internal/cache"
	"github.com/JuanR0/biblio/internal/observability"
)

// ResponseCache stores answers keyed by the normalized question. Answers
// are deterministic for a given knowledge set, so the key needs nothing
// else; KeyPrefix should change when the knowledge files do.
type ResponseCache struct {
	client cache.Client
	logger *observability.Logger
	config ResponseCacheConfig
}

// ResponseCacheConfig configures the response cache.
type ResponseCacheConfig struct {
	TTL       time.Duration
	KeyPrefix string
	Enabled   bool
}

// DefaultResponseCacheConfig returns the default cache configuration.
func DefaultResponseCacheConfig() ResponseCacheConfig {
	return ResponseCacheConfig{
		TTL:       10 * time.Minute,
		KeyPrefix: "answer:",
		Enabled:   true,
	}
}

// NewResponseCache creates a response cache over client.
func NewResponseCache(client cache.Client, logger *observability.Logger, config ResponseCacheConfig) *ResponseCache {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "answer:"
	}
	if config.TTL <= 0 {
		config.TTL = 10 * time.Minute
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &ResponseCache{client: client, logger: logger, config: config}
}

type cachedResult struct {
	Result   MatchResult `json:"result"`
	CachedAt time.Time   `json:"cached_at"`
}

// Key returns the cache key of a normalized question.
func (c *ResponseCache) Key(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return c.config.KeyPrefix + hex.EncodeToString(sum[:16])
}

// Enabled reports whether the cache is active.
func (c *ResponseCache) Enabled() bool {
	return c != nil && c.config.Enabled && c.client != nil
}

// Get returns the cached answer for a normalized question.
func (c *ResponseCache) Get(ctx context.Context, normalized string) (MatchResult, bool) {
	if !c.Enabled() {
		return MatchResult{}, false
	}

	key := c.Key(normalized)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Debug().Err(err).Str("key", key).Msg("Cache get error")
		}
		return MatchResult{}, false
	}

	var cached cachedResult
	if err := json.Unmarshal(data, &cached); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to unmarshal cached answer")
		return MatchResult{}, false
	}
	return cached.Result, true
}

// Set stores the answer for a normalized question.
func (c *ResponseCache) Set(ctx context.Context, normalized string, res MatchResult) error {
	if !c.Enabled() {
		return nil
	}

	data, err := json.Marshal(cachedResult{Result: res, CachedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	key := c.Key(normalized)
	if err := c.client.Set(ctx, key, data, c.config.TTL); err != nil {
		return fmt.Errorf("cache answer: %w", err)
	}
	c.logger.Debug().Str("key", key).Dur("ttl", c.config.TTL).Msg("Cached answer")
	return nil
}

// Invalidate drops every cached answer.
func (c *ResponseCache) Invalidate(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	c.logger.Info().Str("prefix", c.config.KeyPrefix).Msg("Invalidating cached answers")
	return c.client.DeleteByPrefix(ctx, c.config.KeyPrefix)
}

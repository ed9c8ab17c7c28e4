// Package cache provides an optional redis-backed cache of rewrite
// results keyed by prompt and context.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/rewriter/internal/metrics"
)

// Config holds redis connection configuration.
type Config struct {
	URL      string
	Password string
	TTL      time.Duration
}

// Cache wraps redis operations for rewrite results. Any redis failure
// is treated as a miss so the cache can never fail a request.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

// New creates a cache client and verifies connectivity.
func New(cfg Config, log *slog.Logger) (*Cache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cache{rdb: rdb, ttl: cfg.TTL, log: log}, nil
}

// Close closes the redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

func resultKey(prompt, contextText string) string {
	sum := sha256.Sum256([]byte(prompt + "\x00" + contextText))
	return fmt.Sprintf("rewrite:%x", sum)
}

// Get looks up a cached rewrite result.
func (c *Cache) Get(ctx context.Context, prompt, contextText string) (string, bool) {
	val, err := c.rdb.Get(ctx, resultKey(prompt, contextText)).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug("cache get failed", "error", err)
		}
		metrics.CacheMisses.Inc()
		return "", false
	}
	metrics.CacheHits.Inc()
	return val, true
}

// Set stores a rewrite result with the configured TTL.
func (c *Cache) Set(ctx context.Context, prompt, contextText, result string) {
	if err := c.rdb.Set(ctx, resultKey(prompt, contextText), result, c.ttl).Err(); err != nil {
		c.log.Debug("cache set failed", "error", err)
	}
}

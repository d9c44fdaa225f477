// Package rediscache provides a Redis-backed template cache shared by
// all promptgate instances pointing at the same Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rezoom-ai/promptgate/internal/core/domain"
)

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Entries live in a single hash so Clear is one DEL instead of a scan.
const cacheKey = "prompt_cache"

// Cache stores resolved templates in Redis. Redis failures degrade to
// cache misses rather than failing the lookup: the store can always
// re-resolve from the repository.
type Cache struct {
	rdb *redis.Client
	log *slog.Logger
}

// New creates a Cache and verifies connectivity.
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

	if log == nil {
		log = slog.Default()
	}
	return &Cache{rdb: rdb, log: log}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

func (c *Cache) Get(ctx context.Context, key string) (*domain.PromptTemplate, bool) {
	raw, err := c.rdb.HGet(ctx, cacheKey, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("redis cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var t domain.PromptTemplate
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		c.log.Warn("redis cache entry is corrupt", "key", key, "error", err)
		return nil, false
	}
	return &t, true
}

func (c *Cache) Set(ctx context.Context, key string, t *domain.PromptTemplate) {
	raw, err := json.Marshal(t)
	if err != nil {
		c.log.Warn("failed to marshal template for cache", "key", key, "error", err)
		return
	}
	if err := c.rdb.HSet(ctx, cacheKey, key, raw).Err(); err != nil {
		c.log.Warn("redis cache write failed", "key", key, "error", err)
	}
}

func (c *Cache) Clear(ctx context.Context) {
	if err := c.rdb.Del(ctx, cacheKey).Err(); err != nil {
		c.log.Warn("redis cache clear failed", "error", err)
	}
}

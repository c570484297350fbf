package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/idus-tools/product-translator/internal/config"
	"github.com/idus-tools/product-translator/internal/models"
)

const keyPrefix = "product:"

// ResultCache keeps scraped records in Redis for a bounded TTL so repeated
// requests for the same listing skip the browser pipeline. A nil ResultCache
// is valid and behaves as a permanent miss, which keeps the service free of
// persisted state when Redis is not configured.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New connects to Redis and verifies the connection. Returns (nil, nil) when
// no address is configured.
func New(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (*ResultCache, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &ResultCache{
		client: client,
		ttl:    cfg.TTL,
		logger: logger.With("component", "cache"),
	}, nil
}

// Get returns the cached record for a product URL, or (nil, nil) on a miss.
func (c *ResultCache) Get(ctx context.Context, url string) (*models.ProductRecord, error) {
	if c == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, keyPrefix+url).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}

	var record models.ProductRecord
	if err := json.Unmarshal(data, &record); err != nil {
		// A corrupt entry is treated as a miss; the next Set overwrites it.
		c.logger.Warn("dropping corrupt cache entry", "url", url, "error", err)
		return nil, nil
	}
	return &record, nil
}

// Set stores a record under its product URL for the configured TTL.
func (c *ResultCache) Set(ctx context.Context, url string, record *models.ProductRecord) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := c.client.Set(ctx, keyPrefix+url, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *ResultCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

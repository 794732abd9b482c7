// Package redis provides a RateCache shared between planner processes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
	"github.com/tjfontaine/polyglot-trip-planner/internal/pkg/config"
)

// DefaultPrefix namespaces rate keys.
const DefaultPrefix = "trip:rate:"

// Cache stores the last good rate per pair as a JSON string. Redis SET is
// atomic, so readers see either the old or the new entry.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.RateCache = (*Cache)(nil)

// New wraps an existing client. Entries expire after ttl; zero keeps them
// forever.
func New(client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *Cache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

// Connect dials redis from configuration and verifies the connection.
func Connect(ctx context.Context, cfg config.RedisConfig, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	return New(client, cfg.Prefix, ttl, logger), nil
}

func (c *Cache) key(from, to string) string {
	return c.prefix + from + "/" + to
}

// Get implements ports.RateCache. Redis errors are logged and reported as
// a miss.
func (c *Cache) Get(ctx context.Context, from, to string) (ports.CachedRate, bool) {
	data, err := c.client.Get(ctx, c.key(from, to)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ports.CachedRate{}, false
	}
	if err != nil {
		c.logger.Warn("rate cache read failed",
			slog.String("pair", from+"/"+to),
			slog.String("error", err.Error()))
		return ports.CachedRate{}, false
	}

	var rate ports.CachedRate
	if err := json.Unmarshal(data, &rate); err != nil {
		c.logger.Warn("rate cache entry corrupt",
			slog.String("pair", from+"/"+to),
			slog.String("error", err.Error()))
		return ports.CachedRate{}, false
	}
	return rate, true
}

// Put implements ports.RateCache.
func (c *Cache) Put(ctx context.Context, from, to string, rate ports.CachedRate) error {
	data, err := json.Marshal(rate)
	if err != nil {
		return fmt.Errorf("encode rate: %w", err)
	}
	if err := c.client.Set(ctx, c.key(from, to), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("store rate %s/%s: %w", from, to, err)
	}
	return nil
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

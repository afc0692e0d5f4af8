// Package cache keeps the active reward config in Redis so spins don't hit
// Postgres for it on every request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
)

// DefaultTTL bounds how long another instance may serve a replaced config.
const DefaultTTL = 5 * time.Minute

const activeConfigKey = "reward:config:active"

// Client is the subset of *redis.Client the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// ConfigCache stores the active RewardConfig as JSON.
type ConfigCache struct {
	client Client
	ttl    time.Duration
}

// NewConfigCache creates a ConfigCache. A non-positive ttl means DefaultTTL.
func NewConfigCache(client Client, ttl time.Duration) *ConfigCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ConfigCache{client: client, ttl: ttl}
}

// Get returns the cached config, or nil, nil on a miss.
func (c *ConfigCache) Get(ctx context.Context) (*model.RewardConfig, error) {
	raw, err := c.client.Get(ctx, activeConfigKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached config: %w", err)
	}

	var cfg model.RewardConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode cached config: %w", err)
	}
	return &cfg, nil
}

// Set caches cfg for the configured TTL.
func (c *ConfigCache) Set(ctx context.Context, cfg *model.RewardConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := c.client.Set(ctx, activeConfigKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached config: %w", err)
	}
	return nil
}

// Invalidate drops the cached config.
func (c *ConfigCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, activeConfigKey).Err(); err != nil {
		return fmt.Errorf("invalidate cached config: %w", err)
	}
	return nil
}

// NewRedisClient connects to addr and pings it.
func NewRedisClient(ctx context.Context, addr, username, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Username:    username,
		Password:    password,
		DB:          db,
		MaxRetries:  5,
		DialTimeout: 10 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

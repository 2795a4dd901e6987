package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// Cache is a namespaced key-value cache on Redis.
type Cache struct {
	client      *redis.Client
	serviceName string
}

// NewCache wraps an existing go-redis client.
func NewCache(client *redis.Client, serviceName string) *Cache {
	return &Cache{
		client:      client,
		serviceName: serviceName,
	}
}

// MustNewCache connects to redis.addr and pings it.
func MustNewCache(serviceName string) *Cache {
	addr := viper.GetString("redis.addr")
	if addr == "" {
		addr = "redis:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		panic(fmt.Sprintf("Failed to connect to Redis: %v", err))
	}

	slog.Info("Redis connected", "addr", addr)

	return NewCache(client, serviceName)
}

// Set stores value under key for ttl.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Get returns "" without error when key is missing.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	return val, nil
}

// GenerateKey builds "<service>:<operation>:<key>".
func (c *Cache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", c.serviceName, operation, key)
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

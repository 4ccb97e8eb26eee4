package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"query-insights/internal/domain"
)

// Redis stores query results in Redis with an expiry.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ domain.ResultCache = (*Redis)(nil)

// NewRedis creates a Redis-backed cache. A zero ttl keeps entries until they
// are overwritten.
func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}

// Get returns the cached results, or an empty result set on a miss.
func (c *Redis) Get(ctx context.Context, queryID string) (*domain.ResultSet, error) {
	data, err := c.client.Get(ctx, Key(queryID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &domain.ResultSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", queryID, err)
	}
	return decode(data)
}

// Set replaces the cached results of a query and refreshes its expiry.
func (c *Redis) Set(ctx context.Context, queryID string, results *domain.ResultSet) error {
	data, err := encode(results)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, Key(queryID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", queryID, err)
	}
	return nil
}

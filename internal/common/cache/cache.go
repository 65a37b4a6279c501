package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"reward-giveaway-backend/internal/platform/redis"
)

// CacheService fronts the redis read-side cache for display-level reporting.
// Cached reads are deliberately not synchronized with in-flight writes.
type CacheService struct {
	client *redis.Client
}

func NewCacheService(client *redis.Client) *CacheService {
	return &CacheService{client: client}
}

func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (c *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.client.Set(ctx, key, string(data), ttl).Err()
}

func (c *CacheService) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// GetOrSet loads key into dest, calling setter and caching its result on a
// miss.
func (c *CacheService) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, setter func() (interface{}, error)) error {
	if err := c.Get(ctx, key, dest); err == nil {
		return nil
	}

	value, err := setter()
	if err != nil {
		return err
	}

	if err := c.Set(ctx, key, value, ttl); err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// InvalidateGiveaway drops the cached reporting keys of one giveaway type.
func (c *CacheService) InvalidateGiveaway(ctx context.Context, giveawayType string) error {
	keys := []string{
		fmt.Sprintf("stats:%s", giveawayType),
		fmt.Sprintf("winners:%s", giveawayType),
	}
	return c.client.Del(ctx, keys...).Err()
}

// InvalidateUser drops a user's cached stats.
func (c *CacheService) InvalidateUser(ctx context.Context, userID int64) error {
	return c.client.Del(ctx, fmt.Sprintf("user_stats:%d", userID)).Err()
}

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

type Cache interface {
	Get(ctx context.Context, id uuid.UUID) (*Dish, bool, error)
	Set(ctx context.Context, dish *Dish) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}

type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: client, TTL: ttl}
}

func (c *RedisCache) key(id uuid.UUID) string {
	return "dish:" + id.String()
}

func (c *RedisCache) Get(ctx context.Context, id uuid.UUID) (*Dish, bool, error) {
	raw, err := c.Client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: failed to get dish %s: %w", id, err)
	}

	var dish Dish
	if err := json.Unmarshal(raw, &dish); err != nil {
		return nil, false, fmt.Errorf("cache: corrupted entry for dish %s: %w", id, err)
	}

	return &dish, true, nil
}

func (c *RedisCache) Set(ctx context.Context, dish *Dish) error {
	payload, err := json.Marshal(dish)
	if err != nil {
		return fmt.Errorf("cache: failed to encode dish %s: %w", dish.ID, err)
	}

	if err := c.Client.Set(ctx, c.key(dish.ID), payload, c.TTL).Err(); err != nil {
		return fmt.Errorf("cache: failed to set dish %s: %w", dish.ID, err)
	}

	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	if err := c.Client.Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("cache: failed to invalidate dish %s: %w", id, err)
	}
	return nil
}

// NopCache is used when no Redis address is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, uuid.UUID) (*Dish, bool, error) { return nil, false, nil }
func (NopCache) Set(context.Context, *Dish) error                     { return nil }
func (NopCache) Invalidate(context.Context, uuid.UUID) error          { return nil }

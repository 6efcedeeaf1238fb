package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/quorasec/iamcore/internal/domain"
	"github.com/quorasec/iamcore/internal/ports"
)

const permissionKeyPrefix = "iam:perm:"

// RedisPermissionCache memoizes resolved permission sets. TTL bounds how long
// a stale grant can survive a missed invalidation.
type RedisPermissionCache struct {
	client *redis.Client
}

func NewRedisPermissionCache(client *redis.Client) *RedisPermissionCache {
	return &RedisPermissionCache{client: client}
}

func (c *RedisPermissionCache) Get(ctx context.Context, principalID uuid.UUID) (*domain.PermissionSet, error) {
	raw, err := c.client.Get(ctx, permissionKeyPrefix+principalID.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("permission cache read: %w", err)
	}
	var set domain.PermissionSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("permission cache decode: %w", err)
	}
	return &set, nil
}

func (c *RedisPermissionCache) Put(ctx context.Context, principalID uuid.UUID, set domain.PermissionSet, ttl time.Duration) error {
	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("permission cache encode: %w", err)
	}
	if err := c.client.Set(ctx, permissionKeyPrefix+principalID.String(), payload, ttl).Err(); err != nil {
		return fmt.Errorf("permission cache write: %w", err)
	}
	return nil
}

func (c *RedisPermissionCache) Invalidate(ctx context.Context, principalID uuid.UUID) error {
	if err := c.client.Del(ctx, permissionKeyPrefix+principalID.String()).Err(); err != nil {
		return fmt.Errorf("permission cache invalidate: %w", err)
	}
	return nil
}

// InvalidateAll is used when a role or group definition changes and the set
// of affected principals is unknown.
func (c *RedisPermissionCache) InvalidateAll(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, permissionKeyPrefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("permission cache flush: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("permission cache scan: %w", err)
	}
	return nil
}

var _ ports.PermissionCache = (*RedisPermissionCache)(nil)

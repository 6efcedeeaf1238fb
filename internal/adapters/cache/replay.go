package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quorasec/iamcore/internal/ports"
)

const replayKeyPrefix = "iam:replay:"

// RedisReplayGuard records one-time use of short-lived values via SETNX.
type RedisReplayGuard struct {
	client *redis.Client
}

func NewRedisReplayGuard(client *redis.Client) *RedisReplayGuard {
	return &RedisReplayGuard{client: client}
}

func (g *RedisReplayGuard) FirstUse(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, replayKeyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("replay guard: %w", err)
	}
	return ok, nil
}

var _ ports.ReplayGuard = (*RedisReplayGuard)(nil)

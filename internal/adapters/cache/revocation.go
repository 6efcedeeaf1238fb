package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/quorasec/iamcore/internal/ports"
)

const revocationKeyPrefix = "iam:session:revoked:"

// RedisRevocationStore keeps session revocation markers that live exactly as
// long as the longest outstanding token for that session could.
type RedisRevocationStore struct {
	client *redis.Client
}

func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

func (s *RedisRevocationStore) MarkRevoked(ctx context.Context, sessionID uuid.UUID, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Token already expired; the session record alone is authoritative.
		return nil
	}
	if err := s.client.Set(ctx, revocationKeyPrefix+sessionID.String(), "1", ttl).Err(); err != nil {
		return fmt.Errorf("mark revoked: %w", err)
	}
	return nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	n, err := s.client.Exists(ctx, revocationKeyPrefix+sessionID.String()).Result()
	if err != nil {
		return false, fmt.Errorf("revocation check: %w", err)
	}
	return n > 0, nil
}

var _ ports.SessionRevocationStore = (*RedisRevocationStore)(nil)

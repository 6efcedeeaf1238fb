package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quorasec/iamcore/internal/ports"
)

const challengeKeyPrefix = "iam:mfa:challenge:"

// RedisChallengeStore holds pending MFA challenges keyed by hashed challenge
// token. Expiry is enforced by Redis TTL; Get never returns a stale entry.
type RedisChallengeStore struct {
	client *redis.Client
}

func NewRedisChallengeStore(client *redis.Client) *RedisChallengeStore {
	return &RedisChallengeStore{client: client}
}

func (s *RedisChallengeStore) Put(ctx context.Context, token string, challenge ports.MFAChallenge, ttl time.Duration) error {
	payload, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	if err := s.client.Set(ctx, challengeKeyPrefix+token, payload, ttl).Err(); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	return nil
}

func (s *RedisChallengeStore) Get(ctx context.Context, token string) (*ports.MFAChallenge, error) {
	raw, err := s.client.Get(ctx, challengeKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	var challenge ports.MFAChallenge
	if err := json.Unmarshal(raw, &challenge); err != nil {
		return nil, fmt.Errorf("unmarshal challenge: %w", err)
	}
	return &challenge, nil
}

func (s *RedisChallengeStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, challengeKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}

var _ ports.MFAChallengeStore = (*RedisChallengeStore)(nil)

package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/quorasec/iamcore/internal/domain"
	"github.com/quorasec/iamcore/internal/ports"
)

const (
	lockoutKeyPrefix = "iam:lockout:"

	lockoutFieldCount        = "failed_count"
	lockoutFieldFirstFailure = "first_failure_at"
	lockoutFieldLockedUntil  = "locked_until"
)

// recordFailureScript applies one failed attempt atomically: reset the
// counter when the sliding window has elapsed, increment otherwise, and set
// locked_until when the threshold is crossed. Running it server-side keeps
// concurrent failures from losing increments or double-locking.
var recordFailureScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local threshold = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local lockout = tonumber(ARGV[4])

local first = tonumber(redis.call('HGET', key, 'first_failure_at'))
if first == nil or now - first >= window then
  redis.call('HSET', key, 'failed_count', 1, 'first_failure_at', now)
  redis.call('HDEL', key, 'locked_until')
else
  redis.call('HINCRBY', key, 'failed_count', 1)
end

local count = tonumber(redis.call('HGET', key, 'failed_count'))
local until_ts = 0
if count >= threshold then
  until_ts = now + lockout
  redis.call('HSET', key, 'locked_until', until_ts)
end

local ttl = window
if lockout > ttl then ttl = lockout end
redis.call('EXPIRE', key, ttl)

return {count, tonumber(redis.call('HGET', key, 'first_failure_at')), until_ts}
`)

// RedisLockoutStore implements sliding-window failure counting per principal.
type RedisLockoutStore struct {
	client *redis.Client
}

func NewRedisLockoutStore(client *redis.Client) *RedisLockoutStore {
	return &RedisLockoutStore{client: client}
}

func lockoutKey(principalID uuid.UUID) string {
	return lockoutKeyPrefix + principalID.String()
}

func (s *RedisLockoutStore) Get(ctx context.Context, principalID uuid.UUID) (domain.LockoutState, error) {
	fields, err := s.client.HGetAll(ctx, lockoutKey(principalID)).Result()
	if err != nil {
		return domain.LockoutState{}, fmt.Errorf("lockout read: %w", err)
	}
	if len(fields) == 0 {
		return domain.LockoutState{}, nil
	}

	var state domain.LockoutState
	if raw, ok := fields[lockoutFieldCount]; ok {
		state.FailedCount, _ = strconv.Atoi(raw)
	}
	if raw, ok := fields[lockoutFieldFirstFailure]; ok {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			t := time.Unix(unix, 0).UTC()
			state.FirstFailureAt = &t
		}
	}
	if raw, ok := fields[lockoutFieldLockedUntil]; ok {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil && unix > 0 {
			t := time.Unix(unix, 0).UTC()
			state.LockedUntil = &t
		}
	}
	return state, nil
}

func (s *RedisLockoutStore) RecordFailure(ctx context.Context, principalID uuid.UUID, now time.Time, threshold int, window, lockoutDuration time.Duration) (domain.LockoutState, error) {
	res, err := recordFailureScript.Run(ctx, s.client, []string{lockoutKey(principalID)},
		now.Unix(), threshold, int64(window.Seconds()), int64(lockoutDuration.Seconds())).Int64Slice()
	if err != nil {
		return domain.LockoutState{}, fmt.Errorf("lockout record: %w", err)
	}
	if len(res) != 3 {
		return domain.LockoutState{}, fmt.Errorf("lockout record: unexpected reply length %d", len(res))
	}

	state := domain.LockoutState{FailedCount: int(res[0])}
	if res[1] > 0 {
		t := time.Unix(res[1], 0).UTC()
		state.FirstFailureAt = &t
	}
	if res[2] > 0 {
		t := time.Unix(res[2], 0).UTC()
		state.LockedUntil = &t
	}
	return state, nil
}

func (s *RedisLockoutStore) Clear(ctx context.Context, principalID uuid.UUID) error {
	if err := s.client.Del(ctx, lockoutKey(principalID)).Err(); err != nil {
		return fmt.Errorf("lockout clear: %w", err)
	}
	return nil
}

var _ ports.LockoutStore = (*RedisLockoutStore)(nil)

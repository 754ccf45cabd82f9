// AngelaMos | 2026
// redis.go

package throttle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "throttle"

// KEYS[1] record hash; ARGV[1] now ms, ARGV[2] stale cutoff ms, ARGV[3] ttl ms.
var incrementScript = redis.NewScript(`
local last = redis.call("HGET", KEYS[1], "last")
if last and tonumber(last) <= tonumber(ARGV[2]) then
  redis.call("DEL", KEYS[1])
end
local count = redis.call("HINCRBY", KEYS[1], "count", 1)
redis.call("HSET", KEYS[1], "last", ARGV[1])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return count
`)

type redisStore struct {
	client redis.UniversalClient
}

// NewRedisStore keeps one hash per key and purpose. Each failure refreshes
// its TTL to the block window, so Redis drops stale records on its own.
func NewRedisStore(client redis.UniversalClient) Store {
	return &redisStore{client: client}
}

func recordKey(key string, purpose Purpose) string {
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, purpose, key)
}

func (s *redisStore) Get(
	ctx context.Context,
	key string,
	purpose Purpose,
) (*Record, error) {
	fields, err := s.client.HGetAll(ctx, recordKey(key, purpose)).Result()
	if err != nil {
		return nil, fmt.Errorf("get attempt record: %w", err)
	}

	if len(fields) == 0 {
		return nil, ErrNoRecord
	}

	count, err := strconv.Atoi(fields["count"])
	if err != nil {
		return nil, fmt.Errorf("decode attempt count: %w", err)
	}

	lastMs, err := strconv.ParseInt(fields["last"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode attempt time: %w", err)
	}

	return &Record{
		Key:         key,
		Purpose:     purpose,
		Count:       count,
		LastAttempt: time.UnixMilli(lastMs).UTC(),
	}, nil
}

func (s *redisStore) Increment(
	ctx context.Context,
	key string,
	purpose Purpose,
	now time.Time,
	window time.Duration,
) (int, error) {
	ttl := window.Milliseconds()
	if ttl < 1 {
		ttl = 1
	}

	count, err := incrementScript.Run(
		ctx,
		s.client,
		[]string{recordKey(key, purpose)},
		now.UnixMilli(),
		now.Add(-window).UnixMilli(),
		ttl,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("increment attempt record: %w", err)
	}

	return count, nil
}

func (s *redisStore) Delete(
	ctx context.Context,
	key string,
	purpose Purpose,
) error {
	if err := s.client.Del(ctx, recordKey(key, purpose)).Err(); err != nil {
		return fmt.Errorf("delete attempt record: %w", err)
	}
	return nil
}

// DeleteStale is a no-op; expiry is handled by key TTLs.
func (s *redisStore) DeleteStale(context.Context, time.Time) (int64, error) {
	return 0, nil
}

package bucket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"fundgate/internal/safeguard/models"
)

// slidingWindowScript trims expired members, counts the rest, and records the
// new timestamp only if under the limit, all atomically. Members are unique
// "<millis>-<serial>" strings scored by millis so two requests in the same
// millisecond both count.
var slidingWindowScript = redis.NewScript(`
local cutoff = tonumber(ARGV[1]) - tonumber(ARGV[2])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", cutoff)
local count = redis.call("ZCARD", KEYS[1])
if count >= tonumber(ARGV[3]) then
  local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
  return {0, count, oldest[2]}
end
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[2])
local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
return {1, count + 1, oldest[2]}
`)

// RedisStore implements BucketStore on Redis sorted sets, for deployments
// where more than one front-end process shares the throttle.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis creates a Redis-backed bucket store.
func NewRedis(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "fundgate:rate"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := time.Now()
	nowMs := now.UnixMilli()
	member := fmt.Sprintf("%d-%d", nowMs, now.UnixNano()%1000)

	raw, err := slidingWindowScript.Run(ctx, s.client,
		[]string{s.key(key)},
		nowMs, window.Milliseconds(), limit, member,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("run rate limit script: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) < 2 {
		return nil, fmt.Errorf("unexpected rate limit script response: %T", raw)
	}
	allowed, _ := values[0].(int64)
	count, _ := values[1].(int64)

	resetAt := now.Add(window)
	if len(values) == 3 {
		if oldest, ok := values[2].(string); ok {
			if oldestMs, err := strconv.ParseInt(oldest, 10, 64); err == nil {
				resetAt = time.UnixMilli(oldestMs).Add(window)
			}
		}
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return &models.RateLimitResult{
		Allowed:   allowed == 1,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Status reports the live window state for a key without consuming a slot.
// The trim and the count are separate commands; a slot consumed in between
// only makes the answer momentarily conservative.
func (s *RedisStore) Status(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := time.Now()
	rkey := s.key(key)
	cutoff := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)

	if err := s.client.ZRemRangeByScore(ctx, rkey, "-inf", cutoff).Err(); err != nil {
		return nil, fmt.Errorf("trim rate limit bucket: %w", err)
	}
	count, err := s.client.ZCard(ctx, rkey).Result()
	if err != nil {
		return nil, fmt.Errorf("count rate limit bucket: %w", err)
	}

	resetAt := now
	if count > 0 {
		oldest, err := s.client.ZRangeWithScores(ctx, rkey, 0, 0).Result()
		if err != nil {
			return nil, fmt.Errorf("read rate limit bucket: %w", err)
		}
		if len(oldest) == 1 {
			resetAt = time.UnixMilli(int64(oldest[0].Score)).Add(window)
		}
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return &models.RateLimitResult{
		Allowed:   int(count) < limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

func (s *RedisStore) key(key string) string {
	return s.prefix + ":" + key
}

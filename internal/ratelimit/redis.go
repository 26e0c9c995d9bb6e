package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spectraquiz/api-gateway/internal/storage"
)

// checkAndConsumeScript makes the check-then-increment a single atomic step
// on the Redis side. A denied request never increments the counter, matching
// the in-memory store. Returns {allowed, count}.
var checkAndConsumeScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if count >= limit then
  return {0, count}
end
count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('EXPIRE', KEYS[1], ARGV[2])
end
return {1, count}
`)

// RedisStore is the shared-counter substitute for MemoryStore, for
// deployments running more than one gateway instance. Window expiry is
// handled by key TTLs, so Sweep has no equivalent here.
type RedisStore struct {
	redis *storage.RedisClient

	now func() time.Time
}

func NewRedisStore(client *storage.RedisClient) *RedisStore {
	return &RedisStore{redis: client, now: time.Now}
}

func redisKey(entityID string, g Granularity, window string) string {
	return fmt.Sprintf("ratelimit:%s:%s:%s", g, entityID, window)
}

// parseScriptReply decodes the {allowed, count} pair the script returns.
// Anything else is reported as an error rather than trusted.
func parseScriptReply(raw interface{}) (bool, int, error) {
	reply, ok := raw.([]interface{})
	if !ok || len(reply) != 2 {
		return false, 0, fmt.Errorf("unexpected rate limit script reply: %v", raw)
	}

	flag, ok := reply[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected rate limit script reply: %v", raw)
	}
	count, ok := reply[1].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected rate limit script reply: %v", raw)
	}

	return flag == 1, int(count), nil
}

func (s *RedisStore) CheckAndConsume(ctx context.Context, entityID string, g Granularity, limit int) (Result, error) {
	now := s.now()
	window := windowKey(g, now)
	resetAt := windowReset(g, now)

	// TTL a minute past the boundary so a slow clock never expires a live
	// window early.
	ttl := int(resetAt.Sub(now).Seconds()) + 60

	raw, err := s.redis.RunScript(ctx, checkAndConsumeScript,
		[]string{redisKey(entityID, g, window)}, limit, ttl)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script failed: %w", err)
	}

	allowed, count, err := parseScriptReply(raw)
	if err != nil {
		return Result{}, err
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if !allowed {
		res.RetryAfter = retryAfter(resetAt, now)
	}
	return res, nil
}

func (s *RedisStore) Peek(ctx context.Context, entityID string, g Granularity, limit int) (Result, error) {
	now := s.now()
	window := windowKey(g, now)
	resetAt := windowReset(g, now)

	count := 0
	val, err := s.redis.Get(ctx, redisKey(entityID, g, window))
	if err != nil && err != redis.Nil {
		return Result{}, err
	}
	if err == nil {
		count, _ = strconv.Atoi(val)
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count < limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

func (s *RedisStore) Close() error {
	// Connection lifecycle belongs to the composition root.
	return nil
}

package otp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var getOrCreateScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current then
  return current
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return ARGV[1]
`)

var consumeScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current == ARGV[1] then
  redis.call("DEL", KEYS[1])
  return 1
end
return 0
`)

// RedisStore keeps codes in Redis with a PX expiry. Both operations run as
// Lua scripts so a code can never be consumed twice.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "ledger:otp"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(userID int64) string {
	return fmt.Sprintf("%s:%d", s.prefix, userID)
}

func (s *RedisStore) GetOrCreate(ctx context.Context, userID int64, code string, ttl time.Duration) (string, error) {
	res, err := getOrCreateScript.Run(ctx, s.client, []string{s.key(userID)}, code, ttl.Milliseconds()).Text()
	if err != nil {
		return "", err
	}
	return res, nil
}

func (s *RedisStore) Consume(ctx context.Context, userID int64, code string) (bool, error) {
	n, err := consumeScript.Run(ctx, s.client, []string{s.key(userID)}, code).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

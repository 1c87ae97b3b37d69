package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/razy-dev/razy/internal/logging"
)

// Store operations sit on the request path; a slow Redis must degrade to a
// miss rather than stall requests.
const redisOpTimeout = 100 * time.Millisecond

// RedisStore implements Store on a shared Redis instance, so counters and
// cached values survive restarts and are visible across processes.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps client. prefix namespaces keys, e.g. "razy:limit:".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

func (s *RedisStore) Get(key string) ([]byte, bool) {
	ctx, cancel := opCtx()
	defer cancel()

	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logging.Warn("Redis get failed, treating as miss", zap.Error(err))
		return nil, false
	}
	return data, true
}

func (s *RedisStore) Set(key string, value []byte, ttl time.Duration) {
	ctx, cancel := opCtx()
	defer cancel()

	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		logging.Warn("Redis set failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *RedisStore) Delete(key string) {
	ctx, cancel := opCtx()
	defer cancel()

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		logging.Warn("Redis delete failed", zap.String("key", key), zap.Error(err))
	}
}

// Stats are tracked by the memory store only; Redis-side hit counters would
// cost a round trip per request.
func (s *RedisStore) Stats() StoreStats {
	return StoreStats{}
}

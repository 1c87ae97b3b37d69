package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 250 * time.Millisecond

// RedisDriver persists sessions in Redis with a per-key TTL, letting the
// backend expire stale sessions itself. GC is therefore a no-op.
type RedisDriver struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisDriver creates a redis driver. An empty prefix defaults to
// "razy:sess:"; a zero ttl defaults to 24h.
func NewRedisDriver(client *redis.Client, prefix string, ttl time.Duration) *RedisDriver {
	if prefix == "" {
		prefix = "razy:sess:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDriver{client: client, prefix: prefix, ttl: ttl}
}

func (d *RedisDriver) Open() error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return d.client.Ping(ctx).Err()
}

func (d *RedisDriver) Close() error {
	return d.client.Close()
}

func (d *RedisDriver) Read(id string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	raw, err := d.client.Get(ctx, d.prefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return map[string]any{}, nil
		}
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", id, err)
	}
	return data, nil
}

func (d *RedisDriver) Write(id string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", id, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return d.client.Set(ctx, d.prefix+id, raw, d.ttl).Err()
}

func (d *RedisDriver) Destroy(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return d.client.Del(ctx, d.prefix+id).Err()
}

func (d *RedisDriver) GC(time.Duration) (int, error) {
	return 0, nil
}

package server

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/razy-dev/razy/internal/cache"
	"github.com/razy-dev/razy/internal/config"
	"github.com/razy-dev/razy/internal/ratelimit"
	"github.com/razy-dev/razy/internal/session"
)

// buildRedis creates the shared Redis client, or nil when unconfigured.
func buildRedis(cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// buildSessionDriver constructs the configured session driver.
func buildSessionDriver(cfg config.SessionConfig, rdb *redis.Client) (session.Driver, error) {
	switch cfg.Driver {
	case "memory":
		return session.NewMemoryDriver(), nil
	case "file":
		return session.NewFileDriver(cfg.Dir), nil
	case "database":
		db, err := sqlx.Connect("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("session database: %w", err)
		}
		return session.NewDatabaseDriver(db, cfg.Table), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("session driver redis requires redis.addr")
		}
		ttl := cfg.Cookie.GCMaxLifetime
		if ttl == 0 {
			ttl = 24 * time.Hour
		}
		return session.NewRedisDriver(rdb, "", ttl), nil
	case "null":
		return session.NewNullDriver(), nil
	}
	return nil, fmt.Errorf("unknown session driver %q", cfg.Driver)
}

// buildRateLimiter constructs the shared limiter: Redis-backed when a client
// is configured so limits hold across processes, in-memory otherwise.
func buildRateLimiter(rdb *redis.Client) *ratelimit.Limiter {
	if rdb != nil {
		return ratelimit.NewLimiter(ratelimit.NewCacheStore(cache.NewRedisStore(rdb, "razy:limit:")))
	}
	return ratelimit.NewLimiter(ratelimit.NewMemoryStore())
}

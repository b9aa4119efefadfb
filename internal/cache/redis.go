package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Redis is a Cache backed by a Redis server. Keys are namespaced with a
// prefix so several deployments can share one instance.
type Redis struct {
	rdb    *goredis.Client
	prefix string
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedis connects and pings the server so misconfiguration fails at
// startup instead of on the first request.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	if opts.Addr == "" {
		return nil, errors.New("cache: missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}

	return &Redis{rdb: rdb, prefix: opts.Prefix}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache: redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

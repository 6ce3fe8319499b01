package repo

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "launchboard:"

// Redis stores records as plain string values under Prefix+key.
type Redis struct {
	Client *redis.Client
	Prefix string
}

var _ KV = Redis{}

// NewRedis connects to addr and pings it once.
func NewRedis(ctx context.Context, addr string, db int, prefix string) (Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return Redis{}, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return Redis{Client: client, Prefix: prefix}, nil
}

func (r Redis) key(k string) string {
	if r.Prefix == "" {
		return defaultRedisPrefix + k
	}
	return r.Prefix + k
}

func (r Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.Client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (r Redis) Set(ctx context.Context, key, value string) error {
	if err := r.Client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r Redis) Delete(ctx context.Context, key string) error {
	if err := r.Client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (r Redis) Close() error {
	return r.Client.Close()
}

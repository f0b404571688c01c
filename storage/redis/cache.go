package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/studywala/backend/core"
)

// Open connects to redis and verifies the connection.
func Open(conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

type cache struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// NewCache wraps a redis client as a core.Cache. Entries written with a
// zero ttl use defaultTTL.
func NewCache(client *redis.Client, defaultTTL time.Duration) core.Cache {
	return &cache{client: client, defaultTTL: defaultTTL}
}

func (c *cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, core.ErrCacheMiss
		}
		return nil, errors.Wrap(err, "redis get")
	}
	return val, nil
}

func (c *cache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.Set(ctx, key, val, ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func (c *cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}

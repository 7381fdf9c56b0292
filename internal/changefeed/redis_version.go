package changefeed

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const DefaultVersionKey = "pos:dataset:version"

// CounterClient is the subset of redis commands RedisVersion needs.
type CounterClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisVersion keeps the dataset version in a Redis counter.
type RedisVersion struct {
	client CounterClient
	key    string
}

func NewRedisVersion(client CounterClient, key string) *RedisVersion {
	if key == "" {
		key = DefaultVersionKey
	}
	return &RedisVersion{client: client, key: key}
}

func (v *RedisVersion) Incr(ctx context.Context) (uint64, error) {
	n, err := v.client.Incr(ctx, v.key).Result()
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// Get treats a missing key as version 0.
func (v *RedisVersion) Get(ctx context.Context) (uint64, error) {
	n, err := v.client.Get(ctx, v.key).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

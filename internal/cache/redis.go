package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"ptolemies/internal/model"
)

// redisStore is the distributed backend for multi-process deployments,
// using SCAN+DEL for prefix invalidation since Redis has no native
// prefix-delete command.
type redisStore struct {
	client redis.UniversalClient
	group  singleflight.Group
}

func NewRedis(addr, password string, db int) (Cache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, model.NewError(model.ErrStoreUnavailable, "redis ping failed", err)
	}
	return &redisStore{client: client}, nil
}

func (r *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, model.NewError(model.ErrStoreUnavailable, "redis get failed", err)
	}
	return val, true, nil
}

func (r *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return model.NewError(model.ErrStoreUnavailable, "redis set failed", err)
	}
	return nil
}

func (r *redisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return model.NewError(model.ErrStoreUnavailable, "redis delete failed", err)
	}
	return nil
}

func (r *redisStore) InvalidatePrefix(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return model.NewError(model.ErrStoreUnavailable, "redis invalidate failed", err)
		}
	}
	if err := iter.Err(); err != nil {
		return model.NewError(model.ErrStoreUnavailable, "redis scan failed", err)
	}
	return nil
}

func (r *redisStore) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	if v, ok, _ := r.Get(ctx, key); ok {
		return v, nil
	}
	v, err, _ := r.group.Do(key, func() (any, error) {
		if v, ok, _ := r.Get(ctx, key); ok {
			return v, nil
		}
		loaded, err := load(ctx)
		if err != nil {
			return nil, err
		}
		_ = r.Set(ctx, key, loaded, ttl)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (r *redisStore) Close() error {
	return r.client.Close()
}

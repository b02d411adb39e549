package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"applyforge/internal/config"
	"applyforge/internal/errors"
	"applyforge/internal/types"
)

// RedisStore keeps the résumé JSON under Key with no expiry
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store backed by the redis server in cfg
func NewRedisStore(cfg config.RedisConfig) *RedisStore {
	return NewRedisStoreWithClient(redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	}))
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Ping tests the Redis connection
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context) (*types.ResumeData, error) {
	data, err := r.client.Get(ctx, Key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, ErrResumeNotFound
	}
	if err != nil {
		return nil, errors.NewStoreError(errors.ErrCodeStoreUnavailable, "cannot read saved resume from redis", err)
	}
	return decode(data)
}

func (r *RedisStore) Put(ctx context.Context, resume *types.ResumeData) error {
	data, err := encode(resume)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, Key, string(data), 0).Err(); err != nil {
		return errors.NewStoreError(errors.ErrCodeStoreUnavailable, "cannot write saved resume to redis", err)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}

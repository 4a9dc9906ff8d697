package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the narrow capability the cache client needs from the backing
// key-value store. The production implementation wraps go-redis; tests use
// an in-memory fake.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) (int64, error)
	Exists(ctx context.Context, key string) (int64, error)
	// IncrWithTTL atomically increments the integer at key and refreshes its
	// expiry, returning the new count.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Info(ctx context.Context, section string) (string, error)
	DBSize(ctx context.Context) (int64, error)
	FlushDB(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

type redisStore struct {
	client *redis.Client
}

// NewRedisStore parses a redis:// URL and returns a Store backed by go-redis.
func NewRedisStore(url string) (Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	opts.MaxRetries = 3
	return &redisStore{client: redis.NewClient(opts)}, nil
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *redisStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.SetEx(ctx, key, value, ttl).Err()
}

func (s *redisStore) Del(ctx context.Context, key string) (int64, error) {
	return s.client.Del(ctx, key).Result()
}

func (s *redisStore) Exists(ctx context.Context, key string) (int64, error) {
	return s.client.Exists(ctx, key).Result()
}

func (s *redisStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (s *redisStore) Info(ctx context.Context, section string) (string, error) {
	return s.client.Info(ctx, section).Result()
}

func (s *redisStore) DBSize(ctx context.Context) (int64, error) {
	return s.client.DBSize(ctx).Result()
}

func (s *redisStore) FlushDB(ctx context.Context) error {
	return s.client.FlushDB(ctx).Err()
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

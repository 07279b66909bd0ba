package storage

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/mnuddindev/resourcebase/pkg/logger"
	"github.com/mnuddindev/resourcebase/pkg/utils"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss is returned by GetJSON when the key does not exist.
	ErrCacheMiss = errors.New("cache miss")
	// ErrStaleWrite is returned by SetJSONAt when the version moved on.
	ErrStaleWrite = errors.New("stale cache write")
)

type RedisClient struct {
	*redis.Client
}

// NewRedis initializes a Redis client, retrying the first ping with
// exponential backoff.
func NewRedis(ctx context.Context, addr, password string) (*RedisClient, error) {
	if err := ctx.Err(); err != nil {
		return nil, utils.WrapError(err, utils.ErrInternalServerError.Code, "redis initialization canceled")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(200*time.Millisecond),
		backoff.WithMaxElapsedTime(15*time.Second),
	), 5)
	ping := func() error { return client.Ping(ctx).Err() }
	if err := backoff.Retry(ping, backoff.WithContext(b, ctx)); err != nil {
		client.Close()
		return nil, utils.NewError(utils.ErrInternalServerError.Code, "Failed to connect to Redis", err.Error())
	}

	return &RedisClient{client}, nil
}

// Wrap adopts an already configured go-redis client.
func Wrap(client *redis.Client) *RedisClient {
	return &RedisClient{client}
}

// SetJSON stores v under key encoded as JSON.
func (r *RedisClient) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	return r.Set(ctx, key, data, ttl).Err()
}

// GetJSON decodes the JSON value under key into out. It returns ErrCacheMiss
// for absent keys.
func (r *RedisClient) GetJSON(ctx context.Context, key string, out interface{}) error {
	data, err := r.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return sonic.Unmarshal(data, out)
}

// Version reads the generation counter under key. A missing key is zero.
func (r *RedisClient) Version(ctx context.Context, key string) (int64, error) {
	v, err := r.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// SetJSONAt stores v under key only while the counter at versionKey still
// equals version. A fill that raced an invalidation returns ErrStaleWrite.
func (r *RedisClient) SetJSONAt(ctx context.Context, key, versionKey string, version int64, v interface{}, ttl time.Duration) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	err = r.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != version {
			return ErrStaleWrite
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}, versionKey)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrStaleWrite
	}
	return err
}

// Invalidate deletes each key and bumps its version counter so in-flight
// SetJSONAt fills for it are dropped. Counters expire after versionTTL.
func (r *RedisClient) Invalidate(ctx context.Context, versionTTL time.Duration, keys map[string]string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := r.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for key, versionKey := range keys {
			p.Incr(ctx, versionKey)
			p.Expire(ctx, versionKey, versionTTL)
			p.Del(ctx, key)
		}
		return nil
	})
	return err
}

// Close shuts down the Redis connection.
func (r *RedisClient) Close(log *logger.Logger) error {
	if err := r.Client.Close(); err != nil {
		log.Error(context.Background()).WithError(err).Logs("Redis close failed")
		return utils.NewError(utils.ErrInternalServerError.Code, "Failed to close Redis", err.Error())
	}
	log.Info(context.Background()).Logs("Redis connection closed successfully")
	return nil
}

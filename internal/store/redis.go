package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // key namespace, "jobsheet:" by default
}

// Redis is the optional shared backend, used when several engines on one
// machine (or a remote dev box) should see the same local state.
type Redis struct {
	client *redis.Client
	prefix string
}

func OpenRedis(opts RedisOptions) (*Redis, error) {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "jobsheet:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping redis %s", opts.Addr)
	}
	return &Redis{client: client, prefix: prefix}, nil
}

func (r *Redis) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "get %q", key)
	}
	if raw == "" {
		return false, nil
	}
	if err := decode(raw, out); err != nil {
		return false, errors.Wrapf(err, "decode %q", key)
	}
	return true, nil
}

// SetJSON stores without expiry; TTL handling belongs to the callers' own data.
func (r *Redis) SetJSON(ctx context.Context, key string, value any) error {
	raw, err := encode(value)
	if err != nil {
		return errors.Wrapf(err, "encode %q", key)
	}
	return errors.Wrapf(r.client.Set(ctx, r.prefix+key, raw, 0).Err(), "set %q", key)
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return errors.Wrapf(r.client.Del(ctx, r.prefix+key).Err(), "delete %q", key)
}

func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

package guestcart

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// RedisKV backs the guest store with Redis so guest carts survive frontend
// restarts and are shared across replicas.
type RedisKV struct {
	client *redis.Client
	log    *logrus.Entry
}

// NewRedisKV accepts either a redis:// URL or a plain "host:port" address.
func NewRedisKV(addr string, log *logrus.Entry) *RedisKV {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{
			Addr:         addr,
			MinIdleConns: 1,
			MaxRetries:   3,
			DialTimeout:  30 * time.Second,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			PoolSize:     10,
			PoolTimeout:  4 * time.Second,
		}
	}
	return &RedisKV{client: redis.NewClient(opts), log: log}
}

// Initialize pings Redis until it answers, backing off exponentially. The
// frontend refuses to start with an unreachable guest store since every
// anonymous session depends on it.
func (r *RedisKV) Initialize(ctx context.Context) error {
	const attempts = 10
	for i := 0; i < attempts; i++ {
		if r.Ping(ctx) {
			r.log.Info("guest store connected to redis")
			return nil
		}
		backoff := time.Duration(1000*(1<<uint(i))) * time.Millisecond
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
		r.log.Infof("guest store: redis not ready, retrying in %v", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return errors.Errorf("failed to connect to redis after %d attempts", attempts)
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "redis GET")
	}
	return v, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return errors.Wrap(err, "redis SET")
	}
	return nil
}

func (r *RedisKV) Del(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, "redis DEL")
	}
	return nil
}

// Ping reports whether Redis currently answers.
func (r *RedisKV) Ping(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := r.client.Ping(pingCtx).Result(); err != nil {
		r.log.WithError(err).Warn("guest store: redis ping failed")
		return false
	}
	return true
}

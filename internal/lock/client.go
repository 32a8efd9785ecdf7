package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPoolSize = 10
	defaultTimeout  = 2 * time.Second
)

// ClientOptions is the Redis connection the slot lock runs on.
type ClientOptions struct {
	Addr     string
	Username string
	Password string
	PoolSize int
	// Timeout bounds dialing, each command and the startup ping.
	Timeout time.Duration
}

func (o ClientOptions) redisOptions() *redis.Options {
	pool := o.PoolSize
	if pool <= 0 {
		pool = defaultPoolSize
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &redis.Options{
		Addr:         o.Addr,
		Username:     o.Username,
		Password:     o.Password,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		PoolSize:     pool,
		MinIdleConns: 1,
	}
}

// NewRedisClient connects and pings the server once.
func NewRedisClient(ctx context.Context, o ClientOptions) (*redis.Client, error) {
	if o.Addr == "" {
		return nil, errors.New("redis address required")
	}
	opts := o.redisOptions()
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", o.Addr, err)
	}
	return rdb, nil
}

// Package redis wraps go-redis with the handful of commands the ledger uses.
package redis

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"audiofp/internal/config"

	goredis "github.com/redis/go-redis/v9"
)

const pingTimeout = 3 * time.Second

// ErrCacheMiss is returned by Get for keys that do not exist.
var ErrCacheMiss = goredis.Nil

var errNotInitialized = errors.New("redis client not initialized")

// Client is safe to call through a nil pointer; every command then fails
// with an initialization error.
type Client struct {
	inner *goredis.Client
}

// NewRedisClient connects using cfg.Redis and verifies the server answers.
func NewRedisClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	rc := cfg.Redis
	if rc.Host == "" {
		rc.Host = "127.0.0.1"
	}
	if rc.Port == 0 {
		rc.Port = 6379
	}

	inner := goredis.NewClient(&goredis.Options{
		Addr:     net.JoinHostPort(rc.Host, strconv.Itoa(rc.Port)),
		Username: rc.Username,
		Password: rc.Password,
		DB:       rc.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := inner.Ping(ctx).Err(); err != nil {
		inner.Close()
		return nil, err
	}
	return &Client{inner: inner}, nil
}

func (c *Client) raw() (*goredis.Client, error) {
	if c == nil || c.inner == nil {
		return nil, errNotInitialized
	}
	return c.inner, nil
}

// Set stores value under key. A zero ttl keeps the key forever.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	r, err := c.raw()
	if err != nil {
		return err
	}
	return r.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	r, err := c.raw()
	if err != nil {
		return "", err
	}
	return r.Get(ctx, key).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	r, err := c.raw()
	if err != nil || len(keys) == 0 {
		return err
	}
	return r.Del(ctx, keys...).Err()
}

// ZAdd adds member to the sorted set key with the given score.
func (c *Client) ZAdd(ctx context.Context, key string, score float64, member string) error {
	r, err := c.raw()
	if err != nil {
		return err
	}
	return r.ZAdd(ctx, key, goredis.Z{Score: score, Member: member}).Err()
}

// ZRem removes members from the sorted set key.
func (c *Client) ZRem(ctx context.Context, key string, members ...string) error {
	r, err := c.raw()
	if err != nil || len(members) == 0 {
		return err
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.ZRem(ctx, key, args...).Err()
}

// ZRangeByScore lists up to limit members scored at or below maxScore, lowest first.
func (c *Client) ZRangeByScore(ctx context.Context, key string, maxScore float64, limit int64) ([]string, error) {
	r, err := c.raw()
	if err != nil {
		return nil, err
	}
	return r.ZRangeByScore(ctx, key, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(maxScore, 'f', -1, 64),
		Count: limit,
	}).Result()
}

func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}

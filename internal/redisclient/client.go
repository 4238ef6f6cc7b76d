package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/limit_attempts.lua
var limitAttemptsScript string

type Client struct {
	rdb         *redis.Client
	limitScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewFromRedis(rdb), nil
}

// NewFromRedis wraps an existing connection.
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{
		rdb:         rdb,
		limitScript: redis.NewScript(limitAttemptsScript),
	}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection for readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Attempt is the limiter's verdict for one call.
type Attempt struct {
	Allowed    bool
	Count      int64
	RetryAfter time.Duration
}

// RegisterAttempt counts one attempt against key and reports whether it is
// within max attempts per window. The counter starts its window on the first
// attempt.
func (c *Client) RegisterAttempt(ctx context.Context, key string, max int, window time.Duration) (Attempt, error) {
	result, err := c.limitScript.Run(ctx, c.rdb,
		[]string{fmt.Sprintf("attempts:%s", key)}, max, window.Milliseconds()).Result()
	if err != nil {
		return Attempt{}, fmt.Errorf("limit attempts script failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return Attempt{}, fmt.Errorf("unexpected script result type")
	}

	allowed, _ := values[0].(int64)
	count, _ := values[1].(int64)
	ttl, _ := values[2].(int64)

	return Attempt{
		Allowed:    allowed == 1,
		Count:      count,
		RetryAfter: time.Duration(ttl) * time.Millisecond,
	}, nil
}

// ResetAttempts clears the counter, e.g. after a successful verification.
func (c *Client) ResetAttempts(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("attempts:%s", key)).Err()
}

package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/alatoul/ride-hailing/pkg/resilience"
)

// RetryableOperation executes a Redis operation with retry logic for transient failures
func RetryableOperation[T any](ctx context.Context, operation func(context.Context) (T, error), operationName string) (T, error) {
	config := resilience.DefaultRetryConfig()
	config.InitialBackoff = 50 * time.Millisecond
	config.MaxBackoff = 1 * time.Second
	config.RetryableChecker = isRedisRetryable

	result, err := resilience.RetryWithName(ctx, config, func(ctx context.Context) (interface{}, error) {
		return operation(ctx)
	}, operationName)
	if err != nil {
		var zero T
		return zero, err
	}

	typed, _ := result.(T)
	return typed, nil
}

// RetryableGet gets a value by key with retry logic
func (c *Client) RetryableGet(ctx context.Context, key string) (string, error) {
	return RetryableOperation(ctx, func(ctx context.Context) (string, error) {
		return c.GetString(ctx, key)
	}, "redis.get")
}

// RetryableSet sets a key-value pair with retry logic
func (c *Client) RetryableSet(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	_, err := RetryableOperation(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.SetWithExpiration(ctx, key, value, expiration)
	}, "redis.set")
	return err
}

// RetryableDelete deletes keys with retry logic
func (c *Client) RetryableDelete(ctx context.Context, keys ...string) error {
	_, err := RetryableOperation(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.Delete(ctx, keys...)
	}, "redis.delete")
	return err
}

// isRedisRetryable determines if a Redis error should be retried
func isRedisRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// A miss is an answer, not a failure.
	if errors.Is(err, ErrCacheMiss) {
		return false
	}

	errMsg := strings.ToLower(err.Error())

	for _, msg := range []string{"wrongtype", "err syntax", "err invalid", "noauth", "wrongpass", "noperm", "err unknown"} {
		if strings.Contains(errMsg, msg) {
			return false
		}
	}

	for _, msg := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"pool timeout",
		"unexpected eof",
		"loading",
		"busy",
		"tryagain",
		"clusterdown",
	} {
		if strings.Contains(errMsg, msg) {
			return true
		}
	}

	return false
}

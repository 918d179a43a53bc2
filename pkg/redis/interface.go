package redis

import (
	"context"
	"time"
)

// ClientInterface defines the Redis operations the services use
type ClientInterface interface {
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetIfVersion(ctx context.Context, key string, value interface{}, expiration time.Duration, versionKey, version string) (bool, error)
	BumpVersion(ctx context.Context, versionKey string, expiration time.Duration) error
	Close() error
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisclient "github.com/alatoul/ride-hailing/pkg/redis"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = redisclient.ErrCacheMiss

// Manager handles caching operations with JSON serialization
type Manager struct {
	redis redisclient.ClientInterface
}

// NewManager creates a new cache manager
func NewManager(redis redisclient.ClientInterface) *Manager {
	return &Manager{redis: redis}
}

// Get retrieves a cached value and unmarshals it into result
func (m *Manager) Get(ctx context.Context, key string, result interface{}) error {
	data, err := m.redis.GetString(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(data), result); err != nil {
		return fmt.Errorf("failed to unmarshal cache value %s: %w", key, err)
	}
	return nil
}

// Set marshals and caches a value with expiration
func (m *Manager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return m.redis.SetWithExpiration(ctx, key, string(data), ttl)
}

// Delete removes keys from cache
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	return m.redis.Delete(ctx, keys...)
}

// versionTTL bounds how long a version stamp outlives its last write. An
// expired stamp reads as empty, which still fails fills that saw a number.
const versionTTL = time.Hour

func versionKey(key string) string {
	return key + ":version"
}

// Version returns the current version stamp of key, empty when none was set.
// Pass it to SetIfVersion after reading the source of truth.
func (m *Manager) Version(ctx context.Context, key string) (string, error) {
	v, err := m.redis.GetString(ctx, versionKey(key))
	if IsMiss(err) {
		return "", nil
	}
	return v, err
}

// SetIfVersion caches value unless key was invalidated after version was
// read. It reports whether the value was stored.
func (m *Manager) SetIfVersion(ctx context.Context, key string, value interface{}, ttl time.Duration, version string) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return m.redis.SetIfVersion(ctx, key, string(data), ttl, versionKey(key), version)
}

// Invalidate bumps the version stamp of key and drops the cached value, so
// a fill that read the old data cannot repopulate it.
func (m *Manager) Invalidate(ctx context.Context, key string) error {
	if err := m.redis.BumpVersion(ctx, versionKey(key), versionTTL); err != nil {
		return err
	}
	return m.redis.Delete(ctx, key)
}

// IsMiss reports whether err means the key was not cached.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

// CacheKeys defines cache key patterns
type CacheKeys struct{}

var Keys = CacheKeys{}

// Ride returns cache key for ride data
func (k CacheKeys) Ride(rideID string) string {
	return fmt.Sprintf("ride:%s", rideID)
}

// UnreadNotifications returns cache key for a user's unread notification count
func (k CacheKeys) UnreadNotifications(userID string) string {
	return fmt.Sprintf("notifications:unread:%s", userID)
}

// UnreadMessages returns cache key for a user's unread chat message count
func (k CacheKeys) UnreadMessages(userID string) string {
	return fmt.Sprintf("messages:unread:%s", userID)
}

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles short-lived distributed locks.
type LockStore struct {
	client   *Client
	prefix   string
	newToken func() string
}

// NewLockStore creates a LockStore whose keys live under prefix.
func NewLockStore(client *Client, prefix string) *LockStore {
	return &LockStore{client: client, prefix: prefix, newToken: uuid.NewString}
}

func (s *LockStore) key(id string) string {
	return fmt.Sprintf("lock:%s:%s", s.prefix, id)
}

// Acquire attempts to take the lock for id. ok is false when another holder
// has it; otherwise token identifies this holder to Release.
func (s *LockStore) Acquire(ctx context.Context, id string, ttl time.Duration) (token string, ok bool, err error) {
	token = s.newToken()
	ok, err = s.client.SetNX(ctx, s.key(id), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// Release drops the lock for id if token still owns it. A lock that expired
// and was taken by someone else is left alone.
func (s *LockStore) Release(ctx context.Context, id, token string) error {
	return releaseScript.Run(ctx, s.client.Client, []string{s.key(id)}, token).Err()
}

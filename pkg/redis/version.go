package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// setIfVersionScript writes KEYS[1] only while KEYS[2] still holds the version
// the caller read. A missing version key counts as the empty version.
var setIfVersionScript = redis.NewScript(`
local current = redis.call("GET", KEYS[2])
if not current then
	current = ""
end
if current ~= ARGV[2] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[1])
end
return 1
`)

// SetIfVersion stores value under key unless versionKey moved past version
// since the caller read it. It reports whether the value was written.
func (c *Client) SetIfVersion(ctx context.Context, key string, value interface{}, expiration time.Duration, versionKey, version string) (bool, error) {
	n, err := setIfVersionScript.Run(ctx, c.Client, []string{key, versionKey}, value, version, expiration.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// BumpVersion advances versionKey so that fills started before the bump are
// discarded.
func (c *Client) BumpVersion(ctx context.Context, versionKey string, expiration time.Duration) error {
	_, err := c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		pipe.PExpire(ctx, versionKey, expiration)
		return nil
	})
	return err
}

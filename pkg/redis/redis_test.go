package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockClient(t *testing.T) (*Client, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return Wrap(db), mock
}

func TestClient_GetStringMiss(t *testing.T) {
	client, mock := newMockClient(t)
	mock.ExpectGet("ride:1").RedisNil()

	_, err := client.GetString(context.Background(), "ride:1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestClient_GetStringHit(t *testing.T) {
	client, mock := newMockClient(t)
	mock.ExpectGet("ride:1").SetVal(`{"id":"1"}`)

	v, err := client.GetString(context.Background(), "ride:1")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, v)
}

func TestClient_Exists(t *testing.T) {
	client, mock := newMockClient(t)
	mock.ExpectExists("k").SetVal(1)

	ok, err := client.Exists(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockStore_AcquireAndRelease(t *testing.T) {
	client, mock := newMockClient(t)
	locks := NewLockStore(client, "ride-accept")
	locks.newToken = func() string { return "token-a" }

	mock.ExpectSetNX("lock:ride-accept:abc", "token-a", 5*time.Second).SetVal(true)
	mock.ExpectSetNX("lock:ride-accept:abc", "token-a", 5*time.Second).SetVal(false)
	mock.ExpectEvalSha(releaseScript.Hash(), []string{"lock:ride-accept:abc"}, "token-a").SetVal(int64(1))

	ctx := context.Background()
	token, ok, err := locks.Acquire(ctx, "abc", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "token-a", token)

	token, ok, err = locks.Acquire(ctx, "abc", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, token)

	require.NoError(t, locks.Release(ctx, "abc", "token-a"))
}

func TestLockStore_ReleaseChecksOwner(t *testing.T) {
	client, mock := newMockClient(t)
	locks := NewLockStore(client, "ride-accept")

	// The first holder's lock expired and another request now owns the key.
	mock.ExpectEvalSha(releaseScript.Hash(), []string{"lock:ride-accept:abc"}, "stale-token").SetVal(int64(0))

	require.NoError(t, locks.Release(context.Background(), "abc", "stale-token"))
}

func TestLockStore_TokensAreUnique(t *testing.T) {
	locks := NewLockStore(nil, "ride-accept")
	assert.NotEqual(t, locks.newToken(), locks.newToken())
}

func TestIsRedisRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"miss", ErrCacheMiss, false},
		{"canceled", context.Canceled, false},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"loading", errors.New("LOADING Redis is loading the dataset"), true},
		{"wrongtype", errors.New("WRONGTYPE Operation against a key"), false},
		{"unknown", errors.New("something odd"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRedisRetryable(tt.err))
		})
	}
}

func TestRetryableGet_MissIsNotRetried(t *testing.T) {
	client, mock := newMockClient(t)
	mock.ExpectGet("ride:2").RedisNil()

	_, err := client.RetryableGet(context.Background(), "ride:2")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSetIfVersion(t *testing.T) {
	client, mock := newMockClient(t)
	keys := []string{"ride:1", "ride:1:version"}

	mock.ExpectEvalSha(setIfVersionScript.Hash(), keys, `{"id":"1"}`, "4", int64(30000)).SetVal(int64(1))
	mock.ExpectEvalSha(setIfVersionScript.Hash(), keys, `{"id":"1"}`, "4", int64(30000)).SetVal(int64(0))

	ctx := context.Background()
	ok, err := client.SetIfVersion(ctx, "ride:1", `{"id":"1"}`, 30*time.Second, "ride:1:version", "4")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SetIfVersion(ctx, "ride:1", `{"id":"1"}`, 30*time.Second, "ride:1:version", "4")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBumpVersion(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectTxPipeline()
	mock.ExpectIncr("ride:1:version").SetVal(5)
	mock.ExpectPExpire("ride:1:version", time.Hour).SetVal(true)
	mock.ExpectTxPipelineExec()

	require.NoError(t, client.BumpVersion(context.Background(), "ride:1:version", time.Hour))
}

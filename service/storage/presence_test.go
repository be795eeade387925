package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"TravelRelay/global"
	"TravelRelay/service/speech"
	redisx "TravelRelay/service/storage/redis"
	"TravelRelay/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceKeys(t *testing.T) {
	p := NewRedisPresence(nil, PresenceConfig{})
	assert.Equal(t, "speech:session:42", p.sessionKey("42"))
	assert.Equal(t, "speech:user:u-1", p.userKey("u-1"))
	assert.Equal(t, 2*time.Hour, p.conf.TTL)
}

// 需要本地 redis：REDIS_ADDR=127.0.0.1:6379
func TestRedisPresence_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb, err := redisx.NewClient(global.RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	prefix := "speechtest" + time.Now().Format("150405.000")
	p := NewRedisPresence(rdb, PresenceConfig{KeyPrefix: prefix, TTL: time.Minute})
	ctx := context.Background()

	created := time.UnixMilli(time.Now().UnixMilli())
	require.NoError(t, p.Online(ctx, speech.PresenceInfo{
		SessionID: "s1", UserID: "u1", Username: "erin", NodeID: 3, CreatedAt: created,
	}))
	require.NoError(t, p.Online(ctx, speech.PresenceInfo{SessionID: "s2", UserID: "u1", NodeID: 4, CreatedAt: created}))

	ttl, err := rdb.TTL(ctx, p.sessionKey("s1")).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Minute)

	list, err := p.Sessions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, p.Offline(ctx, "s1", "u1"))
	online, err := p.IsOnline(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, p.Offline(ctx, "s2", "u1"))
	online, err = p.IsOnline(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, online)

	n, err := rdb.Exists(ctx, p.userKey("u1")).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisPresence_Heartbeat(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb, err := redisx.NewClient(global.RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	prefix := "speechbeat" + time.Now().Format("150405.000")
	p := NewRedisPresence(rdb, PresenceConfig{KeyPrefix: prefix, TTL: time.Minute})
	ctx := context.Background()

	require.NoError(t, p.Online(ctx, speech.PresenceInfo{SessionID: "s1", UserID: "u1", CreatedAt: time.Now()}))

	// 模拟快到期
	require.NoError(t, rdb.Expire(ctx, p.sessionKey("s1"), 2*time.Second).Err())
	require.NoError(t, rdb.SRem(ctx, p.userKey("u1"), "s1").Err())

	require.NoError(t, p.Heartbeat(ctx, "s1", "u1"))
	ttl, err := rdb.TTL(ctx, p.sessionKey("s1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 30*time.Second)

	list, err := p.Sessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "s1", list[0].SessionID)

	// hash 已过期的会话不会被续活
	require.NoError(t, rdb.Del(ctx, p.sessionKey("s1")).Err())
	err = p.Heartbeat(ctx, "s1", "u1")
	assert.True(t, errs.ErrSessionGone.Is(err))
	n, err := rdb.Exists(ctx, p.sessionKey("s1")).Result()
	require.NoError(t, err)
	assert.Zero(t, n)

	_ = p.Offline(ctx, "s1", "u1")
}

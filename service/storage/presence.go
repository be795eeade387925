package storage

import (
	"context"
	"strconv"
	"time"

	"TravelRelay/service/speech"
	"TravelRelay/tools/errs"

	"github.com/redis/go-redis/v9"
)

// ===== Lua 脚本 =====

// 上线：写会话 hash 并挂到用户索引
// KEYS[1] = session key  ({prefix}:session:{id})
// KEYS[2] = user index   ({prefix}:user:{userId})
// ARGV[1] = ttlSeconds
// ARGV[2] = sessionId
// ARGV[3..] = hash field/value 对
const luaOnline = `
local kSess = KEYS[1]
local kUser = KEYS[2]
local ttl   = tonumber(ARGV[1])

redis.call("DEL", kSess)
for i = 3, #ARGV, 2 do
  redis.call("HSET", kSess, ARGV[i], ARGV[i+1])
end
redis.call("EXPIRE", kSess, ttl)
redis.call("SADD", kUser, ARGV[2])
redis.call("EXPIRE", kUser, ttl * 2)
return 1
`

// 下线：删会话 hash，从用户索引摘除；索引空了顺手删掉
// 返回：1 删除成功；0 会话本就不存在
const luaOffline = `
local kSess = KEYS[1]
local kUser = KEYS[2]
local n = redis.call("DEL", kSess)
redis.call("SREM", kUser, ARGV[1])
if redis.call("SCARD", kUser) == 0 then
  redis.call("DEL", kUser)
end
return n
`

// 续期：会话 hash 还在才续，同时把自己补回用户索引
// KEYS[1] = session key
// KEYS[2] = user index
// ARGV[1] = ttlSeconds
// ARGV[2] = sessionId
// 返回：1 续期成功；0 会话已过期（不复活）
const luaHeartbeat = `
local kSess = KEYS[1]
local kUser = KEYS[2]
local ttl   = tonumber(ARGV[1])

if redis.call("EXISTS", kSess) == 0 then
  return 0
end
redis.call("EXPIRE", kSess, ttl)
redis.call("SADD", kUser, ARGV[2])
redis.call("EXPIRE", kUser, ttl * 2)
return 1
`

// PresenceConfig 在线状态配置
type PresenceConfig struct {
	KeyPrefix string        // 默认 "speech"
	TTL       time.Duration // 会话 hash 的过期时间，兜底进程崩溃
}

// RedisPresence 把本节点的语音会话登记到 Redis，供其它节点/服务查询
type RedisPresence struct {
	rdb     redis.UniversalClient
	conf    PresenceConfig
	online  *redis.Script
	offline *redis.Script
	beat    *redis.Script
}

func NewRedisPresence(rdb redis.UniversalClient, conf PresenceConfig) *RedisPresence {
	if conf.KeyPrefix == "" {
		conf.KeyPrefix = "speech"
	}
	if conf.TTL <= 0 {
		conf.TTL = 2 * time.Hour
	}
	return &RedisPresence{
		rdb:     rdb,
		conf:    conf,
		online:  redis.NewScript(luaOnline),
		offline: redis.NewScript(luaOffline),
		beat:    redis.NewScript(luaHeartbeat),
	}
}

func (p *RedisPresence) sessionKey(sessionID string) string {
	return p.conf.KeyPrefix + ":session:" + sessionID
}

func (p *RedisPresence) userKey(userID string) string {
	return p.conf.KeyPrefix + ":user:" + userID
}

func (p *RedisPresence) Online(ctx context.Context, info speech.PresenceInfo) error {
	keys := []string{p.sessionKey(info.SessionID), p.userKey(info.UserID)}
	args := []any{
		int64(p.conf.TTL / time.Second),
		info.SessionID,
		"user_id", info.UserID,
		"username", info.Username,
		"node_id", strconv.FormatInt(info.NodeID, 10),
		"created_at", strconv.FormatInt(info.CreatedAt.UnixMilli(), 10),
	}
	if err := p.online.Run(ctx, p.rdb, keys, args...).Err(); err != nil {
		return errs.WrapMsg(err, "presence online", "session", info.SessionID)
	}
	return nil
}

func (p *RedisPresence) Offline(ctx context.Context, sessionID, userID string) error {
	keys := []string{p.sessionKey(sessionID), p.userKey(userID)}
	if err := p.offline.Run(ctx, p.rdb, keys, sessionID).Err(); err != nil {
		return errs.WrapMsg(err, "presence offline", "session", sessionID)
	}
	return nil
}

// Heartbeat 续期会话 TTL；会话已过期时返回 ErrSessionGone
func (p *RedisPresence) Heartbeat(ctx context.Context, sessionID, userID string) error {
	keys := []string{p.sessionKey(sessionID), p.userKey(userID)}
	n, err := p.beat.Run(ctx, p.rdb, keys, int64(p.conf.TTL/time.Second), sessionID).Int()
	if err != nil {
		return errs.WrapMsg(err, "presence heartbeat", "session", sessionID)
	}
	if n == 0 {
		return errs.ErrSessionGone.WrapMsg("presence expired", "session", sessionID)
	}
	return nil
}

// SessionRecord 会话 hash 的内容
type SessionRecord struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	NodeID    int64     `json:"nodeId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Sessions 列出用户当前在线的语音会话（跨节点）；过期的索引项顺手清掉
func (p *RedisPresence) Sessions(ctx context.Context, userID string) ([]SessionRecord, error) {
	ids, err := p.rdb.SMembers(ctx, p.userKey(userID)).Result()
	if err != nil {
		return nil, errs.WrapMsg(err, "presence members", "user", userID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := p.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, p.sessionKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, errs.WrapMsg(err, "presence load", "user", userID)
	}

	out := make([]SessionRecord, 0, len(ids))
	var stale []any
	for i, cmd := range cmds {
		m := cmd.Val()
		if len(m) == 0 {
			stale = append(stale, ids[i])
			continue
		}
		node, _ := strconv.ParseInt(m["node_id"], 10, 64)
		ms, _ := strconv.ParseInt(m["created_at"], 10, 64)
		out = append(out, SessionRecord{
			SessionID: ids[i],
			UserID:    m["user_id"],
			Username:  m["username"],
			NodeID:    node,
			CreatedAt: time.UnixMilli(ms),
		})
	}
	if len(stale) > 0 {
		_ = p.rdb.SRem(ctx, p.userKey(userID), stale...).Err()
	}
	return out, nil
}

// IsOnline 用户是否有任意在线会话
func (p *RedisPresence) IsOnline(ctx context.Context, userID string) (bool, error) {
	list, err := p.Sessions(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(list) > 0, nil
}

package speech

import (
	"context"
	"time"
)

// ClientSink 中继向客户端下行的出口，由 Session 实现
type ClientSink interface {
	SendResult(text string)
	SendError(message string)
}

// TranscriptEvent 最终识别结果，发布给下游（行程规划等）
type TranscriptEvent struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Final     bool   `json:"final"`
	Ts        int64  `json:"ts"`
}

// TranscriptSink 由 natsx 实现；nil 表示不发布
type TranscriptSink interface {
	PublishTranscript(ctx context.Context, ev TranscriptEvent) error
}

// PresenceInfo 会话在线信息
type PresenceInfo struct {
	SessionID string
	UserID    string
	Username  string
	NodeID    int64
	CreatedAt time.Time
}

// Presence 由 storage 实现；nil 表示不上报
type Presence interface {
	Online(ctx context.Context, info PresenceInfo) error
	Offline(ctx context.Context, sessionID, userID string) error
	// Heartbeat 续期；长会话靠它不被 TTL 清掉
	Heartbeat(ctx context.Context, sessionID, userID string) error
}

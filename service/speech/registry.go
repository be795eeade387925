package speech

import (
	"context"
	"time"

	"TravelRelay/global"
	"TravelRelay/logger"
	"TravelRelay/service/metrics"
	"TravelRelay/tools/errs"
	"TravelRelay/tools/security"

	"github.com/puzpuzpuz/xsync/v4"
)

const presenceTimeout = 2 * time.Second

// Deps 每个会话中继共享的依赖
type Deps struct {
	NodeID   int64
	Xunfei   global.XunfeiConfig
	Relay    global.RelayConfig
	Signer   URLSigner
	Dialer   Dialer
	Presence Presence       // 可为 nil
	Sink     TranscriptSink // 可为 nil
	Metrics  *metrics.Collector
}

// Registry sessionID -> *Session，进程内唯一
type Registry struct {
	deps     Deps
	sessions *xsync.Map[string, *Session]
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:     deps,
		sessions: xsync.NewMap[string, *Session](),
	}
}

// Create 建会话并挂上中继；ID 冲突返回 ErrSessionExists
func (r *Registry) Create(id string, ident security.Identity) (*Session, error) {
	if id == "" {
		return nil, errs.ErrArgs.WrapMsg("empty session id")
	}
	s := newSession(id, ident, r.deps.Relay.SendQueueSize)
	s.relay = NewRelay(RelayOptions{
		SessionID: id,
		Identity:  ident,
		Xunfei:    r.deps.Xunfei,
		Config:    r.deps.Relay,
		Signer:    r.deps.Signer,
		Dialer:    r.deps.Dialer,
		Client:    s,
		Sink:      r.deps.Sink,
		Metrics:   r.deps.Metrics,
	})

	if _, loaded := r.sessions.LoadOrStore(id, s); loaded {
		s.Close()
		return nil, errs.ErrSessionExists.WrapMsg("", "sessionId", id)
	}
	r.deps.Metrics.SessionOpened()

	if r.deps.Presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
		defer cancel()
		if err := r.deps.Presence.Online(ctx, r.presenceInfo(s)); err != nil {
			logger.Warnf("[Registry] presence online failed session=%s err=%v", id, err)
		}
	}
	return s, nil
}

func (r *Registry) Get(id string) (*Session, bool) {
	return r.sessions.Load(id)
}

// Remove 注销并销毁会话（关闭上游），重复调用无副作用
func (r *Registry) Remove(id string) {
	s, ok := r.sessions.LoadAndDelete(id)
	if !ok {
		return
	}
	s.Close()
	r.deps.Metrics.SessionClosed()

	if r.deps.Presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
		defer cancel()
		if err := r.deps.Presence.Offline(ctx, id, s.UserID); err != nil {
			logger.Warnf("[Registry] presence offline failed session=%s err=%v", id, err)
		}
	}
}

// Heartbeat 续期会话在线状态，随客户端 ping 周期调用
func (r *Registry) Heartbeat(id string) {
	if r.deps.Presence == nil {
		return
	}
	s, ok := r.sessions.Load(id)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	err := r.deps.Presence.Heartbeat(ctx, id, s.UserID)
	if errs.ErrSessionGone.Is(err) {
		// Redis 侧已丢失（重启/淘汰），重新登记
		err = r.deps.Presence.Online(ctx, r.presenceInfo(s))
	}
	if err != nil {
		logger.Warnf("[Registry] presence heartbeat failed session=%s err=%v", id, err)
	}
}

func (r *Registry) presenceInfo(s *Session) PresenceInfo {
	return PresenceInfo{
		SessionID: s.ID,
		UserID:    s.UserID,
		Username:  s.Username,
		NodeID:    r.deps.NodeID,
		CreatedAt: s.CreatedAt,
	}
}

func (r *Registry) Len() int {
	return r.sessions.Size()
}

func (r *Registry) Range(f func(s *Session) bool) {
	r.sessions.Range(func(_ string, s *Session) bool {
		return f(s)
	})
}

// CloseAll 进程退出时调用
func (r *Registry) CloseAll() {
	var ids []string
	r.sessions.Range(func(id string, _ *Session) bool {
		ids = append(ids, id)
		return true
	})
	for _, id := range ids {
		r.Remove(id)
	}
	if len(ids) > 0 {
		logger.Infof("[Registry] closed %d sessions", len(ids))
	}
}

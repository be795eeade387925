package speech

import (
	"sync"
	"time"

	"TravelRelay/tools/security"
)

// Session 一条客户端 WebSocket 连接及其中继
type Session struct {
	ID string
	security.Identity
	CreatedAt time.Time

	relay     *Relay
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id string, ident security.Identity, queueSize int) *Session {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Session{
		ID:        id,
		Identity:  ident,
		CreatedAt: time.Now(),
		out:       make(chan []byte, queueSize),
		done:      make(chan struct{}),
	}
}

func (s *Session) Relay() *Relay { return s.relay }

// Outbound 写协程消费的下行帧
func (s *Session) Outbound() <-chan []byte { return s.out }

func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) SendResult(text string) { s.enqueue(EncodeResult(text)) }

func (s *Session) SendError(message string) { s.enqueue(EncodeError(message)) }

// enqueue 队列满时阻塞直到写协程消费或会话关闭；关闭后静默丢弃
func (s *Session) enqueue(frame []byte) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.out <- frame:
	case <-s.done:
	}
}

// Close 幂等；out 不关闭，避免并发发送 panic
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.relay != nil {
			s.relay.Close()
		}
	})
}

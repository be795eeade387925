package speech

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errFakeClosed = errors.New("use of closed network connection")

type fakeRead struct {
	data []byte
	err  error
}

// fakeConn 记录写入的帧，读端由测试推送
type fakeConn struct {
	mu        sync.Mutex
	writes    [][]byte
	controls  int
	closes    int
	writeErr  error
	incoming  chan fakeRead
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan fakeRead, 64),
		done:     make(chan struct{}),
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closes > 0 {
		return errFakeClosed
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) WriteControl(int, []byte, time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controls++
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case m := <-c.incoming:
		if m.err != nil {
			return 0, nil, m.err
		}
		return websocket.TextMessage, m.data, nil
	case <-c.done:
		return 0, nil, errFakeClosed
	}
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) push(v any) {
	b, _ := json.Marshal(v)
	c.incoming <- fakeRead{data: b}
}

func (c *fakeConn) pushRaw(b []byte) { c.incoming <- fakeRead{data: b} }

func (c *fakeConn) pushErr(err error) { c.incoming <- fakeRead{err: err} }

func (c *fakeConn) frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// fakeDialer gate 非 nil 时阻塞到 gate 关闭或 ctx 结束
type fakeDialer struct {
	mu    sync.Mutex
	dials int
	urls  []string
	conns []*fakeConn
	gate  chan struct{}
	err   error
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (UpstreamConn, error) {
	d.mu.Lock()
	d.dials++
	d.urls = append(d.urls, url)
	gate, dialErr := d.gate, d.err
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if dialErr != nil {
		return nil, dialErr
	}
	c := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

type staticSigner struct {
	url string
	err error
}

func (s staticSigner) Sign() (string, error) { return s.url, s.err }

// recorder 充当客户端出口
type recorder struct {
	mu      sync.Mutex
	results []string
	errors  []string
}

func (r *recorder) SendResult(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, text)
}

func (r *recorder) SendError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, message)
}

func (r *recorder) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.results...), append([]string(nil), r.errors...)
}

type sinkRecorder struct {
	mu     sync.Mutex
	events []TranscriptEvent
}

func (s *sinkRecorder) PublishTranscript(_ context.Context, ev TranscriptEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *sinkRecorder) snapshot() []TranscriptEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TranscriptEvent(nil), s.events...)
}

// 上游响应构造
func resultMsg(status int, words ...string) map[string]any {
	ws := make([]any, 0, len(words))
	for _, w := range words {
		ws = append(ws, map[string]any{"cw": []any{map[string]any{"w": w}}})
	}
	return map[string]any{
		"code":    0,
		"message": "success",
		"sid":     "iat000000@test",
		"data": map[string]any{
			"status": status,
			"result": map[string]any{"ws": ws},
		},
	}
}

func decodeFrame(b []byte) map[string]any {
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	return m
}

func frameStatus(b []byte) int {
	m := decodeFrame(b)
	data, _ := m["data"].(map[string]any)
	st, _ := data["status"].(float64)
	return int(st)
}

package speech

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TravelRelay/global"
	"TravelRelay/logger"
	"TravelRelay/service/metrics"
	"TravelRelay/tools/errs"
	"TravelRelay/tools/safe"
	"TravelRelay/tools/security"

	"github.com/gorilla/websocket"
)

const (
	closeGrace     = time.Second
	publishTimeout = 3 * time.Second
)

type RelayOptions struct {
	SessionID string
	Identity  security.Identity
	Xunfei    global.XunfeiConfig
	Config    global.RelayConfig

	Signer  URLSigner
	Dialer  Dialer
	Client  ClientSink
	Sink    TranscriptSink     // 可为 nil
	Metrics *metrics.Collector // 可为 nil
}

type emitKind int

const (
	emitResult emitKind = iota
	emitFinal
	emitError
)

// emission 锁内算出、解锁后再下发，避免客户端慢写卡住状态机
type emission struct {
	kind emitKind
	text string
}

// Relay 一个客户端会话对应的上游中继状态机。
//
// 所有状态迁移、队列和累积文本都在 mu 内修改；上游写也在 mu 内完成，
// 因此同一条上游连接上的帧严格按调用顺序发出。读协程与写路径通过 gen
// 区分不同轮次的 start，过期轮次的回调一律丢弃。
type Relay struct {
	opts   RelayOptions
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	state        State
	gen          uint64
	conn         UpstreamConn
	pending      [][]byte
	transcript   string
	endRequested bool // Connecting 期间收到 end，配置完成后补发
	overflowed   bool // 本轮排队溢出已告知客户端
	malformed    int  // 连续解析失败次数
	endTimer     *time.Timer
	dialStart    time.Time
	closed       bool
}

func NewRelay(opts RelayOptions) *Relay {
	opts.Config = withRelayDefaults(opts.Config)
	ctx, cancel := context.WithCancel(context.Background())
	return &Relay{
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		state:  StateIdle,
	}
}

func withRelayDefaults(c global.RelayConfig) global.RelayConfig {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.EndTimeout <= 0 {
		c.EndTimeout = 10 * time.Second
	}
	if c.MaxPendingChunks <= 0 {
		c.MaxPendingChunks = 512
	}
	if c.MaxMalformed <= 0 {
		c.MaxMalformed = 5
	}
	return c
}

func (r *Relay) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Transcript 当前累积文本
func (r *Relay) Transcript() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transcript
}

func (r *Relay) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Start 开始一轮识别：签名、异步建连。上游已存在或正在建立时忽略。
func (r *Relay) Start() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if r.state.active() {
		state := r.state
		r.mu.Unlock()
		logger.Warnf("[Relay] session=%s start ignored, state=%s", r.opts.SessionID, state)
		return
	}

	r.resetLocked()
	r.gen++
	gen := r.gen

	url, err := r.opts.Signer.Sign()
	if err != nil {
		out := r.failLocked("sign", errs.ErrSignFailed.Message(), err)
		r.mu.Unlock()
		r.deliver(out)
		return
	}
	r.state = StateConnecting
	r.dialStart = time.Now()
	r.mu.Unlock()

	logger.Infof("[Relay] session=%s user=%s connecting upstream", r.opts.SessionID, r.opts.Identity.UserID)
	safe.Go("relay-upstream-"+r.opts.SessionID, func() {
		r.connect(gen, url)
	}, func(err error) {
		r.abort(gen, err)
	})
}

// Audio 转发或缓存一段 PCM。chunk 的所有权交给 Relay。
func (r *Relay) Audio(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	var out []emission
	switch r.state {
	case StateConnecting, StateConfiguring:
		switch {
		case r.endRequested:
			r.opts.Metrics.AudioChunk(metrics.ChunkDropped)
			logger.Warnf("[Relay] session=%s audio after end dropped", r.opts.SessionID)
		case len(r.pending) >= r.opts.Config.MaxPendingChunks:
			r.opts.Metrics.AudioChunk(metrics.ChunkDropped)
			if !r.overflowed {
				r.overflowed = true
				logger.Warnf("[Relay] session=%s pending audio full (%d), dropping", r.opts.SessionID, len(r.pending))
				out = append(out, emission{kind: emitError, text: errs.ErrAudioOverflow.Message()})
			}
		default:
			r.pending = append(r.pending, chunk)
			r.opts.Metrics.AudioChunk(metrics.ChunkQueued)
		}

	case StateStreaming:
		r.pending = append(r.pending, chunk)
		if err := r.flushLocked(); err != nil {
			out = r.failLocked("write", errs.ErrUpstreamWrite.Message(), err)
		}

	default:
		state := r.state
		r.mu.Unlock()
		r.opts.Metrics.AudioChunk(metrics.ChunkDropped)
		logger.Warnf("[Relay] session=%s audio dropped, state=%s", r.opts.SessionID, state)
		return
	}
	r.mu.Unlock()
	r.deliver(out)
}

// End 结束当前一轮：补发缓存音频后发送结束帧。重复调用无副作用。
func (r *Relay) End() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	var out []emission
	switch r.state {
	case StateConnecting, StateConfiguring:
		r.endRequested = true
	case StateStreaming:
		if err := r.finishLocked(r.gen); err != nil {
			out = r.failLocked("write", errs.ErrUpstreamWrite.Message(), err)
		}
	case StateEnding:
	default:
		state := r.state
		r.mu.Unlock()
		logger.Warnf("[Relay] session=%s end ignored, state=%s", r.opts.SessionID, state)
		return
	}
	r.mu.Unlock()
	r.deliver(out)
}

// Close 会话销毁时调用，幂等。会取消正在进行的建连。
func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.gen++
	r.stopEndTimerLocked()
	r.closeConnLocked()
	r.pending = nil
	r.transcript = ""
	r.endRequested = false
	if r.state.active() {
		r.state = StateClosed
	}
	r.mu.Unlock()

	r.cancel()
}

func (r *Relay) connect(gen uint64, url string) {
	ctx, cancel := context.WithTimeout(r.ctx, r.opts.Config.DialTimeout)
	conn, err := r.opts.Dialer.Dial(ctx, url)
	cancel()

	r.mu.Lock()
	if r.closed || r.gen != gen || r.state != StateConnecting {
		r.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		out := r.failLocked("dial", errs.ErrUpstreamDial.Message(), err)
		r.mu.Unlock()
		r.deliver(out)
		return
	}

	r.conn = conn
	r.state = StateConfiguring
	r.opts.Metrics.UpstreamConnected(time.Since(r.dialStart))
	out, ok := r.configureLocked(gen)
	r.mu.Unlock()
	r.deliver(out)
	if !ok {
		return
	}

	logger.Infof("[Relay] session=%s upstream streaming", r.opts.SessionID)
	r.readLoop(gen, conn)
}

// configureLocked 参数帧 -> Streaming -> 补发缓存音频 -> 补发 end
func (r *Relay) configureLocked(gen uint64) ([]emission, bool) {
	first, err := encodeFirstFrame(r.opts.Xunfei)
	if err == nil {
		err = r.writeLocked(first)
	}
	if err != nil {
		return r.failLocked("write", errs.ErrUpstreamWrite.Message(), err), false
	}

	r.state = StateStreaming
	if err := r.flushLocked(); err != nil {
		return r.failLocked("write", errs.ErrUpstreamWrite.Message(), err), false
	}
	if r.endRequested {
		if err := r.finishLocked(gen); err != nil {
			return r.failLocked("write", errs.ErrUpstreamWrite.Message(), err), false
		}
	}
	return nil, true
}

func (r *Relay) readLoop(gen uint64, conn UpstreamConn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			r.upstreamClosed(gen, err)
			return
		}
		r.upstreamMessage(gen, data)
	}
}

func (r *Relay) upstreamMessage(gen uint64, data []byte) {
	r.mu.Lock()
	if r.closed || r.gen != gen || !r.state.active() {
		r.mu.Unlock()
		return
	}

	var out []emission
	ev, err := parseUpstream(data)
	switch {
	case err != nil:
		r.malformed++
		if r.malformed >= r.opts.Config.MaxMalformed {
			out = r.failLocked("malformed", errs.ErrUpstreamMalformed.Message(), err)
			break
		}
		logger.Warnf("[Relay] session=%s malformed upstream message (%d/%d): %v",
			r.opts.SessionID, r.malformed, r.opts.Config.MaxMalformed, err)
		out = append(out, emission{kind: emitError, text: errs.ErrUpstreamMalformed.Message()})

	case ev.Code != 0:
		r.malformed = 0
		logger.Warnf("[Relay] session=%s provider error code=%d sid=%s msg=%s",
			r.opts.SessionID, ev.Code, ev.Sid, ev.Message)
		r.opts.Metrics.UpstreamFailure("provider")
		ce := errs.ErrProvider.WithDetail(fmt.Sprintf("%s (code=%d)", ev.Message, ev.Code))
		out = append(out, emission{kind: emitError, text: ce.Message()})

	case ev.HasResult:
		r.malformed = 0
		switch ev.Status {
		case statusContinue:
			// 中间结果整段替换
			r.transcript = ev.Text
			out = append(out, emission{kind: emitResult, text: ev.Text})
		case statusLast:
			r.transcript += ev.Text
			out = append(out, emission{kind: emitFinal, text: r.transcript})
		default:
			logger.Debugf("[Relay] session=%s result status=%d ignored", r.opts.SessionID, ev.Status)
		}

	default:
		r.malformed = 0
	}
	r.mu.Unlock()
	r.deliver(out)
}

func (r *Relay) upstreamClosed(gen uint64, err error) {
	r.mu.Lock()
	if r.closed || r.gen != gen {
		r.mu.Unlock()
		return
	}

	var out []emission
	switch r.state {
	case StateEnding:
		r.stopEndTimerLocked()
		r.closeConnLocked()
		r.state = StateClosed
		logger.Infof("[Relay] session=%s upstream finished", r.opts.SessionID)
	case StateConfiguring, StateStreaming:
		if isNormalClose(err) {
			r.closeConnLocked()
			r.pending = nil
			r.state = StateClosed
			logger.Infof("[Relay] session=%s upstream closed normally while streaming", r.opts.SessionID)
		} else {
			out = r.failLocked("closed", errs.ErrUpstreamClosed.Message(), err)
		}
	default:
		r.closeConnLocked()
	}
	r.mu.Unlock()
	r.deliver(out)
}

func (r *Relay) endTimedOut(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.gen != gen || r.state != StateEnding {
		return
	}
	logger.Warnf("[Relay] session=%s upstream did not finish within %s, closing",
		r.opts.SessionID, r.opts.Config.EndTimeout)
	r.endTimer = nil
	r.closeConnLocked()
	r.state = StateClosed
}

// abort 上游协程 panic 时兜底
func (r *Relay) abort(gen uint64, err error) {
	r.mu.Lock()
	if r.closed || r.gen != gen || !r.state.active() {
		r.mu.Unlock()
		return
	}
	out := r.failLocked("panic", errs.ErrInternal.Message(), err)
	r.mu.Unlock()
	r.deliver(out)
}

// finishLocked 补发缓存音频 + 结束帧，进入 Ending 并启动收尾计时
func (r *Relay) finishLocked(gen uint64) error {
	if err := r.flushLocked(); err != nil {
		return err
	}
	last, err := encodeLastFrame()
	if err != nil {
		return err
	}
	if err := r.writeLocked(last); err != nil {
		return err
	}
	r.state = StateEnding
	r.endRequested = false
	r.stopEndTimerLocked()
	r.endTimer = time.AfterFunc(r.opts.Config.EndTimeout, func() { r.endTimedOut(gen) })
	logger.Debugf("[Relay] session=%s end frame sent", r.opts.SessionID)
	return nil
}

func (r *Relay) flushLocked() error {
	for len(r.pending) > 0 {
		chunk := r.pending[0]
		r.pending[0] = nil
		r.pending = r.pending[1:]

		frame, err := encodeAudioFrame(chunk)
		if err != nil {
			return err
		}
		if err := r.writeLocked(frame); err != nil {
			return err
		}
		r.opts.Metrics.AudioChunk(metrics.ChunkForwarded)
	}
	r.pending = nil
	r.overflowed = false
	return nil
}

func (r *Relay) writeLocked(data []byte) error {
	if r.conn == nil {
		return errs.ErrUpstreamClosed.Wrap()
	}
	_ = r.conn.SetWriteDeadline(time.Now().Add(r.opts.Config.WriteTimeout))
	if err := r.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errs.WrapMsg(err, "write upstream", "session", r.opts.SessionID)
	}
	return nil
}

// failLocked 进入 Failed 并释放上游，返回给客户端的 error 帧
func (r *Relay) failLocked(reason, message string, cause error) []emission {
	logger.Warnf("[Relay] session=%s failed reason=%s state=%s err=%v",
		r.opts.SessionID, reason, r.state, cause)
	r.state = StateFailed
	r.stopEndTimerLocked()
	r.closeConnLocked()
	r.pending = nil
	r.endRequested = false
	r.opts.Metrics.UpstreamFailure(reason)
	return []emission{{kind: emitError, text: message}}
}

func (r *Relay) resetLocked() {
	r.stopEndTimerLocked()
	r.pending = nil
	r.transcript = ""
	r.endRequested = false
	r.overflowed = false
	r.malformed = 0
}

func (r *Relay) stopEndTimerLocked() {
	if r.endTimer != nil {
		r.endTimer.Stop()
		r.endTimer = nil
	}
}

// closeConnLocked 关闭后立即置空，保证同一连接只关一次
func (r *Relay) closeConnLocked() {
	if r.conn == nil {
		return
	}
	conn := r.conn
	r.conn = nil
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeGrace))
	_ = conn.Close()
}

func (r *Relay) deliver(out []emission) {
	for _, e := range out {
		switch e.kind {
		case emitResult:
			r.opts.Metrics.Result(metrics.ResultInterim)
			r.opts.Client.SendResult(e.text)
		case emitFinal:
			r.opts.Metrics.Result(metrics.ResultFinal)
			r.opts.Client.SendResult(e.text)
			r.publish(e.text)
		case emitError:
			r.opts.Metrics.ClientError()
			r.opts.Client.SendError(e.text)
		}
	}
}

func (r *Relay) publish(text string) {
	if r.opts.Sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	ev := TranscriptEvent{
		SessionID: r.opts.SessionID,
		UserID:    r.opts.Identity.UserID,
		Username:  r.opts.Identity.Username,
		Text:      text,
		Final:     true,
		Ts:        time.Now().UnixMilli(),
	}
	if err := r.opts.Sink.PublishTranscript(ctx, ev); err != nil {
		logger.Warnf("[Relay] session=%s publish transcript failed: %v", r.opts.SessionID, err)
	}
}

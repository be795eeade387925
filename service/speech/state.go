package speech

// State 单个会话中继的生命周期
type State int32

const (
	StateIdle        State = iota // 已连接，尚未 start
	StateConnecting               // 正在建立上游连接
	StateConfiguring              // 上游已连接，首帧（参数帧）尚未写完
	StateStreaming                // 音频直通
	StateEnding                   // 已发送结束帧，等待上游收尾
	StateClosed                   // 正常结束，可再次 start
	StateFailed                   // 上游异常，可再次 start
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConfiguring:
		return "configuring"
	case StateStreaming:
		return "streaming"
	case StateEnding:
		return "ending"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// active 上游连接存在或正在建立
func (s State) active() bool {
	switch s {
	case StateConnecting, StateConfiguring, StateStreaming, StateEnding:
		return true
	}
	return false
}

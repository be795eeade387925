package ids

import (
	"strconv"
	"sync"
	"time"
)

// 41 位毫秒时间戳 | 10 位节点 | 12 位序列
const (
	nodeBits = 10
	seqBits  = 12
	maxNode  = 1<<nodeBits - 1
	seqMask  = 1<<seqBits - 1
)

var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Generator 雪花 ID 生成器，会话 ID 由它在 accept 时分配
type Generator struct {
	mu       sync.Mutex
	nodeID   int64
	seq      int64
	lastTSMS int64
	now      func() time.Time
}

var (
	defaultGen *Generator
	once       sync.Once
)

func initDefault() {
	once.Do(func() {
		defaultGen = NewGenerator(1, nil)
	})
}

// NewGenerator nodeID 超出 0~1023 时回落为 1；now 为 nil 用 time.Now
func NewGenerator(nodeID int64, now func() time.Time) *Generator {
	if nodeID < 0 || nodeID > maxNode {
		nodeID = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{nodeID: nodeID, now: now}
}

// Generate 生成一个新的雪花ID
func Generate() int64 {
	initDefault()
	return defaultGen.Next()
}

func GenerateString() string {
	return strconv.FormatInt(Generate(), 10)
}

// SetNodeID 设置默认生成器的 nodeID，在 main() 初始化时调用
func SetNodeID(nodeID int64) {
	initDefault()
	if nodeID < 0 || nodeID > maxNode {
		nodeID = 1
	}
	defaultGen.mu.Lock()
	defaultGen.nodeID = nodeID
	defaultGen.mu.Unlock()
}

func (g *Generator) NextString() string {
	return strconv.FormatInt(g.Next(), 10)
}

func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UnixMilli()
	if now < g.lastTSMS {
		// 时钟回拨：沿用上一个时间戳继续发号，保证单调
		now = g.lastTSMS
	}
	if now == g.lastTSMS {
		g.seq = (g.seq + 1) & seqMask
		if g.seq == 0 {
			// 同一毫秒序列用尽，借用下一毫秒
			now = g.lastTSMS + 1
		}
	} else {
		g.seq = 0
	}
	g.lastTSMS = now

	ts := (now - epoch.UnixMilli()) & (1<<41 - 1)
	return ts<<(nodeBits+seqBits) | g.nodeID<<seqBits | g.seq
}

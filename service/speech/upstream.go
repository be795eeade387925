package speech

import (
	"context"
	"io"
	"time"

	"TravelRelay/tools/errs"

	"github.com/gorilla/websocket"
)

// UpstreamConn 到识别服务的单条 WebSocket 连接；*websocket.Conn 直接满足。
// 写操作由 Relay 在自身锁内串行化，读只在读协程里进行。
type UpstreamConn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	ReadMessage() (messageType int, p []byte, err error)
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer 按签名 URL 建立上游连接
type Dialer interface {
	Dial(ctx context.Context, url string) (UpstreamConn, error)
}

// WSDialer gorilla 实现
type WSDialer struct {
	dialer *websocket.Dialer
}

func NewWSDialer(handshakeTimeout time.Duration) *WSDialer {
	d := *websocket.DefaultDialer
	if handshakeTimeout > 0 {
		d.HandshakeTimeout = handshakeTimeout
	}
	return &WSDialer{dialer: &d}
}

func (d *WSDialer) Dial(ctx context.Context, url string) (UpstreamConn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			// 讯飞握手失败时 body 里有原因（签名过期、appid 无权限等）
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			_ = resp.Body.Close()
			return nil, errs.WrapMsg(err, "upstream handshake rejected", "status", resp.StatusCode, "body", string(body))
		}
		return nil, errs.Wrap(err)
	}
	return conn, nil
}

// isNormalClose 上游以 1000 正常关闭
func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure)
}

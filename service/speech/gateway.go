package speech

import (
	"net/http"
	"time"

	"TravelRelay/global"
	"TravelRelay/logger"
	midsec "TravelRelay/middleware/security"
	"TravelRelay/tools/errs"
	"TravelRelay/tools/ids"
	"TravelRelay/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Gateway 客户端 WebSocket 入口：升级、分配会话、读写循环
type Gateway struct {
	registry *Registry
	cfg      global.RelayConfig
	upgrader websocket.Upgrader
	newID    func() string
}

// NewGateway checkOrigin 为 nil 时放行全部（由 Origin 中间件把关）
func NewGateway(registry *Registry, cfg global.RelayConfig, checkOrigin func(r *http.Request) bool) *Gateway {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 25 * time.Second
	}
	if cfg.PongWait <= cfg.PingInterval {
		cfg.PongWait = cfg.PingInterval * 3
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 1 << 20
	}
	return &Gateway{
		registry: registry,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		newID: ids.GenerateString,
	}
}

func (g *Gateway) Registry() *Registry { return g.registry }

// HandleWS 必须挂在 Handshake 中间件之后
func (g *Gateway) HandleWS(c *gin.Context) {
	ident, ok := midsec.IdentityFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrUnauthorized)
		return
	}

	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写过错误响应
		logger.Warnf("[WS] upgrade failed remote=%s err=%v", c.ClientIP(), err)
		return
	}

	sessionID := g.newID()
	sess, err := g.registry.Create(sessionID, ident)
	if err != nil {
		logger.Errorf("[WS] create session failed: %v", err)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable"),
			time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}
	logger.Infof("[WS] connected session=%s user=%s(%s) remote=%s",
		sessionID, ident.Username, ident.UserID, c.ClientIP())

	ws.SetReadLimit(g.cfg.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	})

	writerDone := make(chan struct{})
	safe.Go("ws-writer-"+sessionID, func() {
		defer close(writerDone)
		g.writeLoop(ws, sess)
	}, func(error) {
		g.registry.Remove(sessionID)
	})

	g.readLoop(ws, sess)

	// 读循环退出 = 连接结束，统一在这里清理
	g.registry.Remove(sessionID)
	<-writerDone
	_ = ws.Close()
	logger.Infof("[WS] disconnected session=%s user=%s", sessionID, ident.UserID)
}

func (g *Gateway) readLoop(ws *websocket.Conn, sess *Session) {
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Warnf("[WS] read error session=%s err=%v", sess.ID, err)
			} else {
				logger.Debugf("[WS] read closed session=%s err=%v", sess.ID, err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(g.cfg.PongWait))

		switch mt {
		case websocket.TextMessage:
			g.handleControl(sess, data)
		case websocket.BinaryMessage:
			sess.Relay().Audio(data)
		}
	}
}

func (g *Gateway) handleControl(sess *Session, data []byte) {
	frame, err := ParseControl(data)
	if err != nil {
		logger.Warnf("[WS] bad control frame session=%s err=%v", sess.ID, err)
		sess.SendError(errs.ErrArgs.WithDetailMessage("invalid control frame"))
		return
	}
	switch frame.Type {
	case FrameStart:
		sess.Relay().Start()
	case FrameEnd:
		sess.Relay().End()
	default:
		// 未知类型只告警，不回错误帧
		logger.Warnf("[WS] unknown control type=%q session=%s", frame.Type, sess.ID)
	}
}

// writeLoop 所有对客户端的写都在这里，gorilla 不支持并发写
func (g *Gateway) writeLoop(ws *websocket.Conn, sess *Session) {
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = ws.Close()
	}()

	for {
		select {
		case frame := <-sess.Outbound():
			if err := g.write(ws, frame); err != nil {
				logger.Debugf("[WS] write failed session=%s err=%v", sess.ID, err)
				g.registry.Remove(sess.ID)
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.Debugf("[WS] ping failed session=%s err=%v", sess.ID, err)
				g.registry.Remove(sess.ID)
				return
			}
			g.registry.Heartbeat(sess.ID)
		case <-sess.Done():
			// 尽量把已排队的帧写完
			for {
				select {
				case frame := <-sess.Outbound():
					if err := g.write(ws, frame); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (g *Gateway) write(ws *websocket.Conn, frame []byte) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteMessage(websocket.TextMessage, frame)
}

// Shutdown 关闭全部会话
func (g *Gateway) Shutdown() {
	g.registry.CloseAll()
}

package middleware

import (
	"net/http"
	"sync"

	"TravelRelay/tools/errs"
	"TravelRelay/tools/security"

	"github.com/gin-gonic/gin"
)

// 全局单例 + once
var (
	globalMgr *MiddlewareManager
	once      sync.Once
)

// MiddlewareManager 全局中间件 + 握手鉴权器
type MiddlewareManager struct {
	mu   sync.RWMutex
	mids []gin.HandlerFunc
	auth security.Authenticator
}

// Config ：在程序启动时显式初始化，注册 IsAuth 路由使用的鉴权器
func Config(auth security.Authenticator) {
	Manager().SetAuthenticator(auth)
}

// NewManager 创建新的实例
func NewManager() *MiddlewareManager {
	return &MiddlewareManager{}
}

// Manager ：获取全局实例（惰性初始化，线程安全）
func Manager() *MiddlewareManager {
	once.Do(func() {
		if globalMgr == nil {
			globalMgr = NewManager()
		}
	})
	return globalMgr
}

func (m *MiddlewareManager) SetAuthenticator(auth security.Authenticator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auth = auth
}

func (m *MiddlewareManager) Authenticator() security.Authenticator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.auth
}

// Add 注册一个中间件
func (m *MiddlewareManager) Add(h gin.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = append(m.mids, h)
}

// Clear 清空全部中间件
func (m *MiddlewareManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = nil
}

// Use 返回一个 gin.HandlerFunc，作为总控挂载到 Engine 上
func (m *MiddlewareManager) Use() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.mu.RLock()
		handlers := append([]gin.HandlerFunc{}, m.mids...) // 拷贝一份快照
		m.mu.RUnlock()

		for _, h := range handlers {
			h(c)
			if c.IsAborted() {
				return
			}
		}
		c.Next()
	}
}

func denyAll(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrUnauthorized)
}

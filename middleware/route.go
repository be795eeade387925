package middleware

import (
	midsec "TravelRelay/middleware/security"

	"github.com/gin-gonic/gin"
)

// 配置选项
type RouteOpt struct {
	IsAuth bool
}

// 封装 POST
func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.POST(path, chain(handler, opt)...)
}

// 封装 GET（websocket 升级也走这里）
func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.GET(path, chain(handler, opt)...)
}

func chain(handler gin.HandlerFunc, opt RouteOpt) []gin.HandlerFunc {
	if !opt.IsAuth {
		return []gin.HandlerFunc{handler}
	}
	auth := Manager().Authenticator()
	if auth == nil {
		// 没配置鉴权器时宁可全部拒绝
		return []gin.HandlerFunc{denyAll, handler}
	}
	return []gin.HandlerFunc{midsec.Handshake(auth, midsec.DefaultOptions()), handler}
}

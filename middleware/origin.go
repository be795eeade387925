package middleware

import (
	"net/http"
	"strings"

	"TravelRelay/logger"
	"TravelRelay/tools/errs"

	"github.com/gin-gonic/gin"
)

// Origin 校验浏览器 Origin；allowed 为空或包含 "*" 时放行全部。
// 没有 Origin 头的请求（非浏览器客户端）直接放行。
func Origin(allowed []string) gin.HandlerFunc {
	check := OriginChecker(allowed)
	return func(c *gin.Context) {
		if !check(c.Request) {
			logger.Warnf("[origin] rejected origin=%s path=%s", c.GetHeader("Origin"), c.Request.URL.Path)
			body := errs.ErrArgs.WithDetail("origin not allowed")
			c.AbortWithStatusJSON(http.StatusForbidden, body)
			return
		}
		c.Next()
	}
}

// OriginChecker 可直接作为 websocket.Upgrader.CheckOrigin
func OriginChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[o] = struct{}{}
		}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := strings.TrimRight(strings.ToLower(r.Header.Get("Origin")), "/")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

package security

import (
	"net/http"
	"strings"

	"TravelRelay/logger"
	"TravelRelay/tools/errs"
	"TravelRelay/tools/security"

	"github.com/gin-gonic/gin"
)

// —— context key ——
// 后续 handler 统一用这个 key 读取握手身份
const PPCtxIdentityKey = "identity" // security.Identity

type Options struct {
	QueryToken                string // 默认 "token"（浏览器 WebSocket 无法自定义 header）
	HeaderToken               string // 默认 "authorization"
	EnableAuthorizationBearer bool   // 默认 true
}

func DefaultOptions() *Options {
	return &Options{
		QueryToken:                "token",
		HeaderToken:               "authorization",
		EnableAuthorizationBearer: true,
	}
}

// ExtractToken 按 query -> Authorization: Bearer -> 原始 header 的顺序取凭证
func ExtractToken(r *http.Request, opts *Options) string {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.QueryToken != "" {
		if t := strings.TrimSpace(r.URL.Query().Get(opts.QueryToken)); t != "" {
			return t
		}
	}
	if opts.EnableAuthorizationBearer {
		if authz := strings.TrimSpace(r.Header.Get("Authorization")); authz != "" {
			if len(authz) > len("bearer ") && strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				return strings.TrimSpace(authz[len("bearer "):])
			}
		}
	}
	if opts.HeaderToken != "" {
		t := strings.TrimSpace(r.Header.Get(opts.HeaderToken))
		if !strings.HasPrefix(strings.ToLower(t), "bearer ") {
			return t
		}
	}
	return ""
}

// Handshake 在 WebSocket 升级前校验凭证；失败直接 401，不会创建任何会话。
// 不重试、不缓存。
func Handshake(auth security.Authenticator, opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions()
	}
	return func(c *gin.Context) {
		token := ExtractToken(c.Request, opts)
		if token == "" {
			logger.Infof("[auth] reject upgrade, no credential remote=%s", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrUnauthorized)
			return
		}

		ident, err := auth.Authenticate(token)
		if err != nil {
			logger.Infof("[auth] reject upgrade remote=%s err=%v", c.ClientIP(), err)
			body := errs.ErrUnauthorized
			if code := errs.AsCode(err); code != nil {
				body = *code
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, body)
			return
		}

		c.Set(PPCtxIdentityKey, *ident)
		c.Next()
	}
}

// IdentityFrom 读取 Handshake 写入的身份
func IdentityFrom(c *gin.Context) (security.Identity, bool) {
	v, ok := c.Get(PPCtxIdentityKey)
	if !ok {
		return security.Identity{}, false
	}
	ident, ok := v.(security.Identity)
	if !ok || ident.UserID == "" {
		return security.Identity{}, false
	}
	return ident, true
}

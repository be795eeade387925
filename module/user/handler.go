package user

import (
	"context"
	"net/http"

	midsec "TravelRelay/middleware/security"
	"TravelRelay/service/storage"
	"TravelRelay/tools/errs"
	"TravelRelay/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type devTokenReq struct {
	UserID   string `json:"userId"`
	Username string `json:"username" binding:"required"`
}

// HandlerDevToken 开发环境签发令牌（生产由旅行规划后端签发），userId 为空时随机生成
func HandlerDevToken(opts security.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req devTokenReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
			return
		}
		if req.UserID == "" {
			req.UserID = uuid.NewString()
		}

		token, expireAt, err := security.Generate(opts, req.UserID, req.Username)
		if err != nil {
			if ce := errs.AsCode(err); ce != nil {
				c.JSON(http.StatusBadRequest, ce)
				return
			}
			c.JSON(http.StatusInternalServerError, errs.ErrInternal)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":    token,
			"expireAt": expireAt.Unix(),
			"user": gin.H{
				"id":   req.UserID,
				"name": req.Username,
			},
		})
	}
}

// SessionLister 跨节点查询用户的语音会话
type SessionLister interface {
	Sessions(ctx context.Context, userID string) ([]storage.SessionRecord, error)
}

// HandlerSessions 当前用户在线的语音会话（需挂在 Handshake 之后）
func HandlerSessions(l SessionLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := midsec.IdentityFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, errs.ErrUnauthorized)
			return
		}
		list, err := l.Sessions(c.Request.Context(), ident.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, errs.ErrInternal.WithDetail("presence unavailable"))
			return
		}
		if list == nil {
			list = []storage.SessionRecord{}
		}
		c.JSON(http.StatusOK, gin.H{"userId": ident.UserID, "sessions": list})
	}
}

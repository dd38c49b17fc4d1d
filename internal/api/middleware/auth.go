package middleware

import (
	"Tutorlink/internal/pkg/consts"
	"Tutorlink/internal/pkg/redis"
	"Tutorlink/internal/pkg/response"
	"Tutorlink/internal/pkg/security"
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrTokenRevoked 令牌签名命中注销黑名单
var ErrTokenRevoked = errors.New("token 已被注销")

// tokenBlacklistGet 注销黑名单查询，测试中替换为内存实现
var tokenBlacklistGet = redis.GetValue

// CheckTokenRevoked 按签名查注销黑名单
// REST 中间件与实时通道握手共用，保证登出后两条链路同时失效
func CheckTokenRevoked(ctx context.Context, signature string) error {
	value, err := tokenBlacklistGet(ctx, consts.TokenBlacklistPrefix+signature)
	if err != nil {
		return err
	}
	if value != "" {
		return ErrTokenRevoked
	}
	return nil
}

// ExtractToken 按 Cookie 优先、Header 兜底的顺序取出会话令牌
// websocket 握手复用同一套取值逻辑
func ExtractToken(c *gin.Context) string {
	if cookie, err := c.Cookie(consts.SessionCookieName); err == nil && cookie != "" {
		return cookie
	}
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// AuthMiddleware 负责验证 JWT 并将用户身份信息注入 Context
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ExtractToken(c)
		if tokenString == "" {
			response.Fail(c, response.Unauthorized, "Token 缺失或格式错误")
			c.Abort()
			return
		}

		signature, err := security.ExtractSignature(tokenString)
		if err != nil {
			response.Fail(c, response.Unauthorized, "Token 缺失或格式错误")
			c.Abort()
			return
		}

		if err := CheckTokenRevoked(c.Request.Context(), signature); err != nil {
			if errors.Is(err, ErrTokenRevoked) {
				response.Fail(c, response.Unauthorized, "Token 无效或已过期")
			} else {
				response.Fail(c, response.InternalServerError, "未知错误")
			}
			c.Abort()
			return
		}

		claims, err := security.ValidateToken(tokenString)
		if err != nil {
			response.Fail(c, response.Unauthorized, "Token 无效或已过期")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)

		newCtx := context.WithValue(c.Request.Context(), "user_id", claims.UserID)
		c.Request = c.Request.WithContext(newCtx)

		c.Next()
	}
}

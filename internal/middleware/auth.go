package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"Circle_Social/internal/pkg"
)

const ContextUserIDKey = "user_id"

// SessionChecker 登录服务把每个用户当前有效的 token 写入 redis，用来实现单点登录
type SessionChecker interface {
	ActiveToken(ctx context.Context, userID uint64) (string, error)
	Extend(ctx context.Context, userID uint64) error
}

// Auth 要求登录。sessions 为 nil 时只校验 JWT
func Auth(sessions SessionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "missing authorization header", "code": "UNAUTHORIZED"})
			return
		}
		userID, status, msg := authenticate(c, sessions, authHeader)
		if status != 0 {
			c.AbortWithStatusJSON(status, gin.H{"msg": msg, "code": "UNAUTHORIZED"})
			return
		}
		// 注入 user_id
		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

// OptionalAuth 允许匿名访问；带了 token 则必须有效
func OptionalAuth(sessions SessionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}
		userID, status, msg := authenticate(c, sessions, authHeader)
		if status != 0 {
			c.AbortWithStatusJSON(status, gin.H{"msg": msg, "code": "UNAUTHORIZED"})
			return
		}
		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

func authenticate(c *gin.Context, sessions SessionChecker, authHeader string) (uint64, int, string) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return 0, http.StatusUnauthorized, "invalid authorization format"
	}
	tokenStr := parts[1]

	claims, err := pkg.ParseAccess(tokenStr)
	if err != nil {
		return 0, http.StatusUnauthorized, "invalid or expired token"
	}
	if sessions == nil {
		return claims.UserID, 0, ""
	}

	// redis校验是否是正确的token
	ctx := c.Request.Context()
	origin, err := sessions.ActiveToken(ctx, claims.UserID)
	if err != nil || origin != tokenStr {
		return 0, http.StatusUnauthorized, "account has been logged in elsewhere"
	}
	// 校验通过后更新过期时间
	if err := sessions.Extend(ctx, claims.UserID); err != nil {
		return 0, http.StatusInternalServerError, err.Error()
	}
	return claims.UserID, 0, ""
}

// UserID 取当前登录用户，未登录返回 0
func UserID(c *gin.Context) uint64 {
	if v, ok := c.Get(ContextUserIDKey); ok {
		if id, ok := v.(uint64); ok {
			return id
		}
	}
	return 0
}

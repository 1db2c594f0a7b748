package middlewares

import (
	"net/http"
	"strings"

	"github.com/gbbspro/gbbs-archive/internal/config"
	"github.com/gbbspro/gbbs-archive/internal/pkg/utils"
	"github.com/gbbspro/gbbs-archive/internal/pkg/xerr"
	"github.com/gbbspro/gbbs-archive/internal/settings"
	"github.com/gin-gonic/gin"
)

// bearerToken 从 Authorization 头中取出 token，格式 "Bearer <token>"
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware 强制认证，未携带有效 Token 的请求直接拒绝
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			xerr.AbortWithError(c, http.StatusUnauthorized, xerr.UnauthorizedCode, "Authorization header is required")
			return
		}

		claims, err := utils.ParseToken(tokenString, cfg.JWT.SecretKey)
		if err != nil {
			xerr.AbortWithError(c, http.StatusUnauthorized, xerr.TokenInvalidCode, "Invalid or malformed token")
			return
		}

		// 将用户信息存储到 Gin Context 中，以便后续 Handler 使用
		c.Set("userID", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)

		c.Next()
	}
}

// OptionalAuth 尽力认证，Token 缺失或无效时匿名继续
// 下载入口使用: 是否必须登录由设置决定，在服务层判定
func OptionalAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, ok := bearerToken(c); ok {
			if claims, err := utils.ParseToken(tokenString, cfg.JWT.SecretKey); err == nil {
				c.Set("userID", claims.UserID)
				c.Set("username", claims.Username)
				c.Set("role", claims.Role)
			}
		}
		c.Next()
	}
}

// RequireArchiveManager 要求角色在设置的档案管理许可列表中
// 必须在 AuthMiddleware 之后使用
func RequireArchiveManager(provider settings.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		agg := provider.Settings()
		if !agg.RoleCanEditArchives(role) {
			xerr.AbortWithError(c, http.StatusForbidden, xerr.PermissionDeniedCode, "您没有管理档案的权限")
			return
		}
		c.Next()
	}
}

// RequireAdmin 仅管理员可访问，用于设置管理接口
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != "admin" {
			xerr.AbortWithError(c, http.StatusForbidden, xerr.PermissionDeniedCode, "您没有管理设置的权限")
			return
		}
		c.Next()
	}
}

// CurrentUserID 读取认证中间件写入的用户 ID，匿名请求返回 nil
func CurrentUserID(c *gin.Context) *uint64 {
	v, ok := c.Get("userID")
	if !ok {
		return nil
	}
	id, ok := v.(uint64)
	if !ok {
		return nil
	}
	return &id
}

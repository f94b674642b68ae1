package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smapp/messaging-service/internal/ports/in"
	"github.com/smapp/messaging-service/internal/ports/out"
)

// AuthMiddleware JWT认证中间件。
// 开发模式下允许 X-User-ID / X-Username 请求头直接指定身份，方便本地联调
func AuthMiddleware(validator out.TokenValidator, devMode bool, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if devMode {
			if rawID := c.GetHeader("X-User-ID"); rawID != "" {
				userID, err := strconv.ParseUint(rawID, 10, 64)
				if err != nil || userID == 0 {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid X-User-ID header"})
					return
				}
				c.Set("user_id", userID)
				c.Set("username", c.GetHeader("X-Username"))
				c.Next()
				return
			}
		}

		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := validator.Validate(c.Request.Context(), token)
		if err != nil {
			logger.Warn("token validation failed",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("email", claims.Email)
		c.Next()
	}
}

// identityFromContext 从中间件写入的键还原请求者身份
func identityFromContext(c *gin.Context) in.Identity {
	return in.Identity{
		UserID:   c.GetUint64("user_id"),
		Username: c.GetString("username"),
		Email:    c.GetString("email"),
	}
}

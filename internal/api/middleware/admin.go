package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/d60-Lab/clicker/pkg/logger"
	"github.com/d60-Lab/clicker/pkg/response"
)

const adminKeyHeader = "X-Admin-Key"

// RequireAdmin 令牌角色等于 adminRole，或 X-Admin-Key 与配置的 bcrypt 哈希匹配。
// 必须挂在 Auth 之后
func RequireAdmin(adminRole, adminKeyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			response.Unauthorized(c, "unauthenticated")
			return
		}
		if adminRole != "" && id.Role == adminRole {
			c.Next()
			return
		}
		if key := c.GetHeader(adminKeyHeader); key != "" && adminKeyHash != "" {
			if bcrypt.CompareHashAndPassword([]byte(adminKeyHash), []byte(key)) == nil {
				c.Next()
				return
			}
		}
		logger.Warn("admin access denied", zap.String("user_id", id.UserID), zap.String("path", c.FullPath()))
		response.Forbidden(c, "admin only")
	}
}

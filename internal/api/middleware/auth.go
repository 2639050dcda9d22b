package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/d60-Lab/clicker/internal/service"
	"github.com/d60-Lab/clicker/pkg/logger"
	"github.com/d60-Lab/clicker/pkg/response"
)

const identityKey = "identity"

// Claims 认证方签发的令牌字段；sub 为稳定的用户 ID
type Claims struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	Email     string `json:"email,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	Role      string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

var errInvalidToken = errors.New("invalid token")

// Auth 校验 Bearer 令牌（websocket 握手可用 access_token 查询参数），
// 并把 service.Identity 放入 gin 上下文
func Auth(secret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFrom(c)
		if raw == "" {
			response.Unauthorized(c, "missing bearer token")
			return
		}
		claims, err := ParseToken(secret, issuer, raw)
		if err != nil {
			logger.Debug("token rejected", zap.String("path", c.FullPath()), zap.Error(err))
			response.Unauthorized(c, "invalid token")
			return
		}
		id := service.Identity{
			UserID:    service.NormalizeUserID(claims.Subject),
			Username:  claims.Username,
			FirstName: claims.FirstName,
			Email:     claims.Email,
			ImageURL:  claims.ImageURL,
			Role:      claims.Role,
		}
		if id.UserID == "" {
			response.Unauthorized(c, "token has no subject")
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// ParseToken 校验 HS256 签名、有效期与（可选）签发方
func ParseToken(secret, issuer, raw string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}

// IssueToken 签发令牌，供压测工具与测试使用
func IssueToken(secret, issuer string, id service.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Username:  id.Username,
		FirstName: id.FirstName,
		Email:     id.Email,
		ImageURL:  id.ImageURL,
		Role:      id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// IdentityFrom 取出 Auth 写入的身份
func IdentityFrom(c *gin.Context) (service.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return service.Identity{}, false
	}
	id, ok := v.(service.Identity)
	return id, ok
}

func tokenFrom(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if parts := strings.SplitN(h, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return c.Query("access_token")
}

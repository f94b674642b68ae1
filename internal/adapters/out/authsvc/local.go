// Package authsvc 实现访问令牌校验：本地 HS256 验签、调用认证服务远程校验，
// 以及远程结果的 Redis 缓存。认证协议本身由认证服务负责，这里只做校验
package authsvc

import (
	"context"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/smapp/messaging-service/internal/ports/out"
)

// LocalValidator 用共享密钥在本地解码 JWT（开发模式的快速路径）
type LocalValidator struct {
	secret []byte
}

func NewLocalValidator(secret string) *LocalValidator {
	return &LocalValidator{secret: []byte(secret)}
}

func (v *LocalValidator) Validate(_ context.Context, tokenStr string) (*out.AuthClaims, error) {
	parsed, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}

	// 认证服务的历史版本把用户 ID 放在不同的字段里
	userID, ok := extractUserID(claims, "user_id", "id", "sub")
	if !ok {
		return nil, fmt.Errorf("no user id in token")
	}

	result := &out.AuthClaims{UserID: userID}
	if username, ok := claims["username"].(string); ok {
		result.Username = username
	}
	if email, ok := claims["email"].(string); ok {
		result.Email = email
	}
	return result, nil
}

// extractUserID 按候选字段顺序提取数字用户 ID
func extractUserID(claims jwt.MapClaims, keys ...string) (uint64, bool) {
	for _, key := range keys {
		v, ok := claims[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			if n > 0 {
				return uint64(n), true
			}
		case string:
			if id, err := strconv.ParseUint(n, 10, 64); err == nil && id > 0 {
				return id, true
			}
		}
	}
	return 0, false
}

package authsvc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smapp/messaging-service/internal/ports/out"
)

const (
	// 缓存 Key 前缀
	tokenCacheKeyPrefix = "msg:auth:token:"
	// 缓存时长要明显短于令牌有效期，撤销的令牌最多多活一个 TTL
	tokenCacheTTL = 2 * time.Minute
)

// CachedValidator 用 Redis 缓存校验结果，避免每个请求都打认证服务
type CachedValidator struct {
	inner  out.TokenValidator
	client *redis.Client
}

func NewCachedValidator(inner out.TokenValidator, client *redis.Client) *CachedValidator {
	return &CachedValidator{inner: inner, client: client}
}

// 不把原始令牌当 Key 存进 Redis
func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return tokenCacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (v *CachedValidator) Validate(ctx context.Context, token string) (*out.AuthClaims, error) {
	key := cacheKey(token)

	data, err := v.client.Get(ctx, key).Result()
	if err == nil {
		var claims out.AuthClaims
		if err := json.Unmarshal([]byte(data), &claims); err == nil {
			return &claims, nil
		}
		// 缓存内容损坏时当作未命中
	} else if !errors.Is(err, redis.Nil) {
		// Redis 故障降级为直连校验
		claims, innerErr := v.inner.Validate(ctx, token)
		return claims, innerErr
	}

	claims, err := v.inner.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(claims); err == nil {
		_ = v.client.Set(ctx, key, string(data), tokenCacheTTL).Err()
	}
	return claims, nil
}

package out

import "context"

// AuthClaims 认证服务校验通过后得到的用户身份
type AuthClaims struct {
	UserID   uint64
	Username string
	Email    string
}

// TokenValidator 访问令牌校验器。
// 本服务信任校验结果中的 UserID，不参与认证协议本身
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*AuthClaims, error)
}

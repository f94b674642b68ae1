package authsvc

import (
	"context"
	"errors"

	"github.com/smapp/messaging-service/internal/ports/out"
)

// ChainValidator 按顺序尝试多个校验器，返回第一个成功的结果。
// 开发模式下先本地验签再回退认证服务，生产模式只挂远程校验器
type ChainValidator struct {
	validators []out.TokenValidator
}

func NewChainValidator(validators ...out.TokenValidator) *ChainValidator {
	return &ChainValidator{validators: validators}
}

func (v *ChainValidator) Validate(ctx context.Context, token string) (*out.AuthClaims, error) {
	var errs []error
	for _, val := range v.validators {
		claims, err := val.Validate(ctx, token)
		if err == nil {
			return claims, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no token validators configured")
	}
	return nil, errors.Join(errs...)
}

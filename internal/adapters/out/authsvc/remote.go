package authsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/smapp/messaging-service/internal/ports/out"
)

const validateTimeout = 5 * time.Second

// RemoteValidator 调用认证服务校验令牌。
// 认证服务的契约是 GET {base}/api/auth/validate，带 Bearer 头
type RemoteValidator struct {
	baseURL string
	client  *http.Client
}

func NewRemoteValidator(baseURL string) *RemoteValidator {
	return &RemoteValidator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: validateTimeout},
	}
}

func (v *RemoteValidator) Validate(ctx context.Context, token string) (*out.AuthClaims, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/api/auth/validate", nil)
	if err != nil {
		return nil, fmt.Errorf("build validate request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call auth service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	var body struct {
		UserID   uint64 `json:"user_id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}
	if body.UserID == 0 {
		return nil, fmt.Errorf("auth service returned no user id")
	}

	return &out.AuthClaims{
		UserID:   body.UserID,
		Username: body.Username,
		Email:    body.Email,
	}, nil
}

package out

import (
	"context"

	"github.com/smapp/messaging-service/internal/domain/entity"
)

// UserRepository 用户仓储
type UserRepository interface {
	// GetByID 按 ID 查询，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id uint64) (*entity.User, error)
	// GetByUsername 按用户名查询，不存在时返回 (nil, nil)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	// Create 创建用户
	Create(ctx context.Context, user *entity.User) error
	// Upsert 按用户名获取或创建，已存在时更新非空的资料字段
	Upsert(ctx context.Context, user *entity.User) (*entity.User, error)
}

package out

import (
	"context"

	"github.com/smapp/messaging-service/internal/domain/entity"
)

// ConversationRepository 会话仓储
type ConversationRepository interface {
	// GetByID 按 ID 查询，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id uint64) (*entity.Conversation, error)
	// GetOrCreate 获取两个用户之间的会话，不存在时创建。
	// 成员顺序由实现归一化，调用方无需保证参数顺序
	GetOrCreate(ctx context.Context, user1ID, user2ID uint64) (*entity.Conversation, error)
	// ListByUser 列出用户参与的全部会话，按创建时间倒序
	ListByUser(ctx context.Context, userID uint64) ([]*entity.Conversation, error)
}

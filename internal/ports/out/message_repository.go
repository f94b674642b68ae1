package out

import (
	"context"

	"github.com/smapp/messaging-service/internal/domain/entity"
)

// MessageRepository 消息仓储
type MessageRepository interface {
	// Create 持久化消息并回填 ID
	Create(ctx context.Context, msg *entity.Message) error
	// ListByConversation 按时间正序返回会话内全部消息
	ListByConversation(ctx context.Context, conversationID uint64) ([]*entity.Message, error)
	// LastByConversation 返回会话最新一条消息，没有时返回 (nil, nil)
	LastByConversation(ctx context.Context, conversationID uint64) (*entity.Message, error)
	// UpdateStatus 更新消息投递状态
	UpdateStatus(ctx context.Context, id uint64, status entity.MessageStatus) error
}

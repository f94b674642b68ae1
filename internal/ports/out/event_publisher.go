package out

import (
	"context"

	"github.com/smapp/messaging-service/internal/domain/entity"
)

// EventPublisher 领域事件发布器，未配置消息队列时可以为 nil
type EventPublisher interface {
	// PublishMessageCreated 消息持久化后发布
	PublishMessageCreated(ctx context.Context, msg *entity.Message) error
	// PublishUserStatus 用户在线状态跨越 0↔1 边界时发布，status 为 online|offline
	PublishUserStatus(ctx context.Context, userID uint64, status string) error
	// Close 释放底层生产者
	Close() error
}

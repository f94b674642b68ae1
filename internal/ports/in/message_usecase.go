package in

import (
	"context"
	"errors"

	"github.com/smapp/messaging-service/internal/domain/entity"
)

var (
	// ErrReceiverNotFound 接收方用户不存在
	ErrReceiverNotFound = errors.New("receiver not found")
	// ErrConversationNotFound 会话不存在
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrNotParticipant 请求者不是会话成员
	ErrNotParticipant = errors.New("user is not a participant in this conversation")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
)

// Identity 经过认证的请求者身份，由认证中间件填充
type Identity struct {
	UserID   uint64
	Username string
	Email    string
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	ReceiverID uint64
	Content    string
}

// SyncUserRequest 从认证服务同步用户资料的请求
type SyncUserRequest struct {
	ID        uint64
	Username  string
	Email     string
	Password  string
	FullName  string
	Bio       string
	AvatarURL string
}

// ConversationPreview 会话与最新一条消息的预览
type ConversationPreview struct {
	Conversation *entity.Conversation
	Participant1 *entity.User
	Participant2 *entity.User
	LastMessage  *entity.Message
}

// MessageUseCase 消息用例
type MessageUseCase interface {
	// SendMessage 持久化消息并尝试实时投递；
	// 实时推送成功时持久化状态和返回值都会提升为 delivered
	SendMessage(ctx context.Context, sender Identity, req *SendMessageRequest) (*entity.Message, error)
	// ListConversations 返回用户的全部会话及最新消息预览
	ListConversations(ctx context.Context, user Identity) ([]*ConversationPreview, error)
	// GetConversationMessages 返回会话内全部消息，要求请求者是会话成员
	GetConversationMessages(ctx context.Context, user Identity, conversationID uint64) ([]*entity.Message, error)
	// SyncUser 从认证服务同步（创建或更新）用户
	SyncUser(ctx context.Context, req *SyncUserRequest) (*entity.User, error)
	// RegisterUser 仅开发模式使用的简化注册
	RegisterUser(ctx context.Context, username string) (*entity.User, error)
	// GetUser 按 ID 查询用户
	GetUser(ctx context.Context, id uint64) (*entity.User, error)
	// GetUserByUsername 按用户名查询用户
	GetUserByUsername(ctx context.Context, username string) (*entity.User, error)
}

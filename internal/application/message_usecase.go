package application

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/smapp/messaging-service/internal/domain/entity"
	"github.com/smapp/messaging-service/internal/ports/in"
	"github.com/smapp/messaging-service/internal/ports/out"
	"github.com/smapp/messaging-service/internal/realtime"
	"github.com/smapp/messaging-service/pkg/zlog"
)

// MessageUseCaseImpl 消息用例实现
type MessageUseCaseImpl struct {
	userRepo       out.UserRepository
	convRepo       out.ConversationRepository
	messageRepo    out.MessageRepository
	router         *realtime.Router
	eventPublisher out.EventPublisher
}

// NewMessageUseCase 创建消息用例，eventPublisher 可以为 nil
func NewMessageUseCase(
	userRepo out.UserRepository,
	convRepo out.ConversationRepository,
	messageRepo out.MessageRepository,
	router *realtime.Router,
	eventPublisher out.EventPublisher,
) in.MessageUseCase {
	return &MessageUseCaseImpl{
		userRepo:       userRepo,
		convRepo:       convRepo,
		messageRepo:    messageRepo,
		router:         router,
		eventPublisher: eventPublisher,
	}
}

// SendMessage 持久化消息并尝试实时投递。
// 发送方总是在持久化成功后得到消息，实时投递结果只决定状态字段：
// 推送成功时持久化状态提升为 delivered，否则保持 sent 等待接收方拉取
func (uc *MessageUseCaseImpl) SendMessage(ctx context.Context, sender in.Identity, req *in.SendMessageRequest) (*entity.Message, error) {
	// 确保发送方在本地库存在（从认证服务同步）
	senderUser, err := uc.userRepo.Upsert(ctx, &entity.User{
		ID:       sender.UserID,
		Username: sender.Username,
		Email:    sender.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("sync sender: %w", err)
	}

	receiver, err := uc.userRepo.GetByID(ctx, req.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("load receiver: %w", err)
	}
	if receiver == nil {
		return nil, in.ErrReceiverNotFound
	}

	conv, err := uc.convRepo.GetOrCreate(ctx, senderUser.ID, receiver.ID)
	if err != nil {
		return nil, fmt.Errorf("get or create conversation: %w", err)
	}

	msg := entity.NewMessage(conv.ID, senderUser.ID, req.Content)
	if err := uc.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	uc.publishMessageCreated(msg)

	if uc.router.Route(ctx, receiver.ID, msg) == realtime.OutcomeDeliveredLive {
		if err := uc.messageRepo.UpdateStatus(ctx, msg.ID, entity.MessageStatusDelivered); err != nil {
			// 推送已经成功，状态落库失败只记录，不影响发送方
			zlog.C(ctx).Error("update message status failed",
				zap.Uint64("message_id", msg.ID), zap.Error(err))
		} else {
			msg.MarkDelivered()
		}
	}

	zlog.C(ctx).Info("message sent",
		zap.Uint64("message_id", msg.ID),
		zap.Uint64("sender_id", senderUser.ID),
		zap.Uint64("receiver_id", receiver.ID),
		zap.String("status", string(msg.Status)),
	)
	return msg, nil
}

// ListConversations 返回用户参与的全部会话及最新消息预览
func (uc *MessageUseCaseImpl) ListConversations(ctx context.Context, user in.Identity) ([]*in.ConversationPreview, error) {
	u, err := uc.userRepo.Upsert(ctx, &entity.User{
		ID:       user.UserID,
		Username: user.Username,
		Email:    user.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("sync user: %w", err)
	}

	convs, err := uc.convRepo.ListByUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	previews := make([]*in.ConversationPreview, 0, len(convs))
	for _, conv := range convs {
		p1, err := uc.userRepo.GetByID(ctx, conv.Participant1ID)
		if err != nil {
			return nil, fmt.Errorf("load participant: %w", err)
		}
		p2, err := uc.userRepo.GetByID(ctx, conv.Participant2ID)
		if err != nil {
			return nil, fmt.Errorf("load participant: %w", err)
		}
		last, err := uc.messageRepo.LastByConversation(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("load last message: %w", err)
		}
		previews = append(previews, &in.ConversationPreview{
			Conversation: conv,
			Participant1: p1,
			Participant2: p2,
			LastMessage:  last,
		})
	}
	return previews, nil
}

// GetConversationMessages 返回会话内全部消息，按时间正序。
// 请求者必须是会话成员
func (uc *MessageUseCaseImpl) GetConversationMessages(ctx context.Context, user in.Identity, conversationID uint64) ([]*entity.Message, error) {
	u, err := uc.userRepo.Upsert(ctx, &entity.User{
		ID:       user.UserID,
		Username: user.Username,
		Email:    user.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("sync user: %w", err)
	}

	conv, err := uc.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return nil, in.ErrConversationNotFound
	}
	if !conv.HasParticipant(u.ID) {
		return nil, in.ErrNotParticipant
	}

	return uc.messageRepo.ListByConversation(ctx, conversationID)
}

// SyncUser 从认证服务同步用户（内部接口调用）
func (uc *MessageUseCaseImpl) SyncUser(ctx context.Context, req *in.SyncUserRequest) (*entity.User, error) {
	if req.Email == "" {
		return nil, fmt.Errorf("email is required to sync user")
	}
	return uc.userRepo.Upsert(ctx, &entity.User{
		ID:        req.ID,
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FullName:  req.FullName,
		Bio:       req.Bio,
		AvatarURL: req.AvatarURL,
	})
}

// RegisterUser 开发模式下的简化注册
func (uc *MessageUseCaseImpl) RegisterUser(ctx context.Context, username string) (*entity.User, error) {
	return uc.userRepo.Upsert(ctx, &entity.User{Username: username})
}

// GetUser 按 ID 查询用户
func (uc *MessageUseCaseImpl) GetUser(ctx context.Context, id uint64) (*entity.User, error) {
	u, err := uc.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, in.ErrUserNotFound
	}
	return u, nil
}

// GetUserByUsername 按用户名查询用户
func (uc *MessageUseCaseImpl) GetUserByUsername(ctx context.Context, username string) (*entity.User, error) {
	u, err := uc.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, in.ErrUserNotFound
	}
	return u, nil
}

// publishMessageCreated 事件发布是可选旁路，失败不影响主流程
func (uc *MessageUseCaseImpl) publishMessageCreated(msg *entity.Message) {
	if uc.eventPublisher == nil {
		return
	}
	go func() {
		_ = uc.eventPublisher.PublishMessageCreated(context.Background(), msg)
	}()
}

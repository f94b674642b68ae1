package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/smapp/messaging-service/internal/domain/entity"
	"github.com/smapp/messaging-service/internal/ports/out"
)

// MessageModel GORM模型，status 以字符串落库（sent|delivered|read）
type MessageModel struct {
	ID             uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	ConversationID uint64    `gorm:"column:conversation_id;not null;index"`
	SenderID       uint64    `gorm:"column:sender_id;not null;index"`
	Content        string    `gorm:"column:content;type:text;not null"`
	Timestamp      time.Time `gorm:"column:timestamp;not null;index"`
	Status         string    `gorm:"column:status;type:varchar(16);not null;default:sent"`
}

func (MessageModel) TableName() string {
	return "messages"
}

func (m *MessageModel) toEntity() *entity.Message {
	return &entity.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Timestamp:      m.Timestamp,
		Status:         entity.MessageStatus(m.Status),
	}
}

func messageModelFromEntity(e *entity.Message) *MessageModel {
	return &MessageModel{
		ID:             e.ID,
		ConversationID: e.ConversationID,
		SenderID:       e.SenderID,
		Content:        e.Content,
		Timestamp:      e.Timestamp,
		Status:         string(e.Status),
	}
}

// MessageRepositoryMySQL MySQL消息仓储实现
type MessageRepositoryMySQL struct {
	db *gorm.DB
}

func NewMessageRepositoryMySQL(db *gorm.DB) out.MessageRepository {
	return &MessageRepositoryMySQL{db: db}
}

func (r *MessageRepositoryMySQL) Create(ctx context.Context, msg *entity.Message) error {
	model := messageModelFromEntity(msg)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	msg.ID = model.ID
	return nil
}

func (r *MessageRepositoryMySQL) ListByConversation(ctx context.Context, conversationID uint64) ([]*entity.Message, error) {
	var models []MessageModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	msgs := make([]*entity.Message, 0, len(models))
	for i := range models {
		msgs = append(msgs, models[i].toEntity())
	}
	return msgs, nil
}

func (r *MessageRepositoryMySQL) LastByConversation(ctx context.Context, conversationID uint64) (*entity.Message, error) {
	var model MessageModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.toEntity(), nil
}

func (r *MessageRepositoryMySQL) UpdateStatus(ctx context.Context, id uint64, status entity.MessageStatus) error {
	return r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("id = ?", id).
		Update("status", string(status)).
		Error
}

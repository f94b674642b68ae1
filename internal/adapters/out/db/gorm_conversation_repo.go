package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/smapp/messaging-service/internal/domain/entity"
	"github.com/smapp/messaging-service/internal/ports/out"
)

// ConversationModel GORM模型
type ConversationModel struct {
	ID             uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Participant1ID uint64    `gorm:"column:participant_1_id;not null;index:idx_participants,unique"`
	Participant2ID uint64    `gorm:"column:participant_2_id;not null;index:idx_participants,unique"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ConversationModel) TableName() string {
	return "conversations"
}

func (m *ConversationModel) toEntity() *entity.Conversation {
	return &entity.Conversation{
		ID:             m.ID,
		Participant1ID: m.Participant1ID,
		Participant2ID: m.Participant2ID,
		CreatedAt:      m.CreatedAt,
	}
}

// ConversationRepositoryMySQL MySQL会话仓储实现
type ConversationRepositoryMySQL struct {
	db *gorm.DB
}

func NewConversationRepositoryMySQL(db *gorm.DB) out.ConversationRepository {
	return &ConversationRepositoryMySQL{db: db}
}

func (r *ConversationRepositoryMySQL) GetByID(ctx context.Context, id uint64) (*entity.Conversation, error) {
	var model ConversationModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.toEntity(), nil
}

// GetOrCreate 成员顺序归一化后查找或创建。
// 唯一索引保证并发下同一对用户最多一条记录
func (r *ConversationRepositoryMySQL) GetOrCreate(ctx context.Context, user1ID, user2ID uint64) (*entity.Conversation, error) {
	p1, p2 := entity.NormalizeParticipants(user1ID, user2ID)

	var model ConversationModel
	err := r.db.WithContext(ctx).
		Where("participant_1_id = ? AND participant_2_id = ?", p1, p2).
		FirstOrCreate(&model, ConversationModel{Participant1ID: p1, Participant2ID: p2}).
		Error
	if err != nil {
		return nil, err
	}
	return model.toEntity(), nil
}

func (r *ConversationRepositoryMySQL) ListByUser(ctx context.Context, userID uint64) ([]*entity.Conversation, error) {
	var models []ConversationModel
	err := r.db.WithContext(ctx).
		Where("participant_1_id = ? OR participant_2_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	convs := make([]*entity.Conversation, 0, len(models))
	for i := range models {
		convs = append(convs, models[i].toEntity())
	}
	return convs, nil
}

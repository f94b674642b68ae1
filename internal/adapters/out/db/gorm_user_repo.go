package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/smapp/messaging-service/internal/domain/entity"
	"github.com/smapp/messaging-service/internal/ports/out"
)

// UserModel GORM模型，与认证服务的用户表保持同步
type UserModel struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Email     string    `gorm:"column:email;type:varchar(255);uniqueIndex;not null"`
	Password  string    `gorm:"column:password;type:varchar(255);not null"`
	Username  string    `gorm:"column:username;type:varchar(64);uniqueIndex;not null"`
	FullName  string    `gorm:"column:full_name;type:varchar(255)"`
	Bio       string    `gorm:"column:bio;type:varchar(512)"`
	AvatarURL string    `gorm:"column:avatar_url;type:varchar(512)"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) toEntity() *entity.User {
	return &entity.User{
		ID:        m.ID,
		Email:     m.Email,
		Password:  m.Password,
		Username:  m.Username,
		FullName:  m.FullName,
		Bio:       m.Bio,
		AvatarURL: m.AvatarURL,
		CreatedAt: m.CreatedAt,
	}
}

func userModelFromEntity(e *entity.User) *UserModel {
	return &UserModel{
		ID:        e.ID,
		Email:     e.Email,
		Password:  e.Password,
		Username:  e.Username,
		FullName:  e.FullName,
		Bio:       e.Bio,
		AvatarURL: e.AvatarURL,
		CreatedAt: e.CreatedAt,
	}
}

// UserRepositoryMySQL MySQL用户仓储实现
type UserRepositoryMySQL struct {
	db *gorm.DB
}

func NewUserRepositoryMySQL(db *gorm.DB) out.UserRepository {
	return &UserRepositoryMySQL{db: db}
}

func (r *UserRepositoryMySQL) GetByID(ctx context.Context, id uint64) (*entity.User, error) {
	var model UserModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.toEntity(), nil
}

func (r *UserRepositoryMySQL) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	var model UserModel
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.toEntity(), nil
}

func (r *UserRepositoryMySQL) Create(ctx context.Context, user *entity.User) error {
	model := userModelFromEntity(user)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	user.ID = model.ID
	user.CreatedAt = model.CreatedAt
	return nil
}

// Upsert 按用户名获取或创建，已存在时只更新调用方带来的非空资料字段
func (r *UserRepositoryMySQL) Upsert(ctx context.Context, user *entity.User) (*entity.User, error) {
	var model UserModel
	err := r.db.WithContext(ctx).Where("username = ?", user.Username).First(&model).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err := r.Create(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}

	updates := map[string]any{}
	if user.Email != "" {
		updates["email"] = user.Email
	}
	if user.Password != "" {
		updates["password"] = user.Password
	}
	if user.FullName != "" {
		updates["full_name"] = user.FullName
	}
	if user.Bio != "" {
		updates["bio"] = user.Bio
	}
	if user.AvatarURL != "" {
		updates["avatar_url"] = user.AvatarURL
	}
	if len(updates) > 0 {
		if err := r.db.WithContext(ctx).Model(&model).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return model.toEntity(), nil
}

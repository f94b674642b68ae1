package db

import "gorm.io/gorm"

// AutoMigrate 启动时建表，与认证侧共享的 users 表按本服务需要的列建立
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&ConversationModel{},
		&MessageModel{},
	)
}

package entity

import "time"

// User 用户实体，与认证服务的用户表保持同步
type User struct {
	ID        uint64
	Email     string
	Password  string // 认证服务下发的密码哈希，本服务只存储不校验
	Username  string
	FullName  string
	Bio       string
	AvatarURL string
	CreatedAt time.Time
}

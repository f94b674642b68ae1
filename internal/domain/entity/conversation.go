package entity

import "time"

// Conversation 两个用户之间的单聊会话
type Conversation struct {
	ID             uint64
	Participant1ID uint64
	Participant2ID uint64
	CreatedAt      time.Time
}

// HasParticipant 判断用户是否为会话成员
func (c *Conversation) HasParticipant(userID uint64) bool {
	return c.Participant1ID == userID || c.Participant2ID == userID
}

// NormalizeParticipants 归一化成员顺序（小 ID 在前），
// 保证同一对用户只对应一条会话记录
func NormalizeParticipants(a, b uint64) (uint64, uint64) {
	if a > b {
		return b, a
	}
	return a, b
}

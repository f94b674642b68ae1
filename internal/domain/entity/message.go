package entity

import "time"

// MessageStatus 消息投递状态
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"      // 已持久化，未实时送达
	MessageStatusDelivered MessageStatus = "delivered" // 已通过在线连接实时推送
	MessageStatusRead      MessageStatus = "read"      // 接收方已读
)

// IsValid 是否为合法状态值
func (s MessageStatus) IsValid() bool {
	switch s {
	case MessageStatusSent, MessageStatusDelivered, MessageStatusRead:
		return true
	}
	return false
}

// Message 消息聚合根。JSON 标签与实时推送的 wire 格式一致
type Message struct {
	ID             uint64        `json:"id"`
	ConversationID uint64        `json:"conversation_id"`
	SenderID       uint64        `json:"sender_id"`
	Content        string        `json:"content"`
	Timestamp      time.Time     `json:"timestamp"`
	Status         MessageStatus `json:"status"`
}

// MarkDelivered 标记为已送达
func (m *Message) MarkDelivered() {
	m.Status = MessageStatusDelivered
}

// NewMessage 创建一条待持久化的消息，初始状态为 sent
func NewMessage(conversationID, senderID uint64, content string) *Message {
	return &Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Timestamp:      time.Now().UTC(),
		Status:         MessageStatusSent,
	}
}

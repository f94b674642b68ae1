package realtime

import "github.com/smapp/messaging-service/internal/domain/entity"

// 实时事件类型
const (
	EventTypeUserStatus      = "user_status"
	EventTypeOnlineUsers     = "online_users"
	EventTypeNewMessage      = "new_message"
	EventTypeConnEstablished = "connection_established"
)

// 在线状态值
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// StatusEvent 用户上下线事件，仅在连接数跨越 0↔1 边界时广播
type StatusEvent struct {
	Type   string `json:"type"`
	UserID uint64 `json:"user_id"`
	Status string `json:"status"`
}

// NewStatusEvent 创建上下线事件
func NewStatusEvent(userID uint64, status string) StatusEvent {
	return StatusEvent{Type: EventTypeUserStatus, UserID: userID, Status: status}
}

// RosterEvent 在线用户名单，连接注册成功后推送一次
type RosterEvent struct {
	Type  string   `json:"type"`
	Users []uint64 `json:"users"`
}

// NewRosterEvent 创建在线名单事件
func NewRosterEvent(users []uint64) RosterEvent {
	return RosterEvent{Type: EventTypeOnlineUsers, Users: users}
}

// MessageEvent 新消息实时推送信封
type MessageEvent struct {
	Type    string          `json:"type"`
	Message *entity.Message `json:"message"`
}

// NewMessageEvent 创建新消息事件
func NewMessageEvent(msg *entity.Message) MessageEvent {
	return MessageEvent{Type: EventTypeNewMessage, Message: msg}
}

// ConnEstablishedEvent 连接确认事件
type ConnEstablishedEvent struct {
	Type    string `json:"type"`
	UserID  uint64 `json:"user_id"`
	Message string `json:"message"`
}

// NewConnEstablishedEvent 创建连接确认事件
func NewConnEstablishedEvent(userID uint64) ConnEstablishedEvent {
	return ConnEstablishedEvent{
		Type:    EventTypeConnEstablished,
		UserID:  userID,
		Message: "Connected to messaging service",
	}
}

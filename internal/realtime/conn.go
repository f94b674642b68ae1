// Package realtime 实现实时投递核心：在线状态注册表与消息投递路由。
// 注册表是进程内唯一的共享可变状态，重启后所有用户从离线开始
package realtime

// Conn 一条实时连接的能力抽象：能发送文本帧、能关闭。
// 具体传输层（WebSocket）和测试用的内存实现都满足该接口。
// 句柄在注册期间归注册表独占，注销后不得再被使用
type Conn interface {
	// ID 连接唯一标识，同一用户多端登录时区分各条连接
	ID() string
	// UserID 连接所属用户
	UserID() uint64
	// SendText 推送一个文本帧，失败意味着连接已不可用
	SendText(data []byte) error
	// Close 关闭底层连接，可重复调用
	Close() error
}

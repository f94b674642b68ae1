package realtime

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// 离线广播队列容量，塞满时丢弃事件而不是阻塞连接注销
const statusQueueSize = 256

// StatusPublisher 把上下线事件发布到消息队列，未接入时为 nil
type StatusPublisher interface {
	PublishUserStatus(ctx context.Context, userID uint64, status string) error
}

// Registry 在线状态注册表：用户 ID 到其存活连接集合的权威映射。
// 由 cmd 构造后注入各个连接处理方，不是包级单例。
// 单把互斥锁保护整张表，所有操作都是 O(单用户连接数) 或全局广播的 O(总连接数)
type Registry struct {
	mu    sync.RWMutex
	conns map[uint64][]Conn

	statusQueue chan StatusEvent
	publisher   StatusPublisher
	logger      *zap.Logger
}

// NewRegistry 创建注册表，publisher 可以为 nil
func NewRegistry(publisher StatusPublisher, logger *zap.Logger) *Registry {
	return &Registry{
		conns:       make(map[uint64][]Conn),
		statusQueue: make(chan StatusEvent, statusQueueSize),
		publisher:   publisher,
		logger:      logger.With(zap.String("component", "registry")),
	}
}

// Run 消费离线广播队列，直到 ctx 取消。
// 下线事件在专门的 goroutine 里广播，连接注销路径永远不会
// 因为向第三方推送而阻塞
func (r *Registry) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.statusQueue:
			r.Broadcast(ev)
		}
	}
}

// Register 注册一条连接。用户首条连接触发上线广播，
// 广播严格发生在句柄插入之后，发给包括新连接在内的所有在线连接。
// 同一连接重复注册不会改变连接计数
func (r *Registry) Register(conn Conn) {
	userID := conn.UserID()

	r.mu.Lock()
	list := r.conns[userID]
	for _, c := range list {
		if c.ID() == conn.ID() {
			r.mu.Unlock()
			return
		}
	}
	wasOffline := len(list) == 0
	r.conns[userID] = append(list, conn)
	var targets []Conn
	if wasOffline {
		targets = r.snapshotLocked()
	}
	total := len(r.conns[userID])
	r.mu.Unlock()

	r.logger.Info("connection registered",
		zap.Uint64("user_id", userID),
		zap.String("conn_id", conn.ID()),
		zap.Int("connections", total),
	)

	if wasOffline {
		onlineUsersGauge.Inc()
		r.fanout(targets, NewStatusEvent(userID, StatusOnline))
		r.publishStatus(userID, StatusOnline)
	}
}

// Deregister 注销一条连接。未注册的连接是静默 no-op，
// 同一连接从错误路径和断开路径被注销两次不会重复广播。
// 最后一条连接移除时条目整体删除，下线广播进入队列异步执行
func (r *Registry) Deregister(conn Conn) {
	userID := conn.UserID()

	r.mu.Lock()
	list, ok := r.conns[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	idx := -1
	for i, c := range list {
		if c.ID() == conn.ID() {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return
	}
	list = append(list[:idx], list[idx+1:]...)
	nowOffline := len(list) == 0
	if nowOffline {
		delete(r.conns, userID)
	} else {
		r.conns[userID] = list
	}
	r.mu.Unlock()

	r.logger.Info("connection deregistered",
		zap.Uint64("user_id", userID),
		zap.String("conn_id", conn.ID()),
	)

	if nowOffline {
		onlineUsersGauge.Dec()
		select {
		case r.statusQueue <- NewStatusEvent(userID, StatusOffline):
		default:
			// 下线事件本身是尽力而为的
			r.logger.Warn("status queue full, offline event dropped",
				zap.Uint64("user_id", userID))
		}
		r.publishStatus(userID, StatusOffline)
	}
}

// IsOnline 用户是否至少有一条存活连接。
// 与注册/注销并发调用是安全的，瞬时的竞态由投递方容忍
func (r *Registry) IsOnline(userID uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// OnlineUserIDs 当前在线用户 ID（一致性时点视图），升序返回
func (r *Registry) OnlineUserIDs() []uint64 {
	r.mu.RLock()
	ids := make([]uint64, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Broadcast 把事件推送到所有在线连接。逐条独立发送，
// 单条失败不影响其余；失败的连接被视为已死亡并注销
func (r *Registry) Broadcast(v any) {
	r.mu.RLock()
	targets := r.snapshotLocked()
	r.mu.RUnlock()

	r.fanout(targets, v)
}

// SendToUser 把事件推送到某个用户的全部连接，
// 至少一条发送成功返回 true；失败的连接被注销
func (r *Registry) SendToUser(userID uint64, v any) bool {
	r.mu.RLock()
	targets := make([]Conn, len(r.conns[userID]))
	copy(targets, r.conns[userID])
	r.mu.RUnlock()

	data, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("marshal event failed", zap.Error(err))
		return false
	}

	delivered := false
	for _, c := range targets {
		if err := c.SendText(data); err != nil {
			r.dropDead(c, err)
			continue
		}
		delivered = true
	}
	return delivered
}

// snapshotLocked 在持锁状态下拷贝全部连接句柄，
// 调用方释放锁之后才做逐连接 I/O
func (r *Registry) snapshotLocked() []Conn {
	var all []Conn
	for _, list := range r.conns {
		all = append(all, list...)
	}
	return all
}

// fanout 不持锁地向一组连接逐条推送，失败的连接注销
func (r *Registry) fanout(targets []Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("marshal event failed", zap.Error(err))
		return
	}
	for _, c := range targets {
		if err := c.SendText(data); err != nil {
			r.dropDead(c, err)
		}
	}
}

// dropDead 推送失败说明连接已死亡，触发自愈清理
func (r *Registry) dropDead(c Conn, err error) {
	r.logger.Warn("send failed, dropping connection",
		zap.Uint64("user_id", c.UserID()),
		zap.String("conn_id", c.ID()),
		zap.Error(err),
	)
	r.Deregister(c)
	_ = c.Close()
}

func (r *Registry) publishStatus(userID uint64, status string) {
	if r.publisher == nil {
		return
	}
	go func() {
		if err := r.publisher.PublishUserStatus(context.Background(), userID, status); err != nil {
			r.logger.Warn("publish user status failed",
				zap.Uint64("user_id", userID), zap.Error(err))
		}
	}()
}

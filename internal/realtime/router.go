package realtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/smapp/messaging-service/internal/domain/entity"
	"github.com/smapp/messaging-service/pkg/zlog"
)

// Outcome 单条消息的路由结果
type Outcome int

const (
	// OutcomeQueued 接收方不在线或推送全部失败，消息留待拉取
	OutcomeQueued Outcome = iota
	// OutcomeDeliveredLive 至少一条连接实时推送成功
	OutcomeDeliveredLive
)

func (o Outcome) String() string {
	if o == OutcomeDeliveredLive {
		return "delivered-live"
	}
	return "queued"
}

// Router 投递路由：对一条已持久化的消息决定实时推送还是留队。
// 路由器不重试、不访问存储，sent→delivered 的状态提升由调用方负责
type Router struct {
	registry *Registry
	logger   *zap.Logger
}

// NewRouter 创建投递路由
func NewRouter(registry *Registry, logger *zap.Logger) *Router {
	return &Router{
		registry: registry,
		logger:   logger.With(zap.String("component", "router")),
	}
}

// Route 路由一条新消息给接收方。
// 接收方没有注册条目不是错误，按 queued 处理；
// 推送全部失败时失败连接已被注册表自愈清理，同样按 queued 处理
func (r *Router) Route(ctx context.Context, recipientID uint64, msg *entity.Message) Outcome {
	if !r.registry.IsOnline(recipientID) {
		routedCounter.WithLabelValues(OutcomeQueued.String()).Inc()
		return OutcomeQueued
	}

	delivered := r.registry.SendToUser(recipientID, NewMessageEvent(msg))

	outcome := OutcomeQueued
	if delivered {
		outcome = OutcomeDeliveredLive
	}
	routedCounter.WithLabelValues(outcome.String()).Inc()

	zlog.C(ctx).Debug("message routed",
		zap.Uint64("message_id", msg.ID),
		zap.Uint64("recipient_id", recipientID),
		zap.String("outcome", outcome.String()),
	)
	return outcome
}

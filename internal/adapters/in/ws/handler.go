package ws

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/smapp/messaging-service/internal/ports/out"
	"github.com/smapp/messaging-service/internal/realtime"
)

// Handler WebSocket 接入层：完成鉴权、注册连接并启动读写协程
type Handler struct {
	registry  *realtime.Registry
	validator out.TokenValidator
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

func NewHandler(registry *realtime.Registry, validator out.TokenValidator, logger *zap.Logger) *Handler {
	return &Handler{
		registry:  registry,
		validator: validator,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // 生产环境应该校验Origin
			},
		},
	}
}

// Handle 处理 GET /ws/:user_id?token=xxx。
// 鉴权失败时先完成升级再以策略违规码关闭，保证客户端能读到原因
func (h *Handler) Handle(c *gin.Context) {
	pathUserID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}

	token := c.Query("token")
	if token == "" {
		h.reject(conn, "Token required")
		return
	}

	claims, err := h.validator.Validate(c.Request.Context(), token)
	if err != nil {
		h.logger.Warn("websocket token rejected",
			zap.Uint64("user_id", pathUserID),
			zap.Error(err))
		h.reject(conn, "Invalid token")
		return
	}

	// 路径里的用户 ID 必须和令牌声明一致，不允许代连
	if claims.UserID != pathUserID {
		h.reject(conn, "User mismatch")
		return
	}

	client := NewClient(conn, pathUserID, h.logger)
	h.registry.Register(client)

	h.logger.Info("websocket connected",
		zap.Uint64("user_id", pathUserID),
		zap.String("conn_id", client.ID()))

	// 连接确认和当前在线名单只发给新连接本身
	h.sendJSON(client, realtime.NewConnEstablishedEvent(pathUserID))
	h.sendJSON(client, realtime.NewRosterEvent(h.registry.OnlineUserIDs()))

	go client.writePump()
	go client.readPump(func() {
		h.registry.Deregister(client)
		client.Close()
		h.logger.Info("websocket disconnected",
			zap.Uint64("user_id", pathUserID),
			zap.String("conn_id", client.ID()))
	})
}

func (h *Handler) sendJSON(client *Client, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := client.SendText(data); err != nil {
		h.logger.Warn("send to new connection failed",
			zap.Uint64("user_id", client.UserID()),
			zap.Error(err))
	}
}

func (h *Handler) reject(conn *websocket.Conn, reason string) {
	deadline := time.Now().Add(writeWait)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		deadline)
	conn.Close()
}

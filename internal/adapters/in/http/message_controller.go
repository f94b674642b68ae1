package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/smapp/messaging-service/internal/domain/entity"
	"github.com/smapp/messaging-service/internal/ports/in"
)

// MessageController HTTP消息控制器
type MessageController struct {
	messageUseCase in.MessageUseCase
	devMode        bool
}

// NewMessageController 创建消息控制器
func NewMessageController(messageUseCase in.MessageUseCase, devMode bool) *MessageController {
	return &MessageController{messageUseCase: messageUseCase, devMode: devMode}
}

// RegisterRoutes 注册路由
func (c *MessageController) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/messages", c.SendMessage)
	r.GET("/messages/:conversation_id", c.GetConversationMessages)
	r.GET("/conversations", c.ListConversations)

	users := r.Group("/users")
	{
		users.POST("/sync", c.SyncUser)
		users.POST("", c.RegisterUser)
		users.GET("/:id", c.GetUser)
		users.GET("/username/:username", c.GetUserByUsername)
	}
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	ReceiverID uint64 `json:"receiver_id" binding:"required"`
	Content    string `json:"content" binding:"required"`
}

// UserResponse 用户信息响应
type UserResponse struct {
	ID        uint64 `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FullName  string `json:"full_name,omitempty"`
	Bio       string `json:"bio,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func toUserResponse(u *entity.User) *UserResponse {
	if u == nil {
		return nil
	}
	return &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Bio:       u.Bio,
		AvatarURL: u.AvatarURL,
	}
}

// ConversationResponse 会话预览响应
type ConversationResponse struct {
	ID           uint64          `json:"id"`
	Participant1 *UserResponse   `json:"participant_1"`
	Participant2 *UserResponse   `json:"participant_2"`
	LastMessage  *entity.Message `json:"last_message"`
}

// SendMessage 发送消息
// @Summary 发送消息
// @Tags Messages
// @Accept json
// @Produce json
// @Param request body SendMessageRequest true "消息内容"
// @Success 201 {object} entity.Message
// @Router /messages [post]
func (c *MessageController) SendMessage(ctx *gin.Context) {
	var req SendMessageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := c.messageUseCase.SendMessage(ctx.Request.Context(), identityFromContext(ctx), &in.SendMessageRequest{
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
	})
	if err != nil {
		c.writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, msg)
}

// GetConversationMessages 获取会话消息
// @Summary 获取会话内全部消息
// @Tags Messages
// @Produce json
// @Param conversation_id path uint64 true "会话ID"
// @Success 200 {array} entity.Message
// @Router /messages/{conversation_id} [get]
func (c *MessageController) GetConversationMessages(ctx *gin.Context) {
	conversationID, err := strconv.ParseUint(ctx.Param("conversation_id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	messages, err := c.messageUseCase.GetConversationMessages(ctx.Request.Context(), identityFromContext(ctx), conversationID)
	if err != nil {
		c.writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, messages)
}

// ListConversations 获取会话列表
// @Summary 获取当前用户的全部会话及最新消息
// @Tags Conversations
// @Produce json
// @Success 200 {array} ConversationResponse
// @Router /conversations [get]
func (c *MessageController) ListConversations(ctx *gin.Context) {
	previews, err := c.messageUseCase.ListConversations(ctx.Request.Context(), identityFromContext(ctx))
	if err != nil {
		c.writeError(ctx, err)
		return
	}

	resp := make([]*ConversationResponse, 0, len(previews))
	for _, p := range previews {
		resp = append(resp, &ConversationResponse{
			ID:           p.Conversation.ID,
			Participant1: toUserResponse(p.Participant1),
			Participant2: toUserResponse(p.Participant2),
			LastMessage:  p.LastMessage,
		})
	}

	ctx.JSON(http.StatusOK, resp)
}

// SyncUserRequest 用户同步请求
type SyncUserRequest struct {
	ID        uint64 `json:"id" binding:"required"`
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password"`
	FullName  string `json:"full_name"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatar_url"`
}

// SyncUser 同步用户
// @Summary 从认证服务同步用户资料
// @Tags Users
// @Accept json
// @Produce json
// @Param request body SyncUserRequest true "用户资料"
// @Success 200 {object} UserResponse
// @Router /users/sync [post]
func (c *MessageController) SyncUser(ctx *gin.Context) {
	var req SyncUserRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := c.messageUseCase.SyncUser(ctx.Request.Context(), &in.SyncUserRequest{
		ID:        req.ID,
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FullName:  req.FullName,
		Bio:       req.Bio,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		c.writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, toUserResponse(user))
}

// RegisterUserRequest 开发模式注册请求
type RegisterUserRequest struct {
	Username string `json:"username" binding:"required"`
}

// RegisterUser 简化注册，仅开发模式开放
// @Summary 开发模式下创建测试用户
// @Tags Users
// @Accept json
// @Produce json
// @Param request body RegisterUserRequest true "用户名"
// @Success 201 {object} UserResponse
// @Router /users [post]
func (c *MessageController) RegisterUser(ctx *gin.Context) {
	if !c.devMode {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "registration is disabled"})
		return
	}

	var req RegisterUserRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := c.messageUseCase.RegisterUser(ctx.Request.Context(), req.Username)
	if err != nil {
		c.writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, toUserResponse(user))
}

// GetUser 按ID查询用户
// @Summary 按ID查询用户
// @Tags Users
// @Produce json
// @Param id path uint64 true "用户ID"
// @Success 200 {object} UserResponse
// @Router /users/{id} [get]
func (c *MessageController) GetUser(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := c.messageUseCase.GetUser(ctx.Request.Context(), id)
	if err != nil {
		c.writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, toUserResponse(user))
}

// GetUserByUsername 按用户名查询用户
// @Summary 按用户名查询用户
// @Tags Users
// @Produce json
// @Param username path string true "用户名"
// @Success 200 {object} UserResponse
// @Router /users/username/{username} [get]
func (c *MessageController) GetUserByUsername(ctx *gin.Context) {
	user, err := c.messageUseCase.GetUserByUsername(ctx.Request.Context(), ctx.Param("username"))
	if err != nil {
		c.writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, toUserResponse(user))
}

// writeError 把用例层的哨兵错误映射为对应的 HTTP 状态码
func (c *MessageController) writeError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, in.ErrReceiverNotFound),
		errors.Is(err, in.ErrConversationNotFound),
		errors.Is(err, in.ErrUserNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, in.ErrNotParticipant):
		ctx.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

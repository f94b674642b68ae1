package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smapp/messaging-service/internal/domain/entity"
	"github.com/smapp/messaging-service/internal/ports/in"
)

type fakeUseCase struct {
	sendResult *entity.Message
	sendErr    error
	lastSender in.Identity

	messages    []*entity.Message
	messagesErr error

	previews []*in.ConversationPreview

	users map[uint64]*entity.User
}

func (f *fakeUseCase) SendMessage(_ context.Context, sender in.Identity, _ *in.SendMessageRequest) (*entity.Message, error) {
	f.lastSender = sender
	return f.sendResult, f.sendErr
}

func (f *fakeUseCase) ListConversations(context.Context, in.Identity) ([]*in.ConversationPreview, error) {
	return f.previews, nil
}

func (f *fakeUseCase) GetConversationMessages(context.Context, in.Identity, uint64) ([]*entity.Message, error) {
	return f.messages, f.messagesErr
}

func (f *fakeUseCase) SyncUser(_ context.Context, req *in.SyncUserRequest) (*entity.User, error) {
	return &entity.User{ID: req.ID, Username: req.Username, Email: req.Email}, nil
}

func (f *fakeUseCase) RegisterUser(_ context.Context, username string) (*entity.User, error) {
	return &entity.User{ID: 99, Username: username}, nil
}

func (f *fakeUseCase) GetUser(_ context.Context, id uint64) (*entity.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, in.ErrUserNotFound
}

func (f *fakeUseCase) GetUserByUsername(_ context.Context, username string) (*entity.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, in.ErrUserNotFound
}

func newTestRouter(uc in.MessageUseCase, devMode bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	api := router.Group("/api/messaging")
	api.Use(AuthMiddleware(nil, true, zap.NewNop()))
	NewMessageController(uc, devMode).RegisterRoutes(api)
	return router
}

func doRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "1")
	req.Header.Set("X-Username", "alice")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSendMessageCreated(t *testing.T) {
	msg := entity.NewMessage(3, 1, "hello")
	msg.ID = 10
	uc := &fakeUseCase{sendResult: msg}
	router := newTestRouter(uc, true)

	w := doRequest(router, http.MethodPost, "/api/messaging/messages",
		gin.H{"receiver_id": 2, "content": "hello"})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, uint64(1), uc.lastSender.UserID)
	assert.Equal(t, "alice", uc.lastSender.Username)

	var got entity.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, uint64(10), got.ID)
	assert.Equal(t, "hello", got.Content)
}

func TestSendMessageReceiverNotFound(t *testing.T) {
	router := newTestRouter(&fakeUseCase{sendErr: in.ErrReceiverNotFound}, true)

	w := doRequest(router, http.MethodPost, "/api/messaging/messages",
		gin.H{"receiver_id": 42, "content": "hi"})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendMessageMissingBody(t *testing.T) {
	router := newTestRouter(&fakeUseCase{}, true)

	w := doRequest(router, http.MethodPost, "/api/messaging/messages", gin.H{"content": ""})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetConversationMessagesForbidden(t *testing.T) {
	router := newTestRouter(&fakeUseCase{messagesErr: in.ErrNotParticipant}, true)

	w := doRequest(router, http.MethodGet, "/api/messaging/messages/7", nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListConversationsPreviewShape(t *testing.T) {
	last := entity.NewMessage(3, 2, "latest")
	last.ID = 8
	last.Timestamp = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	uc := &fakeUseCase{previews: []*in.ConversationPreview{{
		Conversation: &entity.Conversation{ID: 3, Participant1ID: 1, Participant2ID: 2},
		Participant1: &entity.User{ID: 1, Username: "alice"},
		Participant2: &entity.User{ID: 2, Username: "bob"},
		LastMessage:  last,
	}}}
	router := newTestRouter(uc, true)

	w := doRequest(router, http.MethodGet, "/api/messaging/conversations", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, float64(3), got[0]["id"])
	assert.Equal(t, "bob", got[0]["participant_2"].(map[string]any)["username"])
	assert.Equal(t, "latest", got[0]["last_message"].(map[string]any)["content"])
}

func TestRegisterUserDisabledOutsideDevMode(t *testing.T) {
	router := newTestRouter(&fakeUseCase{}, false)

	w := doRequest(router, http.MethodPost, "/api/messaging/users",
		gin.H{"username": "mallory"})

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetUserNotFound(t *testing.T) {
	router := newTestRouter(&fakeUseCase{users: map[uint64]*entity.User{}}, true)

	w := doRequest(router, http.MethodGet, "/api/messaging/users/404", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthMiddlewareRejectsMissingCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/messaging")
	api.Use(AuthMiddleware(nil, false, zap.NewNop()))
	NewMessageController(&fakeUseCase{}, true).RegisterRoutes(api)

	req := httptest.NewRequest(http.MethodGet, "/api/messaging/conversations", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

package application

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smapp/messaging-service/internal/domain/entity"
	"github.com/smapp/messaging-service/internal/ports/in"
	"github.com/smapp/messaging-service/internal/realtime"
)

// ---- 内存仓储 ----

type fakeUserRepo struct {
	nextID uint64
	byID   map[uint64]*entity.User
	byName map[string]*entity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, byID: map[uint64]*entity.User{}, byName: map[string]*entity.User{}}
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uint64) (*entity.User, error) {
	return r.byID[id], nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*entity.User, error) {
	return r.byName[username], nil
}

func (r *fakeUserRepo) Create(_ context.Context, u *entity.User) error {
	if u.ID == 0 {
		u.ID = r.nextID
		r.nextID++
	}
	r.byID[u.ID] = u
	r.byName[u.Username] = u
	return nil
}

func (r *fakeUserRepo) Upsert(ctx context.Context, u *entity.User) (*entity.User, error) {
	if existing := r.byName[u.Username]; existing != nil {
		return existing, nil
	}
	if err := r.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

type fakeConvRepo struct {
	nextID uint64
	convs  map[uint64]*entity.Conversation
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{nextID: 1, convs: map[uint64]*entity.Conversation{}}
}

func (r *fakeConvRepo) GetByID(_ context.Context, id uint64) (*entity.Conversation, error) {
	return r.convs[id], nil
}

func (r *fakeConvRepo) GetOrCreate(_ context.Context, a, b uint64) (*entity.Conversation, error) {
	p1, p2 := entity.NormalizeParticipants(a, b)
	for _, c := range r.convs {
		if c.Participant1ID == p1 && c.Participant2ID == p2 {
			return c, nil
		}
	}
	c := &entity.Conversation{ID: r.nextID, Participant1ID: p1, Participant2ID: p2}
	r.nextID++
	r.convs[c.ID] = c
	return c, nil
}

func (r *fakeConvRepo) ListByUser(_ context.Context, userID uint64) ([]*entity.Conversation, error) {
	var out []*entity.Conversation
	for _, c := range r.convs {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeMessageRepo struct {
	nextID   uint64
	messages []*entity.Message
	statuses map[uint64]entity.MessageStatus
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{nextID: 1, statuses: map[uint64]entity.MessageStatus{}}
}

func (r *fakeMessageRepo) Create(_ context.Context, m *entity.Message) error {
	m.ID = r.nextID
	r.nextID++
	r.messages = append(r.messages, m)
	r.statuses[m.ID] = m.Status
	return nil
}

func (r *fakeMessageRepo) ListByConversation(_ context.Context, convID uint64) ([]*entity.Message, error) {
	var out []*entity.Message
	for _, m := range r.messages {
		if m.ConversationID == convID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) LastByConversation(_ context.Context, convID uint64) (*entity.Message, error) {
	var last *entity.Message
	for _, m := range r.messages {
		if m.ConversationID == convID {
			last = m
		}
	}
	return last, nil
}

func (r *fakeMessageRepo) UpdateStatus(_ context.Context, id uint64, status entity.MessageStatus) error {
	r.statuses[id] = status
	return nil
}

// ---- 测试用在线连接 ----

type recordingConn struct {
	id     string
	userID uint64
	frames [][]byte
}

func (c *recordingConn) ID() string     { return c.id }
func (c *recordingConn) UserID() uint64 { return c.userID }
func (c *recordingConn) Close() error   { return nil }

func (c *recordingConn) SendText(data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	c.frames = append(c.frames, buf)
	return nil
}

type fixture struct {
	users    *fakeUserRepo
	convs    *fakeConvRepo
	messages *fakeMessageRepo
	registry *realtime.Registry
	useCase  in.MessageUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := newFakeUserRepo()
	convs := newFakeConvRepo()
	messages := newFakeMessageRepo()
	registry := realtime.NewRegistry(nil, zap.NewNop())
	router := realtime.NewRouter(registry, zap.NewNop())
	return &fixture{
		users:    users,
		convs:    convs,
		messages: messages,
		registry: registry,
		useCase:  NewMessageUseCase(users, convs, messages, router, nil),
	}
}

func (f *fixture) seedUser(t *testing.T, id uint64, username string) *entity.User {
	t.Helper()
	u := &entity.User{ID: id, Username: username, Email: username + "@example.com"}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func TestSendMessageOnlineReceiverDeliveredLive(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 7, "alice")
	f.seedUser(t, 9, "bob")

	conn := &recordingConn{id: "c9", userID: 9}
	f.registry.Register(conn)

	msg, err := f.useCase.SendMessage(context.Background(),
		in.Identity{UserID: 7, Username: "alice"},
		&in.SendMessageRequest{ReceiverID: 9, Content: "hello"},
	)
	require.NoError(t, err)

	// 实时推送成功：持久化状态和返回值都提升为 delivered
	assert.Equal(t, entity.MessageStatusDelivered, msg.Status)
	assert.Equal(t, entity.MessageStatusDelivered, f.messages.statuses[msg.ID])

	// 连接收到的推送中状态仍是 sent（推送先于状态提升）
	var ev struct {
		Type    string          `json:"type"`
		Message *entity.Message `json:"message"`
	}
	var found bool
	for _, frame := range conn.frames {
		require.NoError(t, json.Unmarshal(frame, &ev))
		if ev.Type == realtime.EventTypeNewMessage {
			found = true
			break
		}
	}
	require.True(t, found, "receiver connection should get a new_message push")
	assert.Equal(t, "hello", ev.Message.Content)
	assert.Equal(t, entity.MessageStatusSent, ev.Message.Status)
}

func TestSendMessageOfflineReceiverQueued(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 7, "alice")
	f.seedUser(t, 42, "carol")

	msg, err := f.useCase.SendMessage(context.Background(),
		in.Identity{UserID: 7, Username: "alice"},
		&in.SendMessageRequest{ReceiverID: 42, Content: "are you there"},
	)
	require.NoError(t, err)

	assert.Equal(t, entity.MessageStatusSent, msg.Status)
	assert.Equal(t, entity.MessageStatusSent, f.messages.statuses[msg.ID])
}

func TestSendMessageUnknownReceiver(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 7, "alice")

	_, err := f.useCase.SendMessage(context.Background(),
		in.Identity{UserID: 7, Username: "alice"},
		&in.SendMessageRequest{ReceiverID: 404, Content: "hi"},
	)
	assert.ErrorIs(t, err, in.ErrReceiverNotFound)
}

func TestSendMessageReusesConversation(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 7, "alice")
	f.seedUser(t, 9, "bob")

	first, err := f.useCase.SendMessage(context.Background(),
		in.Identity{UserID: 7, Username: "alice"},
		&in.SendMessageRequest{ReceiverID: 9, Content: "one"},
	)
	require.NoError(t, err)

	// 反方向发送也命中同一条会话
	second, err := f.useCase.SendMessage(context.Background(),
		in.Identity{UserID: 9, Username: "bob"},
		&in.SendMessageRequest{ReceiverID: 7, Content: "two"},
	)
	require.NoError(t, err)

	assert.Equal(t, first.ConversationID, second.ConversationID)
}

func TestGetConversationMessagesRequiresParticipant(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 7, "alice")
	f.seedUser(t, 9, "bob")
	f.seedUser(t, 11, "eve")

	sent, err := f.useCase.SendMessage(context.Background(),
		in.Identity{UserID: 7, Username: "alice"},
		&in.SendMessageRequest{ReceiverID: 9, Content: "secret"},
	)
	require.NoError(t, err)

	_, err = f.useCase.GetConversationMessages(context.Background(),
		in.Identity{UserID: 11, Username: "eve"}, sent.ConversationID)
	assert.ErrorIs(t, err, in.ErrNotParticipant)

	msgs, err := f.useCase.GetConversationMessages(context.Background(),
		in.Identity{UserID: 9, Username: "bob"}, sent.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "secret", msgs[0].Content)

	_, err = f.useCase.GetConversationMessages(context.Background(),
		in.Identity{UserID: 9, Username: "bob"}, 999)
	assert.ErrorIs(t, err, in.ErrConversationNotFound)
}

func TestListConversationsWithLastMessagePreview(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 7, "alice")
	f.seedUser(t, 9, "bob")

	_, err := f.useCase.SendMessage(context.Background(),
		in.Identity{UserID: 7, Username: "alice"},
		&in.SendMessageRequest{ReceiverID: 9, Content: "first"},
	)
	require.NoError(t, err)
	_, err = f.useCase.SendMessage(context.Background(),
		in.Identity{UserID: 7, Username: "alice"},
		&in.SendMessageRequest{ReceiverID: 9, Content: "latest"},
	)
	require.NoError(t, err)

	previews, err := f.useCase.ListConversations(context.Background(),
		in.Identity{UserID: 9, Username: "bob"})
	require.NoError(t, err)
	require.Len(t, previews, 1)

	p := previews[0]
	assert.Equal(t, uint64(7), p.Participant1.ID)
	assert.Equal(t, uint64(9), p.Participant2.ID)
	require.NotNil(t, p.LastMessage)
	assert.Equal(t, "latest", p.LastMessage.Content)
}

func TestSyncUserRequiresEmail(t *testing.T) {
	f := newFixture(t)
	_, err := f.useCase.SyncUser(context.Background(), &in.SyncUserRequest{Username: "alice"})
	assert.Error(t, err)

	u, err := f.useCase.SyncUser(context.Background(), &in.SyncUserRequest{
		Username: "alice", Email: "alice@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
}

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smapp/messaging-service/internal/ports/out"
	"github.com/smapp/messaging-service/internal/realtime"
)

type stubValidator struct {
	claims map[string]*out.AuthClaims
}

func (v *stubValidator) Validate(_ context.Context, token string) (*out.AuthClaims, error) {
	if claims, ok := v.claims[token]; ok {
		return claims, nil
	}
	return nil, errors.New("token not recognized")
}

func newTestServer(t *testing.T, validator out.TokenValidator) (*httptest.Server, *realtime.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := realtime.NewRegistry(nil, zap.NewNop())
	handler := NewHandler(registry, validator, zap.NewNop())

	router := gin.New()
	router.GET("/ws/:user_id", handler.Handle)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, registry
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event map[string]any
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

func TestHandleValidTokenRegistersAndSendsRoster(t *testing.T) {
	validator := &stubValidator{claims: map[string]*out.AuthClaims{
		"good": {UserID: 5, Username: "eve"},
	}}
	srv, registry := newTestServer(t, validator)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/5?token=good"), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	// 首条连接先收到自己的上线广播，然后才是连接确认和在线名单
	status := readEvent(t, conn)
	assert.Equal(t, "user_status", status["type"])
	assert.Equal(t, float64(5), status["user_id"])
	assert.Equal(t, "online", status["status"])

	established := readEvent(t, conn)
	assert.Equal(t, "connection_established", established["type"])
	assert.Equal(t, float64(5), established["user_id"])

	roster := readEvent(t, conn)
	assert.Equal(t, "online_users", roster["type"])
	assert.Equal(t, []any{float64(5)}, roster["users"])

	assert.True(t, registry.IsOnline(5))
}

func TestHandleMissingTokenClosedWithPolicyViolation(t *testing.T) {
	srv, registry := newTestServer(t, &stubValidator{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/5"), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, "Token required", closeErr.Text)
	assert.False(t, registry.IsOnline(5))
}

func TestHandleInvalidTokenRejected(t *testing.T) {
	srv, registry := newTestServer(t, &stubValidator{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/5?token=bogus"), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, "Invalid token", closeErr.Text)
	assert.False(t, registry.IsOnline(5))
}

func TestHandleUserMismatchRejected(t *testing.T) {
	validator := &stubValidator{claims: map[string]*out.AuthClaims{
		"good": {UserID: 5},
	}}
	srv, registry := newTestServer(t, validator)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/6?token=good"), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, "User mismatch", closeErr.Text)
	assert.False(t, registry.IsOnline(6))
}

func TestSecondConnectionSeesPeerInRoster(t *testing.T) {
	validator := &stubValidator{claims: map[string]*out.AuthClaims{
		"tok5": {UserID: 5},
		"tok6": {UserID: 6},
	}}
	srv, registry := newTestServer(t, validator)

	first, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/5?token=tok5"), nil)
	require.NoError(t, err)
	defer first.Close()
	readEvent(t, first) // 自己的上线广播
	readEvent(t, first) // connection_established
	readEvent(t, first) // roster

	second, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/6?token=tok6"), nil)
	require.NoError(t, err)
	defer second.Close()

	// 用户 6 上线后，用户 5 应当收到 online 广播
	statusSeen := readEvent(t, first)
	assert.Equal(t, "user_status", statusSeen["type"])
	assert.Equal(t, float64(6), statusSeen["user_id"])
	assert.Equal(t, "online", statusSeen["status"])

	readEvent(t, second) // 自己的上线广播
	readEvent(t, second) // connection_established
	roster := readEvent(t, second)
	assert.Equal(t, "online_users", roster["type"])
	assert.ElementsMatch(t, []any{float64(5), float64(6)}, roster["users"])

	assert.True(t, registry.IsOnline(5))
	assert.True(t, registry.IsOnline(6))
}
